/*
Row lock table serializes conflicting updates on the same logical row.
This is orthogonal to page content lock, which protects the physical page.

The table has fixed number of buckets selected by hashing (table name, row oid).
Each bucket is protected with LWLock and has singly linked chain of row locks.
Row lock is exclusive ownership by transaction id and it is re-entrant for the holder.
The row lock struct is never freed, subsequent claims reuse it.

When the row is held by other transaction, the caller is queued in FIFO order on the row lock
and parks until the holder hands the lock over with UnlockRow(). There is no timeout.
*/
package lock

import (
	"hash/fnv"
	"sync"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// NumBuckets is the number of buckets of row lock table
const NumBuckets = 1024

// rowTag identifies the row
type rowTag struct {
	table string
	oid   common.RowOid
}

type rowWaiter struct {
	xid txid.TxID
	ch  chan struct{}
}

// rowLock is the lock of the row
type rowLock struct {
	tag rowTag
	// InvalidTxID means the lock is free
	holder  txid.TxID
	waiters []rowWaiter
	next    *rowLock
}

type bucket struct {
	latch LWLock
	head  *rowLock
}

// RowLockTable is the table of row locks
type RowLockTable struct {
	buckets [NumBuckets]bucket

	// waits counts LockRow() calls which had to wait. this can be nil
	waits prometheus.Counter

	// held tracks rows held by each transaction so that all of them can be released at once
	mu   sync.Mutex
	held map[txid.TxID]map[rowTag]struct{}
}

// NewRowLockTable initializes row lock table
func NewRowLockTable(waits prometheus.Counter) *RowLockTable {
	return &RowLockTable{
		waits: waits,
		held:  make(map[txid.TxID]map[rowTag]struct{}),
	}
}

// bucketIndex returns the index of bucket with FNV-1a over table name and row oid
func bucketIndex(tag rowTag) int {
	h := fnv.New32a()
	h.Write([]byte(tag.table))
	h.Write([]byte{byte(tag.oid), byte(tag.oid >> 8), byte(tag.oid >> 16), byte(tag.oid >> 24)})
	return int(h.Sum32() % NumBuckets)
}

// find returns the row lock of the tag. bucket latch has to be held
func (b *bucket) find(tag rowTag) *rowLock {
	for rl := b.head; rl != nil; rl = rl.next {
		if rl.tag == tag {
			return rl
		}
	}
	return nil
}

// LockRow acquires the row lock for the transaction
// this blocks until the row is handed over when the row is held by other transaction
func (t *RowLockTable) LockRow(table string, oid common.RowOid, xid txid.TxID) {
	tag := rowTag{table: table, oid: oid}
	b := &t.buckets[bucketIndex(tag)]

	b.latch.Acquire()
	rl := b.find(tag)
	if rl == nil {
		// prepend new lock to the chain
		rl = &rowLock{tag: tag, holder: xid, next: b.head}
		b.head = rl
		t.remember(xid, tag)
		b.latch.Release()
		return
	}
	if rl.holder == xid {
		b.latch.Release()
		return
	}
	if !rl.holder.IsValid() {
		rl.holder = xid
		t.remember(xid, tag)
		b.latch.Release()
		return
	}

	holder := rl.holder
	ch := make(chan struct{})
	rl.waiters = append(rl.waiters, rowWaiter{xid: xid, ch: ch})
	b.latch.Release()

	if t.waits != nil {
		t.waits.Inc()
	}
	log.WithFields(log.Fields{"table": table, "oid": oid, "xid": xid, "holder": holder}).Debug("wait for row lock")
	// holder is already set to xid when the channel is closed
	<-ch
}

// UnlockRow releases the row lock only when it is held by the transaction
// returns whether the lock has been released
func (t *RowLockTable) UnlockRow(table string, oid common.RowOid, xid txid.TxID) bool {
	tag := rowTag{table: table, oid: oid}
	b := &t.buckets[bucketIndex(tag)]

	b.latch.Acquire()
	defer b.latch.Release()
	rl := b.find(tag)
	if rl == nil || rl.holder != xid {
		return false
	}
	t.forget(xid, tag)
	if len(rl.waiters) == 0 {
		rl.holder = txid.InvalidTxID
		return true
	}
	w := rl.waiters[0]
	rl.waiters[0] = rowWaiter{}
	rl.waiters = rl.waiters[1:]
	rl.holder = w.xid
	t.remember(w.xid, tag)
	close(w.ch)
	return true
}

// UnlockAll releases all row locks held by the transaction
// this is called when the transaction commits or aborts
func (t *RowLockTable) UnlockAll(xid txid.TxID) int {
	t.mu.Lock()
	tags := t.held[xid]
	delete(t.held, xid)
	t.mu.Unlock()

	n := 0
	for tag := range tags {
		if t.UnlockRow(tag.table, tag.oid, xid) {
			n++
		}
	}
	return n
}

// Holder returns the transaction which holds the row lock
func (t *RowLockTable) Holder(table string, oid common.RowOid) txid.TxID {
	tag := rowTag{table: table, oid: oid}
	b := &t.buckets[bucketIndex(tag)]

	b.latch.Acquire()
	defer b.latch.Release()
	rl := b.find(tag)
	if rl == nil {
		return txid.InvalidTxID
	}
	return rl.holder
}

// numWaiters returns the number of transactions waiting for the row
func (t *RowLockTable) numWaiters(table string, oid common.RowOid) int {
	tag := rowTag{table: table, oid: oid}
	b := &t.buckets[bucketIndex(tag)]

	b.latch.Acquire()
	defer b.latch.Release()
	rl := b.find(tag)
	if rl == nil {
		return 0
	}
	return len(rl.waiters)
}

func (t *RowLockTable) remember(xid txid.TxID, tag rowTag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows, ok := t.held[xid]
	if !ok {
		rows = make(map[rowTag]struct{})
		t.held[xid] = rows
	}
	rows[tag] = struct{}{}
}

func (t *RowLockTable) forget(xid txid.TxID, tag rowTag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows, ok := t.held[xid]
	if !ok {
		return
	}
	delete(rows, tag)
	if len(rows) == 0 {
		delete(t.held, xid)
	}
}
