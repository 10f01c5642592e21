/*
Snapshot decides which tuple versions the transaction can see.

mini-pg takes the snapshot once when the transaction begins (like REPEATABLE READ in postgres).
The snapshot is the oldest active transaction id at that time.
Every transaction older than it had finished before the snapshot was taken,
so its result can be decided only with commit bitmap.
Transactions at or above it may still be in progress and their tuples are invisible.

visibility rule for the tuple (xmin, xmax) read by the transaction `reader`:
 1. xmin == reader: the tuple is inserted by the reader. visible unless xmax == reader
 2. xmin < snapshot and xmin is committed: visible unless xmax is the reader itself,
    or xmax is committed transaction older than the reader
 3. otherwise: invisible

see https://github.com/postgres/postgres/blob/27b77ecf9f4d5be211900eda54d8155ada50d696/src/backend/access/heap/heapam_visibility.c#L1
*/
package snapshot

import (
	"github.com/jimingkang/mini-pg/transaction/txid"
)

// CommitLog answers whether the transaction has committed
type CommitLog interface {
	IsCommitted(txid.TxID) bool
}

// Snapshot is snapshot
// see https://github.com/postgres/postgres/blob/27b77ecf9f4d5be211900eda54d8155ada50d696/src/include/utils/snapshot.h#L121
type Snapshot struct {
	// reader is the transaction which takes the snapshot
	reader txid.TxID
	// xmin is the oldest active transaction id when the snapshot is taken
	xmin txid.TxID
}

// NewSnapshot initializes snapshot
func NewSnapshot(reader, xmin txid.TxID) Snapshot {
	return Snapshot{
		reader: reader,
		xmin:   xmin,
	}
}

// Reader returns the transaction which takes the snapshot
func (snap Snapshot) Reader() txid.TxID {
	return snap.reader
}

// Xmin returns the oldest active transaction id when the snapshot is taken
func (snap Snapshot) Xmin() txid.TxID {
	return snap.xmin
}

// IsVisible checks whether the tuple version is visible from the snapshot
func (snap Snapshot) IsVisible(xmin, xmax txid.TxID, clog CommitLog) bool {
	// the tuple is inserted by the reader itself
	if xmin == snap.reader {
		return xmax != snap.reader
	}
	if !xmin.IsValid() || !xmin.Precedes(snap.xmin) || !clog.IsCommitted(xmin) {
		return false
	}
	// the tuple has not been updated/deleted
	if !xmax.IsValid() {
		return true
	}
	// updated/deleted by the reader itself
	if xmax == snap.reader {
		return false
	}
	// the update/delete has not committed (in progress or aborted)
	if !clog.IsCommitted(xmax) {
		return true
	}
	// the update/delete is committed by the transaction which started after the reader
	return snap.reader.Precedes(xmax)
}
