package transaction

import (
	"sort"
	"sync"
	"time"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/transaction/snapshot"
	"github.com/jimingkang/mini-pg/transaction/txid"
)

// Tx is a transaction
type Tx struct {
	id        txid.TxID
	slot      int
	startTime time.Time
	snapshot  snapshot.Snapshot

	mu    sync.Mutex
	state State
	// lastLSN is the lsn of the last wal record written by the transaction
	lastLSN common.LSN
	// touched is the table files modified by the transaction. they are synced on commit
	touched map[string]struct{}
}

// newTransaction initializes transaction
func newTransaction(id txid.TxID, slot int, snap snapshot.Snapshot) *Tx {
	return &Tx{
		id:        id,
		slot:      slot,
		startTime: time.Now(),
		snapshot:  snap,
		state:     StateInProgress,
		touched:   make(map[string]struct{}),
	}
}

// ID returns transaction id
func (tx *Tx) ID() txid.TxID {
	return tx.id
}

// StartTime returns the time when the transaction began
func (tx *Tx) StartTime() time.Time {
	return tx.startTime
}

// Snapshot returns snapshot
func (tx *Tx) Snapshot() snapshot.Snapshot {
	return tx.snapshot
}

// State returns transaction state
func (tx *Tx) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

func (tx *Tx) setState(state State) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.state = state
}

// LastLSN returns the lsn of the last wal record written by the transaction
func (tx *Tx) LastLSN() common.LSN {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.lastLSN
}

// SetLastLSN sets the lsn of the last wal record written by the transaction
func (tx *Tx) SetLastLSN(lsn common.LSN) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.lastLSN = lsn
}

// Touch records the file modified by the transaction
func (tx *Tx) Touch(file string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.touched[file] = struct{}{}
}

// Touched returns the files modified by the transaction in name order
func (tx *Tx) Touched() []string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	files := make([]string, 0, len(tx.touched))
	for f := range tx.touched {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
