package transaction

import (
	"testing"

	"github.com/jimingkang/mini-pg/transaction/snapshot"
	"github.com/jimingkang/mini-pg/transaction/txid"
)

// TestingNewTransaction initializes in-progress transaction with the snapshot
func TestingNewTransaction(id, snapXmin txid.TxID) *Tx {
	return newTransaction(id, 0, snapshot.NewSnapshot(id, snapXmin))
}

// TestingNewManager initializes transaction manager which saves state file in temporary directory
func TestingNewManager(t *testing.T, maxTx int) (*Manager, string) {
	dir := t.TempDir()
	m, err := NewManager(dir, maxTx, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m, dir
}
