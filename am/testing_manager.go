package am

import (
	"testing"

	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/lock"
	"github.com/jimingkang/mini-pg/storage/buffer"
	"github.com/jimingkang/mini-pg/transaction"
)

// TestingNewManager initializes the access method manager on buffer storage with users table
func TestingNewManager(t *testing.T) (*Manager, *catalog.TableMeta) {
	bm, err := buffer.TestingNewManager()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(bm.Close)
	txm, _ := transaction.TestingNewManager(t, transaction.DefaultMaxTransactions)

	c, err := catalog.Open("")
	if err != nil {
		t.Fatal(err)
	}
	meta, err := c.Create("users", catalog.TestingUsersColumns())
	if err != nil {
		t.Fatal(err)
	}
	return NewManager(bm, txm, lock.NewRowLockTable(nil), nil), meta
}
