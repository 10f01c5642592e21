package am

import (
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/transaction"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/pkg/errors"
)

/*
	the logic to delete tuple (based on the assumption that the tuple has been already identified with tid)
	- acquire the row lock
	- fetch the tuple under the content lock
	- check visibility and identify whether the tuple can be deleted
	  - if the tuple is invisible or has been removed: TMResultInvisible
	  - if other transaction has updated/deleted the tuple: TMResultUpdated (first updater wins)
	- if it can be deleted
	  - set xmax with the current transaction id and the deleted flag
	  - wal log

HeapDelete deletes tuple whose tid is specified in argument
`delete` means `set xmax` to the tuple so this tuple becomes invisible to the later transactions.
https://github.com/postgres/postgres/blob/63c844a0a5d70cdbd6ae0470d582d39e75ad8d66/src/backend/access/heap/heapam.c#L2670
*/
func (m *Manager) HeapDelete(tx *transaction.Tx, meta *catalog.TableMeta, tid tuple.Tid, oid common.RowOid) (TMResult, error) {
	m.locks.LockRow(meta.Name, oid, tx.ID())
	defer m.locks.UnlockRow(meta.Name, oid, tx.ID())

	// read buffer. the buffer has been pinned so this buffer cannot be evicted
	bufID, err := m.bm.LoadOrFetch(meta.Filename, tid.PageID())
	if err != nil {
		return TMResultInvisible, errors.Wrap(err, "LoadOrFetch failed")
	}
	defer m.bm.ReleaseBuffer(bufID)
	// acquire exclusive content lock for buffer to change
	m.bm.AcquireContentLock(bufID)
	defer m.bm.ReleaseContentLock(bufID)

	p := m.bm.GetPage(bufID)
	tb, res := m.checkModifiable(tx, p, tid, oid)
	if res != TMResultOK {
		return res, nil
	}

	// postgres calculates xmax below
	// https://github.com/postgres/postgres/blob/63c844a0a5d70cdbd6ae0470d582d39e75ad8d66/src/backend/access/heap/heapam.c#L2926
	// mini-pg simply set current transaction id
	tb.SetXmax(tx.ID())
	tb.SetDeleted(true)
	// mark buffer dirty
	m.bm.MarkDirty(bufID)
	tx.Touch(meta.Filename)

	payload := wal.DeletePayload{
		Table: meta.Oid,
		Page:  tid.PageID(),
		Slot:  tid.SlotIndex(),
		Row:   oid,
	}
	if err := m.log(tx, p, wal.NewRecord(wal.RecordDelete, tx.ID(), payload.Marshal())); err != nil {
		return TMResultInvisible, err
	}
	return TMResultOK, nil
}
