package am

import (
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/transaction"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/pkg/errors"
)

// TMResult is the result of update/delete of the tuple version
// see https://github.com/postgres/postgres/blob/27b77ecf9f4d5be211900eda54d8155ada50d696/src/include/access/tableam.h#L72
type TMResult int

const (
	// the tuple version is updated/deleted successfully
	TMResultOK TMResult = iota
	// the tuple version is invisible or has been removed
	TMResultInvisible
	// the tuple version has been updated/deleted by other transaction (or by the transaction itself)
	TMResultUpdated
)

func (r TMResult) String() string {
	switch r {
	case TMResultOK:
		return "ok"
	case TMResultInvisible:
		return "invisible"
	case TMResultUpdated:
		return "updated"
	}
	return "unknown"
}

// UpdateFunc returns the new values of the row from the current values
type UpdateFunc func(old []tuple.Value) ([]tuple.Value, error)

// HeapUpdate updates the row version at tid with the values returned by fn.
// the process to update the tuple is `stamp xmax on the old tuple` and `insert new tuple` with the same row oid.
// the row lock is held during the update so that concurrent updaters of the row are serialized,
// and the tuple is checked again under the content lock. the first updater wins:
// when xmax has been stamped by other transaction, the version is not updated (TMResultUpdated).
// https://github.com/postgres/postgres/blob/8e1db29cdbbd218ab6ba53eea56624553c3bef8c/src/backend/access/heap/heapam_handler.c#L314
func (m *Manager) HeapUpdate(tx *transaction.Tx, meta *catalog.TableMeta, tid tuple.Tid, oid common.RowOid, fn UpdateFunc) (tuple.Tid, TMResult, error) {
	m.locks.LockRow(meta.Name, oid, tx.ID())
	defer m.locks.UnlockRow(meta.Name, oid, tx.ID())

	// read buffer. the buffer has been pinned so this buffer cannot be evicted
	bufID, err := m.bm.LoadOrFetch(meta.Filename, tid.PageID())
	if err != nil {
		return tuple.Tid{}, TMResultInvisible, errors.Wrap(err, "LoadOrFetch failed")
	}
	defer m.bm.ReleaseBuffer(bufID)
	// acquire exclusive content lock for buffer to change
	m.bm.AcquireContentLock(bufID)
	locked := true
	unlock := func() {
		if locked {
			m.bm.ReleaseContentLock(bufID)
			locked = false
		}
	}
	defer unlock()

	p := m.bm.GetPage(bufID)
	tb, res := m.checkModifiable(tx, p, tid, oid)
	if res != TMResultOK {
		return tuple.Tid{}, res, nil
	}
	old, err := tuple.Unmarshal(tb)
	if err != nil {
		return tuple.Tid{}, TMResultInvisible, errors.Wrap(err, "tuple.Unmarshal failed")
	}
	values, err := fn(old.Values)
	if err != nil {
		return tuple.Tid{}, TMResultInvisible, err
	}
	// marshal before stamping, so that too large tuple leaves the old version untouched
	newtb, err := tuple.NewTuple(oid, tx.ID(), values).Marshal()
	if err != nil {
		return tuple.Tid{}, TMResultInvisible, errors.Wrap(err, "tuple.Marshal failed")
	}

	// set xmax current transaction id to delete
	tb.SetXmax(tx.ID())
	m.bm.MarkDirty(bufID)
	tx.Touch(meta.Filename)

	record := func(newTid tuple.Tid) *wal.Record {
		payload := wal.UpdatePayload{
			Table:   meta.Oid,
			OldPage: tid.PageID(),
			OldSlot: tid.SlotIndex(),
			NewPage: newTid.PageID(),
			NewSlot: newTid.SlotIndex(),
			Tuple:   newtb,
		}
		return wal.NewRecord(wal.RecordUpdate, tx.ID(), payload.Marshal())
	}

	// if the page has enough free space, just insert new tuple
	slot, ok, err := m.addItem(meta, tid.PageID(), bufID, newtb)
	if err != nil {
		m.resetXmax(p, tid, tx.ID())
		return tuple.Tid{}, TMResultInvisible, err
	}
	if ok {
		newTid := tuple.NewTid(tid.PageID(), slot)
		if err := m.log(tx, p, record(newTid)); err != nil {
			return tuple.Tid{}, TMResultInvisible, err
		}
		return newTid, TMResultOK, nil
	}

	// if the page doesn't have enough free space, find it like HeapInsert()
	// the content lock is released before, because insertion acquires FSMLock first
	unlock()
	newTid, err := m.insertTuple(tx, meta, newtb, record)
	if err != nil {
		m.bm.AcquireContentLock(bufID)
		locked = true
		m.resetXmax(p, tid, tx.ID())
		m.bm.MarkDirty(bufID)
		return tuple.Tid{}, TMResultInvisible, errors.Wrap(err, "insertTuple failed")
	}
	return newTid, TMResultOK, nil
}

// checkModifiable checks whether the transaction can update/delete the version at tid
// the caller has to hold the content lock
// see https://github.com/postgres/postgres/blob/27b77ecf9f4d5be211900eda54d8155ada50d696/src/backend/access/heap/heapam_visibility.c#L458
func (m *Manager) checkModifiable(tx *transaction.Tx, p page.PagePtr, tid tuple.Tid, oid common.RowOid) (tuple.TupleByte, TMResult) {
	item, err := page.GetItem(p, tid.SlotIndex())
	if err != nil {
		return nil, TMResultInvisible
	}
	tb := tuple.TupleByte(item)
	if tb.Oid() != oid {
		return nil, TMResultInvisible
	}
	if !m.txm.IsVisible(tx, tb.Xmin(), tb.Xmax()) {
		return nil, TMResultInvisible
	}
	if tb.Xmax().IsValid() {
		return nil, TMResultUpdated
	}
	return tb, TMResultOK
}

// resetXmax clears xmax stamped by the transaction. the tuple may have moved by compaction
func (m *Manager) resetXmax(p page.PagePtr, tid tuple.Tid, xid txid.TxID) {
	item, err := page.GetItem(p, tid.SlotIndex())
	if err != nil {
		return
	}
	tb := tuple.TupleByte(item)
	if tb.Xmax() == xid {
		tb.SetXmax(txid.InvalidTxID)
		tb.SetDeleted(false)
	}
}
