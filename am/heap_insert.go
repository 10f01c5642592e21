package am

import (
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/buffer"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/transaction"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

/*
	the logic to insert tuple
	- prepare tuple for insert
	  - assign new row oid
	  - set xmin with current transaction id
	- search the free space map for the page with enough space under FSMLock
	  - the page is compacted when the heap gap is not enough (page.AddItem does it)
	  - if no page has enough space, extend the table under ExtensionLock and retry once
	- add the tuple to the page with exclusive content lock
	- wal log
	- mark buffer dirty
	- release buffer

HeapInsert heap insert
https://github.com/postgres/postgres/blob/8e1db29cdbbd218ab6ba53eea56624553c3bef8c/src/backend/access/heap/heapam_handler.c#L241
*/
func (m *Manager) HeapInsert(tx *transaction.Tx, meta *catalog.TableMeta, values []tuple.Value) (common.RowOid, tuple.Tid, error) {
	oid := meta.NextRowOid()
	tb, err := tuple.NewTuple(oid, tx.ID(), values).Marshal()
	if err != nil {
		return 0, tuple.Tid{}, errors.Wrap(err, "tuple.Marshal failed")
	}

	tid, err := m.insertTuple(tx, meta, tb, func(tid tuple.Tid) *wal.Record {
		payload := wal.InsertPayload{
			Table: meta.Oid,
			Page:  tid.PageID(),
			Slot:  tid.SlotIndex(),
			Tuple: tb,
		}
		return wal.NewRecord(wal.RecordInsert, tx.ID(), payload.Marshal())
	})
	if err != nil {
		return 0, tuple.Tid{}, err
	}
	return oid, tid, nil
}

// insertTuple puts the tuple into the table and logs it with the record made by rec
func (m *Manager) insertTuple(tx *transaction.Tx, meta *catalog.TableMeta, tb tuple.TupleByte, rec func(tid tuple.Tid) *wal.Record) (tuple.Tid, error) {
	// get buffer. this buffer is pinned and content locked, and the tuple has been added
	bufID, pageID, slot, err := m.putTuple(meta, tb)
	if err != nil {
		return tuple.Tid{}, errors.Wrap(err, "putTuple failed")
	}
	defer m.bm.ReleaseBuffer(bufID)
	defer m.bm.ReleaseContentLock(bufID)

	tid := tuple.NewTid(pageID, slot)
	p := m.bm.GetPage(bufID)
	m.bm.MarkDirty(bufID)
	tx.Touch(meta.Filename)
	if err := m.log(tx, p, rec(tid)); err != nil {
		return tuple.Tid{}, err
	}
	return tid, nil
}

// putTuple adds the tuple into the page with enough space
// the page is searched with the free space map of the table, and the map is corrected with the real size of the visited page.
// this returns pinned and exclusive content locked buffer
// https://github.com/postgres/postgres/blob/2dc2e4e31adb71502074c8c2bf9e0766347aa6e5/src/backend/access/heap/hio.c#L333
func (m *Manager) putTuple(meta *catalog.TableMeta, tb tuple.TupleByte) (buffer.BufferID, page.PageID, page.SlotIndex, error) {
	meta.FSMLock.Acquire()
	defer meta.FSMLock.Release()

	// pages which have not been visited yet are unknown in the map
	meta.FreeSpace.Extend(int(meta.LastPage()) + 1)
	for {
		pageID, found := meta.FreeSpace.Search(len(tb))
		if !found {
			break
		}
		bufID, err := m.bm.LoadOrFetch(meta.Filename, pageID)
		if err != nil {
			if errors.Is(err, common.ErrPageOutOfRange) {
				// the file can be shorter than the catalog says after crash
				meta.FreeSpace.Update(pageID, 0)
				continue
			}
			return buffer.InvalidBufferID, page.InvalidPageID, page.InvalidSlotIndex, errors.Wrap(err, "LoadOrFetch failed")
		}
		m.bm.AcquireContentLock(bufID)
		slot, ok, err := m.addItem(meta, pageID, bufID, tb)
		if ok {
			return bufID, pageID, slot, nil
		}
		// if there is not enough free space in page, release content lock and unpin
		// then continue to search enough space. the map has been corrected, so this page is not returned again
		m.bm.ReleaseContentLock(bufID)
		m.bm.ReleaseBuffer(bufID)
		if err != nil {
			return buffer.InvalidBufferID, page.InvalidPageID, page.InvalidSlotIndex, err
		}
	}

	// no page has enough space, extend the table
	bufID, pageID, err := m.extend(meta)
	if err != nil {
		return buffer.InvalidBufferID, page.InvalidPageID, page.InvalidSlotIndex, err
	}
	m.bm.AcquireContentLock(bufID)
	slot, ok, err := m.addItem(meta, pageID, bufID, tb)
	if ok {
		return bufID, pageID, slot, nil
	}
	m.bm.ReleaseContentLock(bufID)
	m.bm.ReleaseBuffer(bufID)
	if err == nil {
		err = errors.Wrapf(common.ErrPageFull, "tuple of %d bytes does not fit into new page", len(tb))
	}
	return buffer.InvalidBufferID, page.InvalidPageID, page.InvalidSlotIndex, err
}

// addItem adds the tuple to the page of the buffer. ok is false when the page does not have enough space
// the free space map is updated with the size left in the page.
// the caller has to hold the content lock
func (m *Manager) addItem(meta *catalog.TableMeta, pageID page.PageID, bufID buffer.BufferID, tb tuple.TupleByte) (page.SlotIndex, bool, error) {
	p := m.bm.GetPage(bufID)
	freeStart := page.GetFreeStart(p)
	slot, err := page.AddItem(p, page.ItemPtr(tb))
	if err == nil {
		meta.FreeSpace.Update(pageID, page.AvailableSpace(p))
		return slot, true, nil
	}
	if common.IsKind(err, common.KindCapacityExceeded) {
		// the page may have been compacted
		if page.GetFreeStart(p) != freeStart {
			m.bm.MarkDirty(bufID)
		}
		meta.FreeSpace.Update(pageID, page.AvailableSpace(p))
		return page.InvalidSlotIndex, false, nil
	}
	return page.InvalidSlotIndex, false, errors.Wrap(err, "page.AddItem failed")
}

// extend appends new page to the table file
// https://github.com/postgres/postgres/blob/2dc2e4e31adb71502074c8c2bf9e0766347aa6e5/src/backend/access/heap/hio.c#L197
func (m *Manager) extend(meta *catalog.TableMeta) (buffer.BufferID, page.PageID, error) {
	meta.ExtensionLock.Acquire()
	defer meta.ExtensionLock.Release()

	bufID, pageID, err := m.bm.Extend(meta.Filename)
	if err != nil {
		return buffer.InvalidBufferID, page.InvalidPageID, errors.Wrap(err, "bm.Extend failed")
	}
	if pageID > meta.LastPage() {
		meta.SetLastPage(pageID)
	}
	log.WithFields(log.Fields{
		"table": meta.Name,
		"page":  pageID,
	}).Debug("table extended")
	return bufID, pageID, nil
}
