/*
Access method
Currently in mini-pg, only heap access method is supported. (index is not supported)

The heap is the table file of slotted pages. every row version is a tuple in some slot.
- insert appends new version into the page with enough space, or the new page
- update stamps xmax on the visible version and appends the new version with the same row oid
- delete stamps xmax and deleted flag on the visible version
- scan returns the versions visible from the snapshot of the transaction
- abort cleanup removes the versions the aborted transaction created and clears its xmax stamps

heap access methods are defined below
https://github.com/postgres/postgres/blob/8e1db29cdbbd218ab6ba53eea56624553c3bef8c/src/backend/access/heap/heapam_handler.c#L2532-L2589
*/
package am

import (
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/lock"
	"github.com/jimingkang/mini-pg/storage/buffer"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/transaction"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/pkg/errors"
)

type Manager struct {
	bm    *buffer.Manager
	txm   *transaction.Manager
	locks *lock.RowLockTable
	// wal can be nil, then nothing is logged
	wal *wal.Writer
}

// NewManager initializes access manager
func NewManager(bm *buffer.Manager, txm *transaction.Manager, locks *lock.RowLockTable, w *wal.Writer) *Manager {
	return &Manager{
		bm:    bm,
		txm:   txm,
		locks: locks,
		wal:   w,
	}
}

// log appends the record of the transaction and sets the lsn to the page
// the caller has to hold the content lock of the page
func (m *Manager) log(tx *transaction.Tx, p page.PagePtr, rec *wal.Record) error {
	if m.wal == nil {
		return nil
	}
	lsn, err := m.wal.Append(rec)
	if err != nil {
		return errors.Wrap(err, "wal.Append failed")
	}
	tx.SetLastLSN(lsn)
	page.SetLSN(p, lsn)
	return nil
}

// scanPages calls fn with every page of the table under the content lock.
// the page is marked dirty when fn returns true
func (m *Manager) scanPages(meta *catalog.TableMeta, fn func(pageID page.PageID, p page.PagePtr) (bool, error)) error {
	for pageID := meta.FirstPage; pageID <= meta.LastPage(); pageID++ {
		bufID, err := m.bm.LoadOrFetch(meta.Filename, pageID)
		if err != nil {
			// the file can be shorter than the catalog says after crash
			if errors.Is(err, common.ErrPageOutOfRange) {
				return nil
			}
			return errors.Wrap(err, "LoadOrFetch failed")
		}
		m.bm.AcquireContentLock(bufID)
		dirty, err := fn(pageID, m.bm.GetPage(bufID))
		if dirty {
			m.bm.MarkDirty(bufID)
		}
		m.bm.ReleaseContentLock(bufID)
		m.bm.ReleaseBuffer(bufID)
		if err != nil {
			return err
		}
	}
	return nil
}

// forEachItem calls fn with every occupied slot of the page
func forEachItem(p page.PagePtr, fn func(idx page.SlotIndex, item page.ItemPtr) error) error {
	n := page.SlotIndex(page.GetSlotCount(p))
	for idx := page.FirstSlotIndex; idx < n; idx++ {
		item, err := page.GetItem(p, idx)
		if err != nil {
			if errors.Is(err, common.ErrSlotNotFound) {
				continue
			}
			return err
		}
		if err := fn(idx, item); err != nil {
			return err
		}
	}
	return nil
}
