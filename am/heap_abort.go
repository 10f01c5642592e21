package am

import (
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AbortResult is the number of tuples changed by abort cleanup
type AbortResult struct {
	// Removed is the number of versions created by the transaction and removed physically
	Removed int
	// Reset is the number of versions whose xmax stamped by the transaction is cleared
	Reset int
}

// HeapAbort removes the changes of the aborted transaction from the table.
// every page of the table is inspected:
// - the version whose xmin is the transaction is removed (the slot is marked deleted, compaction reclaims it)
// - the version whose xmax is the transaction gets xmax cleared and becomes live again
//
// postgres leaves the aborted versions to vacuum because clog tells they are invisible.
// mini-pg removes them eagerly, so that xmax of an aborted transaction is never seen by the first updater check.
func (m *Manager) HeapAbort(xid txid.TxID, meta *catalog.TableMeta) (AbortResult, error) {
	var res AbortResult
	err := m.scanPages(meta, func(pageID page.PageID, p page.PagePtr) (bool, error) {
		dirty := false
		err := forEachItem(p, func(idx page.SlotIndex, item page.ItemPtr) error {
			tb := tuple.TupleByte(item)
			if tb.Xmin() == xid {
				if err := page.DeleteItem(p, idx); err != nil {
					return errors.Wrap(err, "page.DeleteItem failed")
				}
				res.Removed++
				dirty = true
				return nil
			}
			if tb.Xmax() == xid {
				tb.SetXmax(txid.InvalidTxID)
				tb.SetDeleted(false)
				res.Reset++
				dirty = true
			}
			return nil
		})
		if dirty {
			meta.FreeSpace.Update(pageID, page.AvailableSpace(p))
		}
		return dirty, err
	})
	if err != nil {
		return res, errors.Wrap(err, "scanPages failed")
	}
	if res.Removed > 0 || res.Reset > 0 {
		log.WithFields(log.Fields{
			"xid":     xid,
			"table":   meta.Name,
			"removed": res.Removed,
			"reset":   res.Reset,
		}).Debug("aborted changes are removed")
	}
	return res, nil
}
