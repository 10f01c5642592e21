package am

import (
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/transaction"
	"github.com/pkg/errors"
)

// Row is the tuple version found by scan with its location
type Row struct {
	Tid   tuple.Tid
	Tuple *tuple.Tuple
}

// HeapScan returns the tuples visible from the transaction in page order
// https://github.com/postgres/postgres/blob/63c844a0a5d70cdbd6ae0470d582d39e75ad8d66/src/backend/access/heap/heapam.c#L1350
func (m *Manager) HeapScan(tx *transaction.Tx, meta *catalog.TableMeta) ([]Row, error) {
	rows := []Row{}
	err := m.scanPages(meta, func(pageID page.PageID, p page.PagePtr) (bool, error) {
		return false, forEachItem(p, func(idx page.SlotIndex, item page.ItemPtr) error {
			tb := tuple.TupleByte(item)
			// check visibility without unmarshaling
			if !m.txm.IsVisible(tx, tb.Xmin(), tb.Xmax()) {
				return nil
			}
			tup, err := tuple.Unmarshal(item)
			if err != nil {
				return errors.Wrapf(err, "tuple %s of %s", tuple.NewTid(pageID, idx), meta.Name)
			}
			rows = append(rows, Row{Tid: tuple.NewTid(pageID, idx), Tuple: tup})
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanPages failed")
	}
	return rows, nil
}

// MaxRowOid returns the largest row oid stored in the table, including invisible versions
// this is used to repair the row oid counter of the catalog after crash
func (m *Manager) MaxRowOid(meta *catalog.TableMeta) (common.RowOid, error) {
	var max common.RowOid
	err := m.scanPages(meta, func(pageID page.PageID, p page.PagePtr) (bool, error) {
		return false, forEachItem(p, func(idx page.SlotIndex, item page.ItemPtr) error {
			if oid := tuple.TupleByte(item).Oid(); oid > max {
				max = oid
			}
			return nil
		})
	})
	if err != nil {
		return 0, errors.Wrap(err, "scanPages failed")
	}
	return max, nil
}
