package catalog

import (
	"sync/atomic"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/lock"
	"github.com/jimingkang/mini-pg/storage/fsm"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/pkg/errors"
)

// Column is column definition
type Column struct {
	Name string
	Type tuple.Type
}

// TableMeta is catalog record of table
type TableMeta struct {
	Oid      common.Relation
	Name     string
	Filename string
	Columns  []Column
	// FirstPage is the first page of the table file
	FirstPage page.PageID

	// lastPage is the last page of the table file. it grows under ExtensionLock
	lastPage atomic.Uint32
	// maxRowOid is the largest row oid assigned
	maxRowOid atomic.Uint32

	// FreeSpace is the free space map of the table. this is not persisted
	FreeSpace *fsm.Map
	// FSMLock guards the free space search of insert
	FSMLock lock.LWLock
	// ExtensionLock guards the growth of the table file
	ExtensionLock lock.LWLock
}

// newTableMeta initializes table meta
func newTableMeta(oid common.Relation, name string, cols []Column) *TableMeta {
	meta := &TableMeta{
		Oid:       oid,
		Name:      name,
		Filename:  name + ".tbl",
		Columns:   append([]Column(nil), cols...),
		FirstPage: page.FirstPageID,
		FreeSpace: fsm.NewMap(),
	}
	meta.lastPage.Store(uint32(page.FirstPageID))
	return meta
}

// LastPage returns the last page of the table
func (m *TableMeta) LastPage() page.PageID {
	return page.PageID(m.lastPage.Load())
}

// SetLastPage sets the last page of the table. the caller must hold ExtensionLock
func (m *TableMeta) SetLastPage(id page.PageID) {
	m.lastPage.Store(uint32(id))
}

// MaxRowOid returns the largest row oid assigned
func (m *TableMeta) MaxRowOid() common.RowOid {
	return common.RowOid(m.maxRowOid.Load())
}

// NextRowOid assigns new row oid
func (m *TableMeta) NextRowOid() common.RowOid {
	return common.RowOid(m.maxRowOid.Add(1))
}

// AdvanceRowOid raises the row oid counter to oid so that oid is never assigned again
func (m *TableMeta) AdvanceRowOid(oid common.RowOid) {
	for {
		cur := m.maxRowOid.Load()
		if uint32(oid) <= cur || m.maxRowOid.CompareAndSwap(cur, uint32(oid)) {
			return
		}
	}
}

// ColumnIndex returns the index of the column
func (m *TableMeta) ColumnIndex(name string) (int, error) {
	for i, c := range m.Columns {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, common.ErrColumnNotFound
}

// ColumnNames returns names of the columns
func (m *TableMeta) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnTypes returns types of the columns
func (m *TableMeta) ColumnTypes() []tuple.Type {
	types := make([]tuple.Type, len(m.Columns))
	for i, c := range m.Columns {
		types[i] = c.Type
	}
	return types
}

// CheckValues coerces the values to the column types
func (m *TableMeta) CheckValues(values []tuple.Value) ([]tuple.Value, error) {
	if len(values) != len(m.Columns) {
		return nil, errors.Wrapf(common.ErrTypeMismatch, "table %s expects %d values but got %d", m.Name, len(m.Columns), len(values))
	}
	out := make([]tuple.Value, len(values))
	for i, v := range values {
		c, err := v.Coerce(m.Columns[i].Type)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", m.Columns[i].Name)
		}
		out[i] = c
	}
	return out, nil
}
