package engine

import (
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/metrics"
	"github.com/jimingkang/mini-pg/storage/buffer"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/transaction"
)

// TableStatus is summary of table
type TableStatus struct {
	Oid       common.Relation
	Name      string
	Columns   []catalog.Column
	LastPage  page.PageID
	MaxRowOid common.RowOid
}

// Status is summary of the engine
type Status struct {
	DataDir      string
	Tables       []TableStatus
	Transactions transaction.Status
	Cache        buffer.Stats
	WALSize      int64
	NextLSN      common.LSN
	Metrics      []metrics.Sample
}

// Status returns summary of the engine
func (e *Engine) Status() (Status, error) {
	if err := e.checkClosed(); err != nil {
		return Status{}, err
	}
	s := Status{
		DataDir:      e.cfg.DataDir,
		Transactions: e.txm.Status(),
		Cache:        e.bm.Stats(),
		WALSize:      e.wal.Size(),
		NextLSN:      e.wal.NextLSN(),
	}
	for _, meta := range e.catalog.List() {
		s.Tables = append(s.Tables, TableStatus{
			Oid:       meta.Oid,
			Name:      meta.Name,
			Columns:   meta.Columns,
			LastPage:  meta.LastPage(),
			MaxRowOid: meta.MaxRowOid(),
		})
	}
	samples, err := e.metrics.Gather()
	if err != nil {
		return s, err
	}
	s.Metrics = samples
	return s, nil
}

// Table returns the columns of the table
func (e *Engine) Table(name string) ([]catalog.Column, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	meta, err := e.table(name)
	if err != nil {
		return nil, err
	}
	return append([]catalog.Column(nil), meta.Columns...), nil
}
