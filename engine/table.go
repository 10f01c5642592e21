package engine

import (
	"github.com/jimingkang/mini-pg/am"
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/expr"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CreateTable creates the table. the table is created immediately, it is not undone by abort
func (e *Engine) CreateTable(xid txid.TxID, name string, cols []catalog.Column) (common.Relation, error) {
	tx, err := e.activeTx(xid)
	if err != nil {
		return 0, err
	}
	meta, err := e.catalog.Create(name, cols)
	if err != nil {
		return 0, err
	}

	payload := wal.CreateTablePayload{
		Table: meta.Oid,
		Name:  meta.Name,
	}
	for _, c := range meta.Columns {
		payload.Columns = append(payload.Columns, wal.ColumnDef{Name: c.Name, Type: c.Type})
	}
	lsn, err := e.wal.Append(wal.NewRecord(wal.RecordCreateTable, xid, payload.Marshal()))
	if err != nil {
		if derr := e.catalog.Drop(name); derr != nil {
			log.WithError(derr).WithField("table", name).Warn("drop of half created table failed")
		}
		return 0, errors.Wrap(err, "wal.Append failed")
	}
	tx.SetLastLSN(lsn)
	log.WithFields(log.Fields{
		"xid":   xid,
		"table": name,
		"oid":   meta.Oid,
	}).Info("table created")
	return meta.Oid, nil
}

// Insert inserts the row and returns its row oid.
// the values are coerced to the column types
func (e *Engine) Insert(xid txid.TxID, table string, values []tuple.Value) (common.RowOid, error) {
	tx, err := e.activeTx(xid)
	if err != nil {
		return 0, err
	}
	meta, err := e.table(table)
	if err != nil {
		return 0, err
	}
	values, err = meta.CheckValues(values)
	if err != nil {
		return 0, err
	}
	oid, _, err := e.am.HeapInsert(tx, meta, values)
	if err != nil {
		return 0, err
	}
	return oid, nil
}

// Query returns all tuples of the table visible from the transaction in page order
func (e *Engine) Query(xid txid.TxID, table string) ([]tuple.Tuple, error) {
	return e.Select(xid, table, nil)
}

// Select returns the visible tuples which match the predicate. nil predicate matches every tuple
func (e *Engine) Select(xid txid.TxID, table string, where expr.Expr) ([]tuple.Tuple, error) {
	tx, err := e.activeTx(xid)
	if err != nil {
		return nil, err
	}
	meta, err := e.table(table)
	if err != nil {
		return nil, err
	}
	where, err = expr.Bind(meta, where)
	if err != nil {
		return nil, err
	}
	rows, err := e.am.HeapScan(tx, meta)
	if err != nil {
		return nil, err
	}
	rows, err = e.matchingRows(meta, rows, where)
	if err != nil {
		return nil, err
	}
	tuples := make([]tuple.Tuple, len(rows))
	for i, r := range rows {
		tuples[i] = *r.Tuple
	}
	return tuples, nil
}

// matchingRows returns the rows matching the bound predicate
func (e *Engine) matchingRows(meta *catalog.TableMeta, rows []am.Row, where expr.Expr) ([]am.Row, error) {
	matched := []am.Row{}
	for _, r := range rows {
		ok, err := expr.Matches(where, r.Tuple.Values)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d of %s", r.Tuple.Oid, meta.Name)
		}
		if ok {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

/*
Update updates the visible rows matching the predicate and returns the number of updated rows.
per row:
- acquire the row lock
- check the version again under the content lock
- stamp xmax on the old version and insert the new version with the same row oid
- release the row lock

when other transaction has already stamped xmax on the version, the row is skipped (first updater wins)
*/
func (e *Engine) Update(xid txid.TxID, table string, where expr.Expr, set []expr.Assignment) (int, error) {
	tx, err := e.activeTx(xid)
	if err != nil {
		return 0, err
	}
	meta, err := e.table(table)
	if err != nil {
		return 0, err
	}
	where, err = expr.Bind(meta, where)
	if err != nil {
		return 0, err
	}
	set, err = expr.BindAssignments(meta, set)
	if err != nil {
		return 0, err
	}

	// the rows are collected before update so that new versions are not updated again
	rows, err := e.am.HeapScan(tx, meta)
	if err != nil {
		return 0, err
	}
	rows, err = e.matchingRows(meta, rows, where)
	if err != nil {
		return 0, err
	}

	fn := func(old []tuple.Value) ([]tuple.Value, error) {
		values, err := expr.Apply(set, old)
		if err != nil {
			return nil, err
		}
		return meta.CheckValues(values)
	}
	n := 0
	for _, r := range rows {
		_, res, err := e.am.HeapUpdate(tx, meta, r.Tid, r.Tuple.Oid, fn)
		if err != nil {
			return n, errors.Wrapf(err, "update of row %d failed", r.Tuple.Oid)
		}
		if res != am.TMResultOK {
			e.skipped(xid, meta, r, res)
			continue
		}
		n++
	}
	return n, nil
}

// Delete deletes the visible rows matching the predicate and returns the number of deleted rows.
// the row is skipped when other transaction has already updated or deleted it
func (e *Engine) Delete(xid txid.TxID, table string, where expr.Expr) (int, error) {
	tx, err := e.activeTx(xid)
	if err != nil {
		return 0, err
	}
	meta, err := e.table(table)
	if err != nil {
		return 0, err
	}
	where, err = expr.Bind(meta, where)
	if err != nil {
		return 0, err
	}
	rows, err := e.am.HeapScan(tx, meta)
	if err != nil {
		return 0, err
	}
	rows, err = e.matchingRows(meta, rows, where)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, r := range rows {
		res, err := e.am.HeapDelete(tx, meta, r.Tid, r.Tuple.Oid)
		if err != nil {
			return n, errors.Wrapf(err, "delete of row %d failed", r.Tuple.Oid)
		}
		if res != am.TMResultOK {
			e.skipped(xid, meta, r, res)
			continue
		}
		n++
	}
	return n, nil
}

func (e *Engine) skipped(xid txid.TxID, meta *catalog.TableMeta, r am.Row, res am.TMResult) {
	log.WithFields(log.Fields{
		"xid":    xid,
		"table":  meta.Name,
		"row":    r.Tuple.Oid,
		"tid":    r.Tid,
		"result": res,
	}).Debug("row is skipped")
}
