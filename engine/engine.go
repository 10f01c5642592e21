/*
Engine owns every component of one database instance and exposes the operation surface.
Nothing is global, so several engines with different data directories can live in one process.

the components and their files under the data directory:
- disk manager: <table>.tbl
- page cache (buffer manager): no file, it writes table files through disk manager
- catalog: <table>.meta
- transaction manager: tx_state.tx
- wal writer: pg_wal.log
- row lock table: no file

Open() repairs what crash may have left:
- the catalog counters (last page, max row oid) are raised to what table files contain
- the transactions which were in progress at crash are aborted (their tuples are removed),
  unless wal has their commit record. then they are recorded committed

wal is written but not replayed. durability of commit comes from flushing and syncing
the table files written by the transaction before its commit record.
*/
package engine

import (
	"sync/atomic"

	"github.com/jimingkang/mini-pg/am"
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/config"
	"github.com/jimingkang/mini-pg/lock"
	"github.com/jimingkang/mini-pg/metrics"
	"github.com/jimingkang/mini-pg/storage/buffer"
	"github.com/jimingkang/mini-pg/storage/disk"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/transaction"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Engine is one database instance
type Engine struct {
	cfg     config.Config
	metrics *metrics.Metrics

	dm      *disk.Manager
	bm      *buffer.Manager
	wal     *wal.Writer
	txm     *transaction.Manager
	catalog *catalog.Catalog
	locks   *lock.RowLockTable
	am      *am.Manager

	closed atomic.Bool
}

// Open opens the database in cfg.DataDir. the directory is created when it does not exist
func Open(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	e := &Engine{
		cfg:     cfg,
		metrics: metrics.New(),
	}

	var err error
	e.dm, err = disk.NewManager(cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "disk.NewManager failed")
	}
	e.wal, err = wal.Open(cfg.WALPath(), e.metrics)
	if err != nil {
		e.dm.Close()
		return nil, errors.Wrap(err, "wal.Open failed")
	}
	e.txm, err = transaction.NewManager(cfg.DataDir, cfg.MaxTransactions, e.wal, e.metrics)
	if err != nil {
		e.closeFiles()
		return nil, errors.Wrap(err, "transaction.NewManager failed")
	}
	e.txm.SetSyncCommit(cfg.SyncCommit)
	e.catalog, err = catalog.Open(cfg.DataDir)
	if err != nil {
		e.closeFiles()
		return nil, errors.Wrap(err, "catalog.Open failed")
	}
	e.bm, err = buffer.NewManager(e.dm, cfg.BufferFrames, cfg.CheckpointWorkers, e.metrics)
	if err != nil {
		e.closeFiles()
		return nil, errors.Wrap(err, "buffer.NewManager failed")
	}
	e.locks = lock.NewRowLockTable(e.metrics.RowLockWaits)
	e.am = am.NewManager(e.bm, e.txm, e.locks, e.wal)

	if err := e.recover(); err != nil {
		e.bm.Close()
		e.closeFiles()
		return nil, errors.Wrap(err, "recover failed")
	}
	log.WithFields(log.Fields{
		"data_dir": cfg.DataDir,
		"tables":   e.catalog.Len(),
		"next_lsn": e.wal.NextLSN(),
	}).Info("engine opened")
	return e, nil
}

// recover repairs the catalog counters and removes the tuples of interrupted transactions
func (e *Engine) recover() error {
	metas := e.catalog.List()
	for _, meta := range metas {
		n, err := e.dm.GetNPages(meta.Filename)
		if err != nil {
			return errors.Wrapf(err, "GetNPages of %s failed", meta.Name)
		}
		if n > 0 && page.PageID(n-1) > meta.LastPage() {
			log.WithFields(log.Fields{
				"table":     meta.Name,
				"last_page": meta.LastPage(),
				"npages":    n,
			}).Warn("table file is longer than catalog")
			meta.SetLastPage(page.PageID(n - 1))
		}
		max, err := e.am.MaxRowOid(meta)
		if err != nil {
			return errors.Wrapf(err, "MaxRowOid of %s failed", meta.Name)
		}
		meta.AdvanceRowOid(max)
	}

	interrupted := e.txm.Interrupted()
	logged, err := e.loggedCommits(interrupted)
	if err != nil {
		return err
	}
	for _, xid := range interrupted {
		if logged[xid] {
			// the state file was not saved after the commit record
			log.WithField("xid", xid).Warn("interrupted transaction has commit record")
			if err := e.txm.ResolveInterrupted(xid, true); err != nil {
				return err
			}
			continue
		}
		for _, meta := range metas {
			res, err := e.am.HeapAbort(xid, meta)
			if err != nil {
				return errors.Wrapf(err, "cleanup of xid %d failed", xid)
			}
			if res.Removed > 0 || res.Reset > 0 {
				log.WithFields(log.Fields{
					"xid":     xid,
					"table":   meta.Name,
					"removed": res.Removed,
					"reset":   res.Reset,
				}).Warn("changes of interrupted transaction are removed")
			}
		}
		if err := e.txm.ResolveInterrupted(xid, false); err != nil {
			return err
		}
	}
	if len(metas) == 0 && len(interrupted) == 0 {
		return nil
	}
	return e.Checkpoint()
}

// loggedCommits returns the transactions among xids whose commit record is in wal
func (e *Engine) loggedCommits(xids []txid.TxID) (map[txid.TxID]bool, error) {
	logged := make(map[txid.TxID]bool)
	if len(xids) == 0 {
		return logged, nil
	}
	recs, err := wal.ReadFile(e.cfg.WALPath())
	if err != nil && !errors.Is(err, wal.ErrCorruptRecord) {
		return nil, errors.Wrap(err, "wal.ReadFile failed")
	}
	for _, rec := range recs {
		if rec.Type == wal.RecordCommit {
			logged[rec.XID] = true
		}
	}
	want := make(map[txid.TxID]bool, len(xids))
	for _, xid := range xids {
		want[xid] = logged[xid]
	}
	return want, nil
}

// Close aborts the transactions in progress, writes a checkpoint and closes the files
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return errors.Wrap(common.ErrEngineClosed, "engine is already closed")
	}
	for _, xid := range e.txm.Status().Active {
		if err := e.abort(xid); err != nil {
			log.WithError(err).WithField("xid", xid).Warn("abort on close failed")
		}
	}
	err := e.checkpoint()
	e.bm.Close()
	if cerr := e.closeFiles(); err == nil {
		err = cerr
	}
	log.WithField("data_dir", e.cfg.DataDir).Info("engine closed")
	return err
}

func (e *Engine) closeFiles() error {
	var first error
	if e.wal != nil {
		first = e.wal.Close()
	}
	if err := e.dm.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

func (e *Engine) checkClosed() error {
	if e.closed.Load() {
		return errors.WithStack(common.ErrEngineClosed)
	}
	return nil
}

// Config returns the configuration of the engine
func (e *Engine) Config() config.Config {
	return e.cfg
}
