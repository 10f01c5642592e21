package engine

import (
	"github.com/jimingkang/mini-pg/wal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

/*
Checkpoint writes every dirty page and syncs the table files, saves the meta files
and the transaction state file, then writes checkpoint record (synced).

mini-pg does not replay wal, so checkpoint record is just a mark of durability boundary
and the log is never truncated.
https://github.com/postgres/postgres/blob/63c844a0a5d70cdbd6ae0470d582d39e75ad8d66/src/backend/access/transam/xlog.c#L6500
*/
func (e *Engine) Checkpoint() error {
	if err := e.checkClosed(); err != nil {
		return err
	}
	return e.checkpoint()
}

func (e *Engine) checkpoint() error {
	n, err := e.bm.FlushAll()
	if err != nil {
		return errors.Wrap(err, "FlushAll failed")
	}
	metas := e.catalog.List()
	for _, meta := range metas {
		if err := e.dm.Sync(meta.Filename); err != nil {
			return errors.Wrapf(err, "sync %s failed", meta.Filename)
		}
	}
	if err := e.catalog.SaveAll(); err != nil {
		return errors.Wrap(err, "catalog.SaveAll failed")
	}
	if err := e.txm.Save(); err != nil {
		return errors.Wrap(err, "save transaction state failed")
	}
	lsn, err := e.wal.AppendSync(wal.NewRecord(wal.RecordCheckpoint, 0, nil))
	if err != nil {
		return errors.Wrap(err, "wal.AppendSync failed")
	}
	log.WithFields(log.Fields{
		"pages":  n,
		"tables": len(metas),
		"lsn":    lsn,
	}).Info("checkpoint")
	return nil
}
