package engine

import (
	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/transaction"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Begin begins new transaction
func (e *Engine) Begin() (txid.TxID, error) {
	if err := e.checkClosed(); err != nil {
		return txid.InvalidTxID, err
	}
	tx, err := e.txm.Begin()
	if err != nil {
		return txid.InvalidTxID, err
	}
	return tx.ID(), nil
}

// activeTx returns the in-progress transaction for the data operations
func (e *Engine) activeTx(xid txid.TxID) (*transaction.Tx, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	tx, err := e.txm.Get(xid)
	if err != nil {
		return nil, errors.Wrapf(common.ErrNoActiveTransaction, "xid %d: %v", xid, err)
	}
	return tx, nil
}

/*
Commit commits the transaction

- write the dirty pages of the table files the transaction touched and sync them
- write the commit record (synced), set the commit bit and save the state file (transaction manager)
- release the row locks
- save the meta files of the touched tables

wal is not replayed, so the pages have to be on disk before the commit is acknowledged.
*/
func (e *Engine) Commit(xid txid.TxID) error {
	if err := e.checkClosed(); err != nil {
		return err
	}
	tx, err := e.txm.Get(xid)
	if err != nil {
		return err
	}
	touched := tx.Touched()
	if err := e.syncFiles(touched); err != nil {
		return err
	}
	if err := e.txm.Commit(xid); err != nil {
		return err
	}
	e.locks.UnlockAll(xid)
	return e.saveTables(touched)
}

// Abort aborts the transaction.
// every version created by the transaction is removed and xmax stamped by it is cleared
func (e *Engine) Abort(xid txid.TxID) error {
	if err := e.checkClosed(); err != nil {
		return err
	}
	return e.abort(xid)
}

func (e *Engine) abort(xid txid.TxID) error {
	tx, err := e.txm.Get(xid)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, meta := range e.catalog.List() {
		meta := meta
		g.Go(func() error {
			_, err := e.am.HeapAbort(xid, meta)
			return errors.Wrapf(err, "cleanup of %s", meta.Name)
		})
	}
	cleanupErr := g.Wait()
	if cleanupErr == nil {
		// the removal has to reach disk, the slots of aborted versions must not stay occupied
		cleanupErr = e.syncFiles(tx.Touched())
	}

	// the transaction is aborted even when cleanup fails. its versions are invisible anyway
	if err := e.txm.Abort(xid); err != nil {
		return err
	}
	e.locks.UnlockAll(xid)
	if cleanupErr != nil {
		log.WithError(cleanupErr).WithField("xid", xid).Warn("abort cleanup failed")
		return cleanupErr
	}
	return nil
}

// syncFiles writes the dirty pages of the files and syncs them
func (e *Engine) syncFiles(files []string) error {
	for _, file := range files {
		if _, err := e.bm.FlushFile(file); err != nil {
			return errors.Wrapf(err, "flush %s failed", file)
		}
		if err := e.dm.Sync(file); err != nil {
			return errors.Wrapf(err, "sync %s failed", file)
		}
	}
	return nil
}

// saveTables saves the meta files of the tables whose data file is in files
func (e *Engine) saveTables(files []string) error {
	if len(files) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	for _, meta := range e.catalog.List() {
		if _, ok := set[meta.Filename]; !ok {
			continue
		}
		if err := e.catalog.Save(meta); err != nil {
			return errors.Wrapf(err, "save meta of %s failed", meta.Name)
		}
	}
	return nil
}

// table finds the table meta by name
func (e *Engine) table(name string) (*catalog.TableMeta, error) {
	return e.catalog.Find(name)
}
