/*
mini-pg adopts MVCC (Multi Version Concurrency Control) like postgres.
Every tuple version carries the visibility information:
- xmin: what transaction inserts the tuple (begin time)
- xmax: what transaction updates/deletes the tuple (end time)

update/delete does not remove the tuple physically. it stamps xmax on the old version
(and update appends the new version). The transaction can be aborted finally,
so the commit status has to be persistent on disk. mini-pg keeps it in the commit bitmap
which is saved in the state file together with the slot table.

Transaction manager owns:
- the slot table of in-progress transactions (the number of concurrent transactions is bounded)
- transaction id allocation
- the oldest active transaction id, which becomes the snapshot of the new transaction
- the commit bitmap

Every mutation is done under the latch of the manager.
The state file is saved on begin (so that a transaction id is never issued twice) and on every commit/abort.

Writers block writers: when the row has been updated by other in-progress transaction,
the writer has to wait for the row lock, see lock package.
*/
package transaction

import (
	"path/filepath"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/lock"
	"github.com/jimingkang/mini-pg/metrics"
	"github.com/jimingkang/mini-pg/transaction/clog"
	"github.com/jimingkang/mini-pg/transaction/snapshot"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxTransactions is the default number of slots
const DefaultMaxTransactions = 10

// Manager is transaction manager
type Manager struct {
	latch lock.LWLock

	tm    *txid.Manager
	clog  *clog.Bitmap
	slots []slotEntry
	// active is in-progress transactions keyed by id
	active map[txid.TxID]*Tx
	// oldest is the oldest in-progress transaction id. next transaction id when nothing is in progress
	oldest txid.TxID
	// interrupted is transactions which were in progress when the engine stopped last time
	interrupted []txid.TxID

	// statePath is the path of state file. empty means the state is not persisted
	statePath string
	wal       *wal.Writer
	// syncCommit syncs the commit record before commit returns
	syncCommit bool
	metrics    *metrics.Metrics
}

// NewManager initializes transaction manager and restores the state from the state file in dir.
// dir can be empty, then the state is kept only in memory. w and mt can be nil
func NewManager(dir string, maxTx int, w *wal.Writer, mt *metrics.Metrics) (*Manager, error) {
	if maxTx <= 0 {
		maxTx = DefaultMaxTransactions
	}
	m := &Manager{
		tm:         txid.NewManager(),
		clog:       clog.NewBitmap(),
		slots:      make([]slotEntry, maxTx),
		active:     make(map[txid.TxID]*Tx),
		wal:        w,
		syncCommit: true,
		metrics:    mt,
	}
	if dir != "" {
		m.statePath = filepath.Join(dir, StateFileName)
	}
	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

// restore loads the state file. the transactions in progress at crash are kept as interrupted
func (m *Manager) restore() error {
	m.oldest = m.tm.NextTxID()
	if m.statePath == "" {
		return nil
	}
	img, ok, err := readStateFile(m.statePath)
	if err != nil {
		return errors.Wrap(err, "readStateFile failed")
	}
	if !ok {
		return m.save()
	}

	m.tm = txid.NewManagerFrom(img.nextXID)
	if err := m.clog.UnmarshalBinary(img.bitmap); err != nil {
		return errors.Wrap(err, "restore commit bitmap failed")
	}
	for _, s := range img.slots {
		if s.state != StateInProgress || !s.xid.IsValid() {
			continue
		}
		m.clog.ClearCommitted(s.xid)
		m.interrupted = append(m.interrupted, s.xid)
	}
	m.oldest = m.tm.NextTxID()
	if len(m.interrupted) > 0 {
		log.WithFields(log.Fields{
			"xids": m.interrupted,
		}).Warn("transactions interrupted by crash are found")
	}
	log.WithFields(log.Fields{
		"next_xid":  img.nextXID,
		"committed": m.clog.Count(),
	}).Debug("transaction state restored")
	return m.save()
}

// Interrupted returns the transactions which were in progress when the engine stopped last time.
// their tuples have to be removed by the caller
func (m *Manager) Interrupted() []txid.TxID {
	m.latch.Acquire()
	defer m.latch.Release()
	return append([]txid.TxID(nil), m.interrupted...)
}

// Begin begins transaction
// see https://github.com/postgres/postgres/blob/20432f8731404d2cef2a155144aca5ab3ae98e95/src/backend/access/transam/xact.c#L2925
func (m *Manager) Begin() (*Tx, error) {
	m.latch.Acquire()
	defer m.latch.Release()

	slot := -1
	for i, s := range m.slots {
		if s.isFree() {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, errors.WithStack(common.ErrTooManyTransactions)
	}

	// allocate new transaction id
	xid := m.tm.AllocateNewTxID()
	if len(m.active) == 0 {
		m.oldest = xid
	}
	tx := newTransaction(xid, slot, snapshot.NewSnapshot(xid, m.oldest))
	m.slots[slot] = slotEntry{xid: xid, state: StateInProgress}
	m.active[xid] = tx

	if err := m.save(); err != nil {
		m.release(tx)
		return nil, err
	}
	if m.wal != nil {
		lsn, err := m.wal.Append(wal.NewRecord(wal.RecordBegin, xid, nil))
		if err != nil {
			m.release(tx)
			return nil, errors.Wrap(err, "wal.Append failed")
		}
		tx.SetLastLSN(lsn)
	}
	if m.metrics != nil {
		m.metrics.ActiveTransactions.Inc()
	}
	log.WithFields(log.Fields{
		"xid":      xid,
		"snapshot": m.oldest,
	}).Debug("transaction began")
	return tx, nil
}

// Get returns the in-progress transaction
func (m *Manager) Get(xid txid.TxID) (*Tx, error) {
	m.latch.Acquire()
	defer m.latch.Release()
	return m.get(xid)
}

func (m *Manager) get(xid txid.TxID) (*Tx, error) {
	if tx, ok := m.active[xid]; ok && !tx.State().IsCompleted() {
		return tx, nil
	}
	// the transaction id which has been issued is already finished
	if xid.IsValid() && xid.Precedes(m.tm.NextTxID()) {
		return nil, errors.Wrapf(common.ErrNotActive, "xid %d", xid)
	}
	return nil, errors.Wrapf(common.ErrNoSuchTransaction, "xid %d", xid)
}

// SetSyncCommit sets whether the commit record is synced before commit returns.
// without sync, the committed transaction can be lost by os crash (not by process crash)
func (m *Manager) SetSyncCommit(sync bool) {
	m.latch.Acquire()
	defer m.latch.Release()
	m.syncCommit = sync
}

// Commit commits transaction.
// the commit record is synced before the bitmap is updated, and the state file is saved before return.
// failure of the state file save is only logged
func (m *Manager) Commit(xid txid.TxID) error {
	m.latch.Acquire()
	defer m.latch.Release()

	tx, err := m.get(xid)
	if err != nil {
		return err
	}
	if m.wal != nil {
		rec := wal.NewRecord(wal.RecordCommit, xid, nil)
		var lsn common.LSN
		if m.syncCommit {
			lsn, err = m.wal.AppendSync(rec)
		} else {
			lsn, err = m.wal.Append(rec)
		}
		if err != nil {
			return errors.Wrap(err, "wal append of commit record failed")
		}
		tx.SetLastLSN(lsn)
	}
	m.clog.SetCommitted(xid)
	tx.setState(StateCommitted)
	m.release(tx)
	// the commit record is durable here, so the commit is not reported as failure.
	// the stale state file is fixed by the next save, and the restore after crash finds the commit record
	if err := m.save(); err != nil {
		log.WithError(err).WithField("xid", xid).Error("state file save after commit failed")
	}
	m.finished(xid, metrics.OutcomeCommit)
	return nil
}

// Abort aborts transaction.
// the tuples written by the transaction have to be removed by the caller before abort
func (m *Manager) Abort(xid txid.TxID) error {
	m.latch.Acquire()
	defer m.latch.Release()

	tx, err := m.get(xid)
	if err != nil {
		return err
	}
	if m.wal != nil {
		lsn, err := m.wal.Append(wal.NewRecord(wal.RecordAbort, xid, nil))
		if err != nil {
			return errors.Wrap(err, "wal.Append failed")
		}
		tx.SetLastLSN(lsn)
	}
	m.clog.ClearCommitted(xid)
	tx.setState(StateAborted)
	m.release(tx)
	if err := m.save(); err != nil {
		return err
	}
	m.finished(xid, metrics.OutcomeAbort)
	return nil
}

// ResolveInterrupted records the outcome of the interrupted transaction and forgets it.
// committed is true when the commit record of the transaction is found in wal,
// otherwise its tuples have to be removed before this is called and abort is logged
func (m *Manager) ResolveInterrupted(xid txid.TxID, committed bool) error {
	m.latch.Acquire()
	defer m.latch.Release()
	for i, id := range m.interrupted {
		if id != xid {
			continue
		}
		if committed {
			m.clog.SetCommitted(xid)
		} else if m.wal != nil {
			if _, err := m.wal.Append(wal.NewRecord(wal.RecordAbort, xid, nil)); err != nil {
				return errors.Wrap(err, "wal.Append failed")
			}
		}
		m.interrupted = append(m.interrupted[:i], m.interrupted[i+1:]...)
		return nil
	}
	return errors.Wrapf(common.ErrNoSuchTransaction, "xid %d is not interrupted", xid)
}

// release frees the slot and recomputes the oldest active transaction id
func (m *Manager) release(tx *Tx) {
	m.slots[tx.slot] = slotEntry{}
	delete(m.active, tx.id)
	if tx.id != m.oldest {
		return
	}
	m.oldest = m.tm.NextTxID()
	for id := range m.active {
		if id.Precedes(m.oldest) {
			m.oldest = id
		}
	}
}

func (m *Manager) finished(xid txid.TxID, outcome string) {
	if m.metrics != nil {
		m.metrics.ActiveTransactions.Dec()
		m.metrics.Transactions.WithLabelValues(outcome).Inc()
	}
	log.WithFields(log.Fields{
		"xid":     xid,
		"outcome": outcome,
	}).Debug("transaction finished")
}

// Save saves the state file
func (m *Manager) Save() error {
	m.latch.Acquire()
	defer m.latch.Release()
	return m.save()
}

func (m *Manager) save() error {
	if m.statePath == "" {
		return nil
	}
	bm, err := m.clog.MarshalBinary()
	if err != nil {
		return err
	}
	img := stateImage{
		nextXID:   m.tm.NextTxID(),
		oldestXID: m.oldest,
		slots:     append([]slotEntry(nil), m.slots...),
		bitmap:    bm,
	}
	return errors.Wrap(writeStateFile(m.statePath, img), "writeStateFile failed")
}

// IsCommitted checks whether the transaction has been committed
func (m *Manager) IsCommitted(xid txid.TxID) bool {
	return m.clog.IsCommitted(xid)
}

// IsVisible checks whether the tuple version is visible from the transaction
func (m *Manager) IsVisible(tx *Tx, xmin, xmax txid.TxID) bool {
	return tx.Snapshot().IsVisible(xmin, xmax, m.clog)
}

// Status is summary of transaction manager
type Status struct {
	NextTxID   txid.TxID
	OldestTxID txid.TxID
	Active     []txid.TxID
	Slots      int
	Committed  uint64
}

// Status returns summary of transaction manager
func (m *Manager) Status() Status {
	m.latch.Acquire()
	defer m.latch.Release()
	active := make([]txid.TxID, 0, len(m.active))
	for _, s := range m.slots {
		if s.state == StateInProgress {
			active = append(active, s.xid)
		}
	}
	return Status{
		NextTxID:   m.tm.NextTxID(),
		OldestTxID: m.oldest,
		Active:     active,
		Slots:      len(m.slots),
		Committed:  m.clog.Count(),
	}
}
