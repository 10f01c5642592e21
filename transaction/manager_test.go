package transaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/metrics"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin(t *testing.T) {
	m, _ := TestingNewManager(t, 3)

	tx1, err := m.Begin()
	require.Nil(t, err)
	assert.Equal(t, txid.FirstTxID, tx1.ID())
	assert.Equal(t, StateInProgress, tx1.State())
	assert.Equal(t, tx1.ID(), tx1.Snapshot().Xmin())

	tx2, err := m.Begin()
	require.Nil(t, err)
	assert.Equal(t, txid.TxID(2), tx2.ID())
	// tx1 is still in progress
	assert.Equal(t, tx1.ID(), tx2.Snapshot().Xmin())

	_, err = m.Begin()
	require.Nil(t, err)

	_, err = m.Begin()
	assert.ErrorIs(t, err, common.ErrTooManyTransactions)
	assert.Equal(t, common.KindCapacityExceeded, common.KindOf(err))

	// the slot is reused after commit
	require.Nil(t, m.Commit(tx2.ID()))
	tx4, err := m.Begin()
	require.Nil(t, err)
	assert.Equal(t, txid.TxID(4), tx4.ID())
}

func TestCommitAndAbort(t *testing.T) {
	tests := []struct {
		name     string
		finish   func(m *Manager, xid txid.TxID) error
		state    State
		commited bool
	}{
		{
			name:     "commit",
			finish:   (*Manager).Commit,
			state:    StateCommitted,
			commited: true,
		},
		{
			name:     "abort",
			finish:   (*Manager).Abort,
			state:    StateAborted,
			commited: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := TestingNewManager(t, 2)
			tx, err := m.Begin()
			require.Nil(t, err)

			require.Nil(t, tt.finish(m, tx.ID()))
			assert.Equal(t, tt.state, tx.State())
			assert.Equal(t, tt.commited, m.IsCommitted(tx.ID()))

			// the transaction is not active anymore
			err = tt.finish(m, tx.ID())
			assert.ErrorIs(t, err, common.ErrNotActive)
			assert.Equal(t, common.KindInvalidState, common.KindOf(err))

			// the transaction id has never been issued
			err = tt.finish(m, 100)
			assert.ErrorIs(t, err, common.ErrNoSuchTransaction)
			err = tt.finish(m, txid.InvalidTxID)
			assert.ErrorIs(t, err, common.ErrNoSuchTransaction)
		})
	}
}

func TestOldestActive(t *testing.T) {
	m, _ := TestingNewManager(t, 5)
	tx1, err := m.Begin()
	require.Nil(t, err)
	tx2, err := m.Begin()
	require.Nil(t, err)
	tx3, err := m.Begin()
	require.Nil(t, err)

	// finishing the transaction which is not the oldest does not change oldest
	require.Nil(t, m.Commit(tx2.ID()))
	assert.Equal(t, tx1.ID(), m.Status().OldestTxID)

	require.Nil(t, m.Abort(tx1.ID()))
	assert.Equal(t, tx3.ID(), m.Status().OldestTxID)

	tx4, err := m.Begin()
	require.Nil(t, err)
	assert.Equal(t, tx3.ID(), tx4.Snapshot().Xmin())

	require.Nil(t, m.Commit(tx3.ID()))
	require.Nil(t, m.Commit(tx4.ID()))
	// nothing is in progress
	assert.Equal(t, txid.TxID(5), m.Status().OldestTxID)
	assert.Empty(t, m.Status().Active)
}

func TestVisibilityThroughManager(t *testing.T) {
	m, _ := TestingNewManager(t, 5)
	writer, err := m.Begin()
	require.Nil(t, err)
	reader, err := m.Begin()
	require.Nil(t, err)

	// the writer has not committed
	assert.False(t, m.IsVisible(reader, writer.ID(), txid.InvalidTxID))
	assert.True(t, m.IsVisible(writer, writer.ID(), txid.InvalidTxID))

	require.Nil(t, m.Commit(writer.ID()))
	// the writer was in progress when the reader began
	assert.False(t, m.IsVisible(reader, writer.ID(), txid.InvalidTxID))
	require.Nil(t, m.Commit(reader.ID()))

	later, err := m.Begin()
	require.Nil(t, err)
	assert.True(t, m.IsVisible(later, writer.ID(), txid.InvalidTxID))
}

func TestRestore(t *testing.T) {
	m, dir := TestingNewManager(t, 4)
	committed, err := m.Begin()
	require.Nil(t, err)
	aborted, err := m.Begin()
	require.Nil(t, err)
	running, err := m.Begin()
	require.Nil(t, err)
	require.Nil(t, m.Commit(committed.ID()))
	require.Nil(t, m.Abort(aborted.ID()))

	// reopen without finishing the running transaction, like crash
	m2, err := NewManager(dir, 4, nil, nil)
	require.Nil(t, err)
	assert.True(t, m2.IsCommitted(committed.ID()))
	assert.False(t, m2.IsCommitted(aborted.ID()))
	assert.False(t, m2.IsCommitted(running.ID()))
	assert.Equal(t, []txid.TxID{running.ID()}, m2.Interrupted())

	// transaction id is never issued twice
	tx, err := m2.Begin()
	require.Nil(t, err)
	assert.Equal(t, txid.TxID(4), tx.ID())

	_, err = m2.Get(running.ID())
	assert.ErrorIs(t, err, common.ErrNotActive)

	require.Nil(t, m2.ResolveInterrupted(running.ID(), false))
	assert.Empty(t, m2.Interrupted())
	assert.False(t, m2.IsCommitted(running.ID()))
	assert.ErrorIs(t, m2.ResolveInterrupted(running.ID(), false), common.ErrNoSuchTransaction)
}

func TestRestoreCorruptedStateFile(t *testing.T) {
	m, dir := TestingNewManager(t, 2)
	tx, err := m.Begin()
	require.Nil(t, err)
	require.Nil(t, m.Commit(tx.ID()))

	path := filepath.Join(dir, StateFileName)
	b, err := os.ReadFile(path)
	require.Nil(t, err)
	b[8] ^= 0xFF
	require.Nil(t, os.WriteFile(path, b, 0600))

	_, err = NewManager(dir, 2, nil, nil)
	assert.ErrorIs(t, err, common.ErrCorrupted)
}

func TestManagerWritesWAL(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(filepath.Join(dir, wal.FileName), nil)
	require.Nil(t, err)
	defer w.Close()
	mt := metrics.New()

	m, err := NewManager(dir, 2, w, mt)
	require.Nil(t, err)
	tx1, err := m.Begin()
	require.Nil(t, err)
	tx2, err := m.Begin()
	require.Nil(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(mt.ActiveTransactions))

	require.Nil(t, m.Commit(tx1.ID()))
	require.Nil(t, m.Abort(tx2.ID()))
	assert.Equal(t, float64(0), testutil.ToFloat64(mt.ActiveTransactions))
	assert.Equal(t, float64(1), testutil.ToFloat64(mt.Transactions.WithLabelValues(metrics.OutcomeCommit)))
	assert.Equal(t, float64(1), testutil.ToFloat64(mt.Transactions.WithLabelValues(metrics.OutcomeAbort)))

	recs, err := wal.ReadFile(filepath.Join(dir, wal.FileName))
	require.Nil(t, err)
	types := []wal.RecordType{}
	for _, r := range recs {
		types = append(types, r.Type)
	}
	assert.Equal(t, []wal.RecordType{wal.RecordBegin, wal.RecordBegin, wal.RecordCommit, wal.RecordAbort}, types)
	assert.Equal(t, recs[2].LSN, tx1.LastLSN())
}

func TestCommitWhenStateSaveFails(t *testing.T) {
	m, dir := TestingNewManager(t, 2)
	tx, err := m.Begin()
	require.Nil(t, err)

	// the state file cannot be written anymore
	require.Nil(t, os.RemoveAll(dir))

	assert.Nil(t, m.Commit(tx.ID()))
	assert.True(t, m.IsCommitted(tx.ID()))
	_, err = m.Get(tx.ID())
	assert.ErrorIs(t, err, common.ErrNotActive)
}

func TestResolveInterruptedCommitted(t *testing.T) {
	m, dir := TestingNewManager(t, 2)
	tx, err := m.Begin()
	require.Nil(t, err)

	m2, err := NewManager(dir, 2, nil, nil)
	require.Nil(t, err)
	require.Equal(t, []txid.TxID{tx.ID()}, m2.Interrupted())

	require.Nil(t, m2.ResolveInterrupted(tx.ID(), true))
	assert.True(t, m2.IsCommitted(tx.ID()))
	assert.Empty(t, m2.Interrupted())
}
