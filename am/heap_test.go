package am

import (
	"strings"
	"testing"

	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user(id int32, name string, age int32) []tuple.Value {
	return []tuple.Value{tuple.Int4(id), tuple.Text(name), tuple.Int4(age)}
}

// insertCommitted inserts the rows in new transaction and commits it
func insertCommitted(t *testing.T, m *Manager, meta *catalog.TableMeta, rows ...[]tuple.Value) []tuple.Tid {
	tx, err := m.txm.Begin()
	require.Nil(t, err)
	tids := make([]tuple.Tid, 0, len(rows))
	for _, values := range rows {
		_, tid, err := m.HeapInsert(tx, meta, values)
		require.Nil(t, err)
		tids = append(tids, tid)
	}
	require.Nil(t, m.txm.Commit(tx.ID()))
	return tids
}

func scanValues(t *testing.T, m *Manager, tx *transaction.Tx, meta *catalog.TableMeta) [][]tuple.Value {
	rows, err := m.HeapScan(tx, meta)
	require.Nil(t, err)
	out := [][]tuple.Value{}
	for _, r := range rows {
		out = append(out, r.Tuple.Values)
	}
	return out
}

func TestHeapInsert(t *testing.T) {
	m, meta := TestingNewManager(t)

	tx1, err := m.txm.Begin()
	require.Nil(t, err)
	oid1, tid1, err := m.HeapInsert(tx1, meta, user(1, "alice", 30))
	require.Nil(t, err)
	oid2, tid2, err := m.HeapInsert(tx1, meta, user(2, "bob", 25))
	require.Nil(t, err)

	assert.Equal(t, common.RowOid(1), oid1)
	assert.Equal(t, common.RowOid(2), oid2)
	assert.Equal(t, tuple.NewTid(page.FirstPageID, page.FirstSlotIndex), tid1)
	assert.Equal(t, tuple.NewTid(page.FirstPageID, page.FirstSlotIndex+1), tid2)
	assert.Equal(t, []string{meta.Filename}, tx1.Touched())

	// the tuple is stamped with the transaction
	bufID, err := m.bm.LoadOrFetch(meta.Filename, page.FirstPageID)
	require.Nil(t, err)
	item, err := page.GetItem(m.bm.GetPage(bufID), tid1.SlotIndex())
	require.Nil(t, err)
	assert.Equal(t, tx1.ID(), tuple.TupleByte(item).Xmin())
	assert.True(t, m.bm.IsDirty(bufID))
	m.bm.ReleaseBuffer(bufID)
}

func TestHeapScanVisibility(t *testing.T) {
	m, meta := TestingNewManager(t)

	tx1, err := m.txm.Begin()
	require.Nil(t, err)
	_, _, err = m.HeapInsert(tx1, meta, user(1, "alice", 30))
	require.Nil(t, err)

	// tx2 begins while tx1 is in progress
	tx2, err := m.txm.Begin()
	require.Nil(t, err)

	// own insertion is visible, the other one's is not
	assert.Equal(t, [][]tuple.Value{user(1, "alice", 30)}, scanValues(t, m, tx1, meta))
	assert.Empty(t, scanValues(t, m, tx2, meta))

	require.Nil(t, m.txm.Commit(tx1.ID()))
	// tx1 was in progress when tx2 began
	assert.Empty(t, scanValues(t, m, tx2, meta))

	tx3, err := m.txm.Begin()
	require.Nil(t, err)
	assert.Equal(t, [][]tuple.Value{user(1, "alice", 30)}, scanValues(t, m, tx3, meta))
}

func TestHeapInsertExtendsTable(t *testing.T) {
	m, meta := TestingNewManager(t)
	tx, err := m.txm.Begin()
	require.Nil(t, err)

	// two large tuples fill one page
	name := strings.Repeat("x", 1700)
	var tids []tuple.Tid
	for i := int32(0); i < 5; i++ {
		_, tid, err := m.HeapInsert(tx, meta, user(i, name, i))
		require.Nil(t, err)
		tids = append(tids, tid)
	}
	assert.Equal(t, page.PageID(0), tids[0].PageID())
	assert.Equal(t, page.PageID(0), tids[1].PageID())
	assert.Equal(t, page.PageID(1), tids[2].PageID())
	assert.Equal(t, page.PageID(2), tids[4].PageID())
	assert.Equal(t, page.PageID(2), meta.LastPage())

	assert.Len(t, scanValues(t, m, tx, meta), 5)
}

func TestHeapInsertTooLarge(t *testing.T) {
	m, meta := TestingNewManager(t)
	tx, err := m.txm.Begin()
	require.Nil(t, err)

	_, _, err = m.HeapInsert(tx, meta, user(1, strings.Repeat("x", page.DataSize), 1))
	assert.ErrorIs(t, err, common.ErrPageFull)
	assert.Equal(t, common.KindCapacityExceeded, common.KindOf(err))
	assert.Empty(t, scanValues(t, m, tx, meta))
}

func TestHeapInsertLargeTuple(t *testing.T) {
	// user tuple is 27 bytes plus the name
	tests := []struct {
		name     string
		nameLen  int
		expected []page.PageID
	}{
		{
			name:     "larger than half page",
			nameLen:  2500,
			expected: []page.PageID{0, 1},
		},
		{
			name:     "fills whole page",
			nameLen:  page.DataSize - 27,
			expected: []page.PageID{0, 1},
		},
		{
			name:     "two fit into one page",
			nameLen:  page.DataSize/2 - 27,
			expected: []page.PageID{0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, meta := TestingNewManager(t)
			tx, err := m.txm.Begin()
			require.Nil(t, err)

			name := strings.Repeat("x", tt.nameLen)
			for i, expected := range tt.expected {
				_, tid, err := m.HeapInsert(tx, meta, user(int32(i), name, 1))
				require.Nil(t, err)
				assert.Equal(t, expected, tid.PageID())
			}
			assert.Len(t, scanValues(t, m, tx, meta), len(tt.expected))
		})
	}
}

func setAge(age int32) UpdateFunc {
	return func(old []tuple.Value) ([]tuple.Value, error) {
		values := append([]tuple.Value(nil), old...)
		values[2] = tuple.Int4(age)
		return values, nil
	}
}

func TestHeapUpdate(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		samePage bool
	}{
		{
			name:     "same page",
			userName: "alice",
			samePage: true,
		},
		{
			name:     "other page",
			userName: strings.Repeat("a", 1700),
			samePage: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, meta := TestingNewManager(t)
			tids := insertCommitted(t, m, meta, user(1, tt.userName, 30), user(2, tt.userName, 40))

			tx, err := m.txm.Begin()
			require.Nil(t, err)
			newTid, res, err := m.HeapUpdate(tx, meta, tids[0], 1, setAge(31))
			require.Nil(t, err)
			assert.Equal(t, TMResultOK, res)
			assert.Equal(t, tt.samePage, newTid.PageID() == tids[0].PageID())

			rows, err := m.HeapScan(tx, meta)
			require.Nil(t, err)
			require.Len(t, rows, 2)
			ages := map[common.RowOid]int32{}
			for _, r := range rows {
				ages[r.Tuple.Oid] = r.Tuple.Values[2].Int()
			}
			assert.Equal(t, map[common.RowOid]int32{1: 31, 2: 40}, ages)

			// the old version has xmax of the updater
			bufID, err := m.bm.LoadOrFetch(meta.Filename, tids[0].PageID())
			require.Nil(t, err)
			item, err := page.GetItem(m.bm.GetPage(bufID), tids[0].SlotIndex())
			require.Nil(t, err)
			assert.Equal(t, tx.ID(), tuple.TupleByte(item).Xmax())
			m.bm.ReleaseBuffer(bufID)
		})
	}
}

func TestHeapUpdateFirstUpdaterWins(t *testing.T) {
	m, meta := TestingNewManager(t)
	tids := insertCommitted(t, m, meta, user(1, "alice", 30))

	tx1, err := m.txm.Begin()
	require.Nil(t, err)
	tx2, err := m.txm.Begin()
	require.Nil(t, err)

	_, res, err := m.HeapUpdate(tx1, meta, tids[0], 1, setAge(31))
	require.Nil(t, err)
	assert.Equal(t, TMResultOK, res)

	// tx2 still sees the old version, but it has been stamped by tx1
	assert.Equal(t, [][]tuple.Value{user(1, "alice", 30)}, scanValues(t, m, tx2, meta))
	_, res, err = m.HeapUpdate(tx2, meta, tids[0], 1, setAge(99))
	require.Nil(t, err)
	assert.Equal(t, TMResultUpdated, res)

	res, err = m.HeapDelete(tx2, meta, tids[0], 1)
	require.Nil(t, err)
	assert.Equal(t, TMResultUpdated, res)

	// the row lock has been released after each row
	assert.False(t, m.locks.Holder(meta.Name, 1).IsValid())
}

func TestHeapUpdateInvisible(t *testing.T) {
	m, meta := TestingNewManager(t)
	tids := insertCommitted(t, m, meta, user(1, "alice", 30))
	tx, err := m.txm.Begin()
	require.Nil(t, err)

	tests := []struct {
		name string
		tid  tuple.Tid
		oid  common.RowOid
	}{
		{
			name: "row oid does not match",
			tid:  tids[0],
			oid:  2,
		},
		{
			name: "slot does not exist",
			tid:  tuple.NewTid(tids[0].PageID(), 10),
			oid:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, res, err := m.HeapUpdate(tx, meta, tt.tid, tt.oid, setAge(1))
			assert.Nil(t, err)
			assert.Equal(t, TMResultInvisible, res)
		})
	}
}

func TestHeapDelete(t *testing.T) {
	m, meta := TestingNewManager(t)
	tids := insertCommitted(t, m, meta, user(1, "alice", 30), user(2, "bob", 25))

	tx1, err := m.txm.Begin()
	require.Nil(t, err)
	tx2, err := m.txm.Begin()
	require.Nil(t, err)

	res, err := m.HeapDelete(tx1, meta, tids[0], 1)
	require.Nil(t, err)
	assert.Equal(t, TMResultOK, res)

	assert.Equal(t, [][]tuple.Value{user(2, "bob", 25)}, scanValues(t, m, tx1, meta))
	// the deletion is not committed yet
	assert.Len(t, scanValues(t, m, tx2, meta), 2)

	// deleting it again finds nothing visible
	res, err = m.HeapDelete(tx1, meta, tids[0], 1)
	require.Nil(t, err)
	assert.Equal(t, TMResultInvisible, res)

	require.Nil(t, m.txm.Commit(tx1.ID()))
	tx3, err := m.txm.Begin()
	require.Nil(t, err)
	assert.Equal(t, [][]tuple.Value{user(2, "bob", 25)}, scanValues(t, m, tx3, meta))
}

func TestHeapAbort(t *testing.T) {
	m, meta := TestingNewManager(t)
	tids := insertCommitted(t, m, meta, user(1, "alice", 30), user(2, "bob", 25))

	tx, err := m.txm.Begin()
	require.Nil(t, err)
	_, _, err = m.HeapInsert(tx, meta, user(3, "carol", 20))
	require.Nil(t, err)
	_, res, err := m.HeapUpdate(tx, meta, tids[0], 1, setAge(31))
	require.Nil(t, err)
	require.Equal(t, TMResultOK, res)
	res, err = m.HeapDelete(tx, meta, tids[1], 2)
	require.Nil(t, err)
	require.Equal(t, TMResultOK, res)

	got, err := m.HeapAbort(tx.ID(), meta)
	require.Nil(t, err)
	// inserted tuple and new version of the update
	assert.Equal(t, 2, got.Removed)
	// old version of the update and the deleted tuple
	assert.Equal(t, 2, got.Reset)
	require.Nil(t, m.txm.Abort(tx.ID()))

	tx2, err := m.txm.Begin()
	require.Nil(t, err)
	assert.Equal(t, [][]tuple.Value{user(1, "alice", 30), user(2, "bob", 25)}, scanValues(t, m, tx2, meta))

	// the old version can be updated again
	_, res, err = m.HeapUpdate(tx2, meta, tids[0], 1, setAge(32))
	require.Nil(t, err)
	assert.Equal(t, TMResultOK, res)

	// nothing is left to clean up
	got, err = m.HeapAbort(tx.ID(), meta)
	require.Nil(t, err)
	assert.Equal(t, AbortResult{}, got)
}

func TestMaxRowOid(t *testing.T) {
	m, meta := TestingNewManager(t)

	max, err := m.MaxRowOid(meta)
	require.Nil(t, err)
	assert.Equal(t, common.RowOid(0), max)

	insertCommitted(t, m, meta, user(1, "alice", 30), user(2, "bob", 25), user(3, "carol", 20))
	max, err = m.MaxRowOid(meta)
	require.Nil(t, err)
	assert.Equal(t, common.RowOid(3), max)
}

func TestHeapAbortFreesSpace(t *testing.T) {
	m, meta := TestingNewManager(t)
	name := strings.Repeat("x", 1700)

	tx, err := m.txm.Begin()
	require.Nil(t, err)
	for i := int32(0); i < 4; i++ {
		_, _, err := m.HeapInsert(tx, meta, user(i, name, i))
		require.Nil(t, err)
	}
	require.Equal(t, page.PageID(1), meta.LastPage())
	_, found := meta.FreeSpace.Search(1727)
	assert.False(t, found, "both pages are full")

	_, err = m.HeapAbort(tx.ID(), meta)
	require.Nil(t, err)
	require.Nil(t, m.txm.Abort(tx.ID()))

	// the space of the aborted tuples is reused without extension
	tx2, err := m.txm.Begin()
	require.Nil(t, err)
	_, tid, err := m.HeapInsert(tx2, meta, user(5, name, 5))
	require.Nil(t, err)
	assert.Equal(t, page.PageID(0), tid.PageID())
	assert.Equal(t, page.PageID(1), meta.LastPage())
}
