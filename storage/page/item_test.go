package page

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem(t *testing.T) {
	page := NewPagePtr()
	InitializePage(page, 10)

	idx, err := AddItem(page, ItemPtr{1, 2, 3})
	assert.Nil(t, err)
	assert.Equal(t, SlotIndex(0), idx)

	idx, err = AddItem(page, ItemPtr{4, 5})
	assert.Nil(t, err)
	assert.Equal(t, SlotIndex(1), idx)

	got, err := GetItem(page, 0)
	assert.Nil(t, err)
	assert.Equal(t, ItemPtr{1, 2, 3}, got)
	got, err = GetItem(page, 1)
	assert.Nil(t, err)
	assert.Equal(t, ItemPtr{4, 5}, got)

	assert.Equal(t, uint16(2), GetSlotCount(page))
	assert.Equal(t, uint16(2), GetTupleCount(page))
}

func TestAddItemFailure(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(p PagePtr)
		item     ItemPtr
		expected error
	}{
		{
			name:     "item is too large",
			prepare:  func(p PagePtr) {},
			item:     make(ItemPtr, MaxItemSize+1),
			expected: common.ErrPageFull,
		},
		{
			name: "heap is full",
			prepare: func(p PagePtr) {
				_, err := AddItem(p, make(ItemPtr, DataSize-10))
				require.Nil(t, err)
			},
			item:     make(ItemPtr, 11),
			expected: common.ErrPageFull,
		},
		{
			name: "slot directory is full",
			prepare: func(p PagePtr) {
				for i := 0; i < MaxSlots; i++ {
					_, err := AddItem(p, ItemPtr{byte(i)})
					require.Nil(t, err)
				}
			},
			item:     ItemPtr{1},
			expected: common.ErrSlotDirectoryFull,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPagePtr()
			InitializePage(page, 10)
			tt.prepare(page)
			before := *page

			idx, err := AddItem(page, tt.item)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, InvalidSlotIndex, idx)
			assert.Equal(t, common.KindCapacityExceeded, common.KindOf(err))
			assert.Equal(t, before, *page)
		})
	}
}

func TestAddItemCompactsPage(t *testing.T) {
	page := NewPagePtr()
	InitializePage(page, 10)

	_, err := AddItem(page, make(ItemPtr, 2000))
	require.Nil(t, err)
	_, err = AddItem(page, bytes.Repeat([]byte{7}, 1000))
	require.Nil(t, err)
	require.Nil(t, DeleteItem(page, 0))

	// heap gap is 552 bytes, but 2552 bytes are available after compaction
	idx, err := AddItem(page, make(ItemPtr, 1500))
	assert.Nil(t, err)
	assert.Equal(t, SlotIndex(2), idx)

	got, err := GetItem(page, 1)
	assert.Nil(t, err)
	assert.Equal(t, bytes.Repeat([]byte{7}, 1000), []byte(got))
}

func TestDeleteItem(t *testing.T) {
	page, err := TestingNewRandomPage()
	require.Nil(t, err)

	assert.Nil(t, DeleteItem(page, 0))
	assert.Equal(t, uint16(1), GetTupleCount(page))
	assert.Equal(t, uint16(2), GetSlotCount(page))

	// already deleted
	assert.ErrorIs(t, DeleteItem(page, 0), common.ErrSlotNotFound)
	// not allocated
	assert.ErrorIs(t, DeleteItem(page, 5), common.ErrSlotNotFound)

	// deleted slot is not reused
	idx, err := AddItem(page, ItemPtr{1})
	assert.Nil(t, err)
	assert.Equal(t, SlotIndex(2), idx)
}

func TestUpdateItem(t *testing.T) {
	tests := []struct {
		name        string
		item        ItemPtr
		expectedIdx SlotIndex
	}{
		{
			name:        "same size item is overwritten in place",
			item:        ItemPtr{9, 9, 9, 9, 9, 9},
			expectedIdx: 0,
		},
		{
			name:        "smaller item is overwritten in place",
			item:        ItemPtr{9, 9},
			expectedIdx: 0,
		},
		{
			name:        "larger item is moved to new slot",
			item:        ItemPtr{9, 9, 9, 9, 9, 9, 9, 9},
			expectedIdx: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := TestingNewRandomPage()
			require.Nil(t, err)

			idx, err := UpdateItem(page, 0, tt.item)
			assert.Nil(t, err)
			assert.Equal(t, tt.expectedIdx, idx)

			got, err := GetItem(page, idx)
			assert.Nil(t, err)
			assert.Equal(t, tt.item, got)
			assert.Equal(t, uint16(2), GetTupleCount(page))

			// the other item is not affected
			got, err = GetItem(page, 1)
			assert.Nil(t, err)
			assert.Equal(t, ItemPtr{8, 9}, got)
		})
	}
}

func TestUpdateItemRestoresOldItem(t *testing.T) {
	page := NewPagePtr()
	InitializePage(page, 10)
	_, err := AddItem(page, ItemPtr{1, 2, 3})
	require.Nil(t, err)
	_, err = AddItem(page, make(ItemPtr, DataSize-3))
	require.Nil(t, err)

	_, err = UpdateItem(page, 0, ItemPtr{1, 2, 3, 4})
	assert.ErrorIs(t, err, common.ErrPageFull)

	got, err := GetItem(page, 0)
	assert.Nil(t, err)
	assert.Equal(t, ItemPtr{1, 2, 3}, got)
	assert.Equal(t, uint16(2), GetTupleCount(page))
}

func TestFindItemByPrefix(t *testing.T) {
	page := NewPagePtr()
	InitializePage(page, 10)

	for _, oid := range []uint32{1, 2, 3} {
		item := make([]byte, 8)
		binary.LittleEndian.PutUint32(item[0:4], oid)
		binary.LittleEndian.PutUint32(item[4:8], oid*10)
		_, err := AddItem(page, item)
		require.Nil(t, err)
	}
	require.Nil(t, DeleteItem(page, 0))

	prefix := func(oid uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, oid)
		return b
	}
	assert.Equal(t, SlotIndex(1), FindItemByPrefix(page, prefix(2)))
	assert.Equal(t, SlotIndex(2), FindItemByPrefix(page, prefix(3)))
	// deleted item is not found
	assert.Equal(t, InvalidSlotIndex, FindItemByPrefix(page, prefix(1)))
	assert.Equal(t, InvalidSlotIndex, FindItemByPrefix(page, prefix(4)))
}

func TestAvailableSpace(t *testing.T) {
	page := NewPagePtr()
	InitializePage(page, 10)
	assert.Equal(t, DataSize, AvailableSpace(page))

	_, err := AddItem(page, make(ItemPtr, 100))
	require.Nil(t, err)
	_, err = AddItem(page, make(ItemPtr, 50))
	require.Nil(t, err)
	assert.Equal(t, DataSize-150, AvailableSpace(page))

	// the bytes of deleted item are available after compaction
	require.Nil(t, DeleteItem(page, 0))
	assert.Equal(t, DataSize-50, AvailableSpace(page))

	for i := 2; i < MaxSlots; i++ {
		_, err := AddItem(page, ItemPtr{1})
		require.Nil(t, err)
	}
	assert.Equal(t, 0, AvailableSpace(page))
}
