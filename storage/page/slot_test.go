package page

import (
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/stretchr/testify/assert"
)

func TestSlotStatus(t *testing.T) {
	page, err := TestingNewRandomPage()
	assert.Nil(t, err)

	s, err := GetSlot(page, 1)
	assert.Nil(t, err)
	assert.True(t, IsOccupied(s))
	assert.False(t, IsDeleted(s))
	assert.Equal(t, slotStatusUsed, getStatus(s))
	assert.Equal(t, offset(6), getItemOffset(s))
	assert.Equal(t, offset(2), getItemLength(s))
	assert.Equal(t, offset(2), getTupleSize(s))

	assert.Nil(t, DeleteItem(page, 1))
	assert.False(t, IsOccupied(s))
	assert.True(t, IsDeleted(s))
	assert.Equal(t, slotStatusDeleted, getStatus(s))
}

func TestGetSlot(t *testing.T) {
	page, err := TestingNewRandomPage()
	assert.Nil(t, err)

	tests := []struct {
		name    string
		idx     SlotIndex
		wantErr bool
	}{
		{name: "first slot", idx: FirstSlotIndex},
		{name: "last allocated slot", idx: 1},
		{name: "slot is not allocated", idx: 2, wantErr: true},
		{name: "invalid slot index", idx: InvalidSlotIndex, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetSlot(page, tt.idx)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrSlotNotFound)
				return
			}
			assert.Nil(t, err)
		})
	}
}
