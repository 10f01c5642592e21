package transaction

import (
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateImage(t *testing.T) {
	img := stateImage{
		nextXID:   12,
		oldestXID: 9,
		slots: []slotEntry{
			{xid: 9, state: StateInProgress},
			{},
			{xid: 11, state: StateInProgress},
		},
		bitmap: []byte{1, 2, 3},
	}
	b := img.marshal()
	got, err := unmarshalStateImage(b)
	require.Nil(t, err)
	assert.Equal(t, img, got)

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "too short",
			data: b[:10],
		},
		{
			name: "truncated",
			data: b[:len(b)-1],
		},
		{
			name: "checksum mismatch",
			data: append(append([]byte{}, b[:len(b)-1]...), b[len(b)-1]^0xFF),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unmarshalStateImage(tt.data)
			assert.ErrorIs(t, err, common.ErrCorrupted)
		})
	}
}

func TestSlotEntryIsFree(t *testing.T) {
	assert.True(t, slotEntry{}.isFree())
	assert.False(t, slotEntry{xid: 3, state: StateInProgress}.isFree())
	assert.False(t, slotEntry{xid: 3, state: StateCommitted}.isFree())
}
