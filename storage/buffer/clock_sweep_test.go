package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockSweepTick(t *testing.T) {
	m, err := TestingNewManagerWithBuffers(3)
	require.Nil(t, err)
	assert.Equal(t, FirstBufferID+1, m.clockSweepTick())
	assert.Equal(t, FirstBufferID+2, m.clockSweepTick())
	// the hand wraps around
	assert.Equal(t, FirstBufferID, m.clockSweepTick())
}

func TestAllocateWithClockSweep(t *testing.T) {
	t.Run("without pin", func(t *testing.T) {
		m, err := TestingNewManagerWithNoFreeList()
		require.Nil(t, err)
		assert.Equal(t, FirstBufferID+1, m.allocateWithClockSweep())
		assert.Equal(t, FirstBufferID+2, m.allocateWithClockSweep())
	})
	t.Run("when pinned without unpin", func(t *testing.T) {
		m, err := TestingNewManagerWithNoFreeList()
		require.Nil(t, err)
		victim := FirstBufferID + 1
		m.descriptors[victim].pin()
		// victim must not be evicted
		assert.Equal(t, victim+1, m.allocateWithClockSweep())
	})
	t.Run("when unpinned after pinned", func(t *testing.T) {
		m, err := TestingNewManagerWithNoFreeList()
		require.Nil(t, err)
		victim := FirstBufferID + 1
		desc := m.descriptors[victim]
		desc.pin()
		desc.unpin()
		assert.Equal(t, uint32(1), desc.usageCount)
		// victim must not be evicted
		assert.Equal(t, victim+1, m.allocateWithClockSweep())
		// usage count must be decremented
		assert.Equal(t, uint32(0), desc.usageCount)
	})
	t.Run("when all buffers are pinned", func(t *testing.T) {
		m, err := TestingNewManagerWithBuffers(3)
		require.Nil(t, err)
		for _, desc := range m.descriptors {
			desc.pin()
		}
		assert.Equal(t, InvalidBufferID, m.allocateWithClockSweep())
	})
}
