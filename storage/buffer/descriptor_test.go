package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPin(t *testing.T) {
	desc := &descriptor{}
	for i := 0; i < maxUsageCount+2; i++ {
		desc.pin()
	}
	assert.Equal(t, uint32(maxUsageCount+2), desc.refCount)
	// usage count is saturated
	assert.Equal(t, uint32(maxUsageCount), desc.usageCount)

	desc.unpin()
	assert.Equal(t, uint32(maxUsageCount+1), desc.refCount)
}

func TestUnpinUnpinned(t *testing.T) {
	desc := &descriptor{}
	assert.Panics(t, func() { desc.unpin() })
}

func TestNewDescriptors(t *testing.T) {
	descs := newDescriptors(3)
	assert.Equal(t, BufferID(1), descs[0].nextFreeID)
	assert.Equal(t, BufferID(2), descs[1].nextFreeID)
	assert.Equal(t, freeListInvalidID, descs[2].nextFreeID)
}
