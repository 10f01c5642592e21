package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFromFreeList(t *testing.T) {
	m, err := TestingNewManagerWithBuffers(2)
	require.Nil(t, err)

	assert.Equal(t, FirstBufferID, m.allocateFromFreeList())
	assert.Equal(t, FirstBufferID+1, m.allocateFromFreeList())
	assert.Equal(t, freeListInvalidID, m.allocateFromFreeList())

	m.returnToFreeList(FirstBufferID + 1)
	assert.Equal(t, FirstBufferID+1, m.allocateFromFreeList())
	assert.Equal(t, freeListInvalidID, m.allocateFromFreeList())
}
