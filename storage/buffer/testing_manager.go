package buffer

import (
	"github.com/jimingkang/mini-pg/metrics"
	"github.com/jimingkang/mini-pg/storage/disk"
)

// TestingNewManager initializes the page cache on buffer storage
func TestingNewManager() (*Manager, error) {
	return TestingNewManagerWithBuffers(DefaultBufferNum)
}

// TestingNewManagerWithBuffers initializes the page cache with n buffers on buffer storage
func TestingNewManagerWithBuffers(n int) (*Manager, error) {
	return NewManager(disk.TestingNewBufferManager(), n, 2, metrics.New())
}

// TestingNewManagerWithNoFreeList initializes the page cache with no free list
func TestingNewManagerWithNoFreeList() (*Manager, error) {
	m, err := TestingNewManager()
	if err != nil {
		return nil, err
	}
	m.freeList = freeListInvalidID
	return m, nil
}
