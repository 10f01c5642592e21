/*
the implementation of free list

buffers are linked in free list at first, and the buffer is removed from free list when it is allocated.
the buffer is returned to free list only when loading page into it failed.
so after warm-up, clock sweep decides the buffer to be used.
*/
package buffer

const (
	// this indicates the end of the free list
	freeListInvalidID BufferID = -1
)

// allocateFromFreeList returns buffer from free list.
// this removes the buffer from free list.
// if there is no buffer in free list, just return freeListInvalidID
// the directory latch has to be held
func (m *Manager) allocateFromFreeList() BufferID {
	bufID := m.freeList
	if bufID == freeListInvalidID {
		return freeListInvalidID
	}
	desc := m.descriptors[bufID]
	// remove first buffer from free list
	m.freeList = desc.nextFreeID
	desc.nextFreeID = freeListInvalidID
	return bufID
}

// returnToFreeList puts the buffer on the head of free list
// the directory latch has to be held
func (m *Manager) returnToFreeList(bufID BufferID) {
	desc := m.descriptors[bufID]
	desc.valid = false
	desc.dirty = false
	desc.refCount = 0
	desc.usageCount = 0
	desc.nextFreeID = m.freeList
	m.freeList = bufID
}
