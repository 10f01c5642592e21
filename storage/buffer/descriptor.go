/*
Buffer descriptor stores metadata about each buffer.

Metadata in descriptor for cache replacement policy:
Postgres adopts clock sweep algorithm for cache replacement policy, so does mini-pg.
Descriptor has three fields for the cache replacement policy:

1. pin count (or may be called ref count)
- This is used to grasp whether the buffer is now referred by other goroutines.
- If the buffer has been pinned, then the buffer cannot be evicted.
- So the flow is: pin the buffer (via LoadOrFetch())-> do anything with the buffer
- -> unpin the buffer (via ReleaseBuffer()) after the process is completed.
- IMPORTANT: the caller is responsible for ReleaseBuffer() and unpin the buffer

2. usage count
- This is used to grasp whether the buffer is used after clock-sweep inspected the buffer previous time.
- If usage count is 0, then the buffer is considered as not-frequently-used so it can be evicted.
- Usage count is decremented when clock-sweep inspects the buffer.

3. dirty bit
- This is used to grasp whether the page in buffer is updated and not written out to disk yet.
- When clock-sweep tries to evict the buffer, if it is dirty,
- the buffer must be written to disk before evicted.

All fields except content lock are protected with the directory latch of manager.
Postgres packs them into one atomic state field with header spin lock.
mini-pg does not spin, the directory latch parks waiters in FIFO order instead.

see https://github.com/postgres/postgres/blob/a448e49bcbe40fb72e1ed85af910dd216d45bad8/src/include/storage/buf_internals.h#L199-L227
*/
package buffer

import (
	"github.com/jimingkang/mini-pg/lock"
)

// maxUsageCount is the upper limit of usage count
// see https://github.com/postgres/postgres/blob/a448e49bcbe40fb72e1ed85af910dd216d45bad8/src/include/storage/buf_internals.h#L77
const maxUsageCount = 5

// descriptor is buffer descriptor
// see https://github.com/postgres/postgres/blob/a448e49bcbe40fb72e1ed85af910dd216d45bad8/src/include/storage/buf_internals.h#L196-L254
type descriptor struct {
	// buffer tag
	tag tag
	// if valid is false, this buffer hasn't been loaded so tag is invalid
	valid bool
	dirty bool
	// refCount is pin count
	refCount   uint32
	usageCount uint32
	// next free buffer id. this is free list for buffer
	nextFreeID BufferID
	// contentLock for protecting the buffer content read/write
	// in postgres, content lock is defined with LWLock
	contentLock lock.LWLock
}

// newDescriptors initializes descriptors for manager
// all buffers are linked in free list
func newDescriptors(n int) []*descriptor {
	descs := make([]*descriptor, n)
	for i := 0; i < n; i++ {
		descs[i] = &descriptor{
			nextFreeID: BufferID(i + 1),
		}
	}
	descs[n-1].nextFreeID = freeListInvalidID
	return descs
}

// pin pins the buffer and increments usage count
// see https://github.com/postgres/postgres/blob/d9d873bac67047cfacc9f5ef96ee488f2cb0f1c3/src/backend/storage/buffer/bufmgr.c#L1725
func (desc *descriptor) pin() {
	desc.refCount++
	if desc.usageCount < maxUsageCount {
		desc.usageCount++
	}
}

// unpin unpins the buffer
func (desc *descriptor) unpin() {
	if desc.refCount == 0 {
		panic("buffer: unpin of unpinned buffer")
	}
	desc.refCount--
}

// reset clears the descriptor for new page
func (desc *descriptor) reset(t tag) {
	desc.tag = t
	desc.valid = true
	desc.dirty = false
	desc.refCount = 0
	desc.usageCount = 0
}
