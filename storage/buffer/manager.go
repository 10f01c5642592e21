/*
Page cache (shared buffer pool) manager manages buffers used for table data files.
Transaction state file and wal are not managed by this manager (this is the same as postgres).
Disk IO is expensive so data should be cached on memory and the page cache manager is responsible for this.
The page cache is the only component which writes page bytes to table files.

the implementation of buffer pool manager in mini-pg is based on /src/backend/storage/buffer in postgres.
see great README: https://github.com/postgres/postgres/blob/d87251048a0f293ad20cc1fe26ce9f542de105e6/src/backend/storage/buffer/README#L1

----

mini-pg adopts steal/no-force policy like postgres.
- steal: dirty page can be written out to disk before the transaction commits.
- no-force: but commit syncs the table files written by the transaction, because wal is not replayed.

undo operation:
the change of aborted transaction is removed physically by abort cleanup,
and the tuple whose xmin is not committed in commit bitmap is invisible anyway.

---

access rules for buffers:
- pin/unpin for cache eviction policy: see /storage/buffer/descriptor.go
- content lock for read/write page within buffer

the flow when read/write the tuples on the buffer is described below:
- pin the buffer (LoadOrFetch) -> acquire content lock -> do anything with the page
- -> MarkDirty if modified -> release content lock -> unpin the buffer (ReleaseBuffer)

-----

# The list of locks used for buffer

- directory latch:
  - this protects buffer table, descriptors (except content lock), free list and clock hand
  - postgres has header spin lock per buffer and partitioned mapping locks,
    mini-pg uses one LWLock for all of them

- buffer content lock:
  - this protects each buffer content(page)
  - this is implemented with LWLock because lock may be held long time (for doing anything with the content)

lock order is content lock -> directory latch. the directory latch is never held while waiting for content lock.

------

buffer replacement
- if node exists in free list, then removes it from free list and use it
- if node does not exist in free list, uses clock-sweep and get the next victim buffer
  - if the next victim buffer is pinned or has been used, then decrement usage count and skip it
  - when the victim buffer is dirty, the buffer is written to disk before eviction
  - when all buffers are pinned, ErrCacheFull is returned
*/
package buffer

import (
	"sync"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/lock"
	"github.com/jimingkang/mini-pg/metrics"
	"github.com/jimingkang/mini-pg/storage/disk"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Manager manages page cache
type Manager struct {
	// disk manager
	dm *disk.Manager
	// table is mapping from buffer tag to buffer id(index of buffers/descriptors)
	table bufferTable
	// buffers are frames
	buffers []buffer
	// descriptors of each buffer
	descriptors []*descriptor
	// freeList points to the head node(free buffer) of free list
	freeList BufferID
	// nextVictimBuffer is the buffer which clock-sweep inspected last time
	nextVictimBuffer BufferID
	// latch is directory latch
	latch lock.LWLock

	// pool runs the writes of FlushAll()
	pool    *ants.Pool
	metrics *metrics.Metrics
}

// NewManager initializes the page cache with n frames
// flushWorkers is the number of goroutines used by FlushAll()
func NewManager(dm *disk.Manager, n, flushWorkers int, mt *metrics.Metrics) (*Manager, error) {
	if n <= 0 {
		return nil, errors.Errorf("the number of buffers must be positive: %d", n)
	}
	if flushWorkers <= 0 {
		flushWorkers = 1
	}
	pool, err := ants.NewPool(flushWorkers, ants.WithPanicHandler(func(v any) {
		log.Errorf("page flush worker panic: %v", v)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "ants.NewPool failed")
	}
	return &Manager{
		dm:               dm,
		table:            newBufferTable(n),
		buffers:          newBuffers(n),
		descriptors:      newDescriptors(n),
		freeList:         FirstBufferID,
		nextVictimBuffer: FirstBufferID,
		pool:             pool,
		metrics:          mt,
	}, nil
}

// Close releases the flush workers. dirty buffers are not written, call FlushAll() before
func (m *Manager) Close() {
	m.pool.Release()
}

/*
LoadOrFetch returns the id of buffer where the page the caller is looking for exists.
the returned buffer has been pinned so the caller has to call ReleaseBuffer() after completion of using the buffer.

when the page is already stored within a buffer, just return it.
when the page is not, then fetch the page from disk into buffer and return it.
the page beyond the end of file is ErrPageOutOfRange, use Extend() for new page.

see https://github.com/postgres/postgres/blob/d9d873bac67047cfacc9f5ef96ee488f2cb0f1c3/src/backend/storage/buffer/bufmgr.c#L717-L759
*/
func (m *Manager) LoadOrFetch(file string, pageID page.PageID) (BufferID, error) {
	t := newTag(file, pageID)

	m.latch.Acquire()
	defer m.latch.Release()

	// check whether the tag already exists in the buffer table. if it exists, just return it
	if bufID, ok := m.table.lookup(t); ok {
		m.descriptors[bufID].pin()
		m.metrics.CacheEvents.WithLabelValues(metrics.CacheHit).Inc()
		return bufID, nil
	}
	m.metrics.CacheEvents.WithLabelValues(metrics.CacheMiss).Inc()

	bufID, err := m.allocateBuffer()
	if err != nil {
		return InvalidBufferID, err
	}
	p := m.GetPage(bufID)
	if err := m.dm.ReadPage(file, pageID, p); err != nil {
		m.returnToFreeList(bufID)
		return InvalidBufferID, errors.Wrap(err, "dm.ReadPage failed")
	}
	if !page.VerifyChecksum(p) {
		m.returnToFreeList(bufID)
		return InvalidBufferID, errors.Wrapf(common.ErrCorrupted, "checksum mismatch on page %d of %s", pageID, file)
	}

	desc := m.descriptors[bufID]
	desc.reset(t)
	desc.pin()
	m.table.insert(t, bufID)
	return bufID, nil
}

// Extend appends new initialized page to the file and returns the pinned buffer of it
// the caller has to serialize extension of the same file (table extension lock)
// see https://github.com/postgres/postgres/blob/d9d873bac67047cfacc9f5ef96ee488f2cb0f1c3/src/backend/storage/buffer/bufmgr.c#L1774
func (m *Manager) Extend(file string) (BufferID, page.PageID, error) {
	pageID, err := m.dm.ExtendPage(file)
	if err != nil {
		return InvalidBufferID, page.InvalidPageID, errors.Wrap(err, "dm.ExtendPage failed")
	}
	bufID, err := m.LoadOrFetch(file, pageID)
	if err != nil {
		return InvalidBufferID, page.InvalidPageID, err
	}
	return bufID, pageID, nil
}

// allocateBuffer returns victim buffer id where the page will be read into.
// the victim is removed from buffer table, and written out when it is dirty
// the directory latch has to be held
func (m *Manager) allocateBuffer() (BufferID, error) {
	// at first, search free list.
	bufID := m.allocateFromFreeList()
	if bufID == freeListInvalidID {
		// when there is no buffer in free list, use cache replacement policy(clock-sweep)
		bufID = m.allocateWithClockSweep()
	}
	if bufID == InvalidBufferID {
		return InvalidBufferID, errors.Wrapf(common.ErrCacheFull, "%d buffers are pinned", len(m.descriptors))
	}

	desc := m.descriptors[bufID]
	if !desc.valid {
		return bufID, nil
	}
	if desc.dirty {
		// nobody holds content lock because the buffer is not pinned
		if err := m.writePage(desc.tag, m.GetPage(bufID)); err != nil {
			return InvalidBufferID, err
		}
		desc.dirty = false
	}
	m.table.delete(desc.tag)
	desc.valid = false
	m.metrics.CacheEvents.WithLabelValues(metrics.CacheEvict).Inc()
	log.WithFields(log.Fields{"file": desc.tag.file, "page": desc.tag.pageID, "buffer": bufID}).Debug("evict page")
	return bufID, nil
}

// writePage writes the page with checksum
func (m *Manager) writePage(t tag, p page.PagePtr) error {
	page.SetChecksum(p)
	if err := m.dm.WritePage(t.file, t.pageID, p); err != nil {
		return errors.Wrap(err, "dm.WritePage failed")
	}
	m.metrics.CacheEvents.WithLabelValues(metrics.CacheFlush).Inc()
	return nil
}

// ReleaseBuffer unpins the buffer
// when LoadOrFetch() is called, it returns pinned buffer.
// so caller has to unpin the buffer after it completes using the buffer.
// see https://github.com/postgres/postgres/blob/d9d873bac67047cfacc9f5ef96ee488f2cb0f1c3/src/backend/storage/buffer/bufmgr.c#L3932
func (m *Manager) ReleaseBuffer(bufID BufferID) {
	m.latch.Acquire()
	defer m.latch.Release()
	m.descriptors[bufID].unpin()
}

// GetPage returns page stored at the buffer
func (m *Manager) GetPage(bufID BufferID) page.PagePtr {
	return page.PagePtr(m.buffers[bufID])
}

// MarkDirty turns on the dirty bit of the buffer
// the caller has to hold pin and content lock
// https://github.com/postgres/postgres/blob/d9d873bac67047cfacc9f5ef96ee488f2cb0f1c3/src/backend/storage/buffer/bufmgr.c#L1583
func (m *Manager) MarkDirty(bufID BufferID) {
	m.latch.Acquire()
	defer m.latch.Release()
	m.descriptors[bufID].dirty = true
}

// MarkDirtyPage turns on the dirty bit of the buffer which holds the page
func (m *Manager) MarkDirtyPage(file string, pageID page.PageID) error {
	m.latch.Acquire()
	defer m.latch.Release()
	bufID, ok := m.table.lookup(newTag(file, pageID))
	if !ok {
		return errors.Wrapf(common.ErrPageNotCached, "page %d of %s", pageID, file)
	}
	m.descriptors[bufID].dirty = true
	return nil
}

// IsDirty returns whether the buffer is dirty
func (m *Manager) IsDirty(bufID BufferID) bool {
	m.latch.Acquire()
	defer m.latch.Release()
	return m.descriptors[bufID].dirty
}

// AcquireContentLock acquires buffer content lock
// content lock has to be held when read/write page(buffer content)
func (m *Manager) AcquireContentLock(bufID BufferID) {
	m.descriptors[bufID].contentLock.Acquire()
}

// ReleaseContentLock releases buffer content lock
func (m *Manager) ReleaseContentLock(bufID BufferID) {
	m.descriptors[bufID].contentLock.Release()
}

// Flush writes the page out to disk when it is dirty
// nothing is done when the page is clean or not cached
func (m *Manager) Flush(file string, pageID page.PageID) error {
	m.latch.Acquire()
	bufID, ok := m.table.lookup(newTag(file, pageID))
	if !ok || !m.descriptors[bufID].dirty {
		m.latch.Release()
		return nil
	}
	m.descriptors[bufID].pin()
	m.latch.Release()

	defer m.ReleaseBuffer(bufID)
	return m.flushBuffer(bufID)
}

// flushBuffer flushes buffer into disk
// the caller must hold a pin for preventing eviction
// content lock is held during write so the page is not updated during flush
// see https://github.com/postgres/postgres/blob/d9d873bac67047cfacc9f5ef96ee488f2cb0f1c3/src/backend/storage/buffer/bufmgr.c#L2823
func (m *Manager) flushBuffer(bufID BufferID) error {
	m.AcquireContentLock(bufID)
	defer m.ReleaseContentLock(bufID)

	desc := m.descriptors[bufID]
	m.latch.Acquire()
	dirty, t := desc.dirty, desc.tag
	m.latch.Release()
	if !dirty {
		return nil
	}

	if err := m.writePage(t, m.GetPage(bufID)); err != nil {
		return err
	}

	m.latch.Acquire()
	desc.dirty = false
	m.latch.Release()
	return nil
}

// FlushAll writes out all dirty buffers. this is called by checkpoint
// writes run on the worker pool in parallel
// see https://github.com/postgres/postgres/blob/d9d873bac67047cfacc9f5ef96ee488f2cb0f1c3/src/backend/storage/buffer/bufmgr.c#L2528
func (m *Manager) FlushAll() (int, error) {
	return m.flushMatching(func(t tag) bool { return true })
}

// FlushFile writes out the dirty buffers of the file. this is called on commit
// for the table files modified by the transaction
func (m *Manager) FlushFile(file string) (int, error) {
	return m.flushMatching(func(t tag) bool { return t.file == file })
}

// flushMatching writes out the dirty buffers whose tag matches on the worker pool
func (m *Manager) flushMatching(match func(t tag) bool) (int, error) {
	m.latch.Acquire()
	dirty := []BufferID{}
	for i, desc := range m.descriptors {
		if desc.valid && desc.dirty && match(desc.tag) {
			desc.pin()
			dirty = append(dirty, BufferID(i))
		}
	}
	m.latch.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, bufID := range dirty {
		bufID := bufID
		wg.Add(1)
		err := m.pool.Submit(func() {
			defer wg.Done()
			defer m.ReleaseBuffer(bufID)
			if err := m.flushBuffer(bufID); err != nil {
				record(err)
			}
		})
		if err != nil {
			wg.Done()
			m.ReleaseBuffer(bufID)
			record(errors.Wrap(err, "pool.Submit failed"))
		}
	}
	wg.Wait()
	return len(dirty), firstErr
}

// Stats is the summary of page cache
type Stats struct {
	Buffers int
	Valid   int
	Dirty   int
	Pinned  int
}

// Stats returns the summary of page cache
func (m *Manager) Stats() Stats {
	m.latch.Acquire()
	defer m.latch.Release()
	s := Stats{Buffers: len(m.descriptors)}
	for _, desc := range m.descriptors {
		if !desc.valid {
			continue
		}
		s.Valid++
		if desc.dirty {
			s.Dirty++
		}
		if desc.refCount > 0 {
			s.Pinned++
		}
	}
	return s
}
