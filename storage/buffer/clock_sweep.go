/*
Postgres adopts clock sweep as cache replacement policy on main shared buffer, so does mini-pg.
Clock sweep is approximation of LRU algorithm.
The main difference is that the clock sweep does not maintain global timestamp.
It uses approximation of timestamp, usage count.
Clock sweep is better than LRU in terms of concurrency.

for more details, see https://github.com/postgres/postgres/blob/master/src/backend/storage/buffer/README#L155-L246
*/
package buffer

// clockSweepTick moves clock hand ahead and returns the buffer which the hand points to
// clock sweep treats buffer pool as ring buffer
// the directory latch has to be held
// see https://github.com/postgres/postgres/blob/24d2b2680a8d0e01b30ce8a41c4eb3b47aca5031/src/backend/storage/buffer/freelist.c#L113
func (m *Manager) clockSweepTick() BufferID {
	m.nextVictimBuffer = (m.nextVictimBuffer + 1) % BufferID(len(m.descriptors))
	return m.nextVictimBuffer
}

// allocateWithClockSweep decides victim buffer and returns it
// postgres moves the clock hand around one cycle, and
// if all buffers are pinned, return invalid buffer id.
// the directory latch has to be held
// see: https://github.com/greenplum-db/gpdb/blob/abdcb97df1747bf7413918d1601ce0be8c1e6a49/src/backend/storage/buffer/freelist.c#L201
func (m *Manager) allocateWithClockSweep() BufferID {
	// when tryCounter is 0, it means clock sweep has inspected all buffers
	tryCounter := len(m.descriptors)
	for {
		victimBufferID := m.clockSweepTick()
		desc := m.descriptors[victimBufferID]
		if desc.refCount != 0 {
			// this buffer has been referenced by other goroutines, so must not be evicted
			tryCounter--
			if tryCounter == 0 {
				return InvalidBufferID
			}
			continue
		}
		if desc.usageCount != 0 {
			// this buffer was used after clock sweep had inspected previous time, so must not evict it
			desc.usageCount--
			tryCounter = len(m.descriptors)
			continue
		}
		return victimBufferID
	}
}
