/*
This is buffer table (just simple hash map)
In postgres, buffer table is partitioned hash map for performance optimization.
mini-pg defines buffer table as just simple map and it is protected with the directory latch of manager.

for more details, see https://github.com/postgres/postgres/blob/27b77ecf9f4d5be211900eda54d8155ada50d696/src/backend/storage/buffer/buf_table.c#L3
*/
package buffer

// bufferTable is buffer table
type bufferTable struct {
	// mapping from buffer tag to buffer id
	table map[tag]BufferID
}

func newBufferTable(n int) bufferTable {
	return bufferTable{
		table: make(map[tag]BufferID, n),
	}
}

func (bt *bufferTable) lookup(t tag) (BufferID, bool) {
	id, ok := bt.table[t]
	return id, ok
}

func (bt *bufferTable) insert(t tag, id BufferID) {
	bt.table[t] = id
}

func (bt *bufferTable) delete(t tag) {
	delete(bt.table, t)
}
