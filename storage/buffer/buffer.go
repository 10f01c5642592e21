package buffer

import "github.com/jimingkang/mini-pg/storage/page"

// buffer is byte array
// page is fetched from disk into this
type buffer *[bufferSize]byte

// BufferID is the index of buffers/descriptors
type BufferID int32

const (
	// FirstBufferID is the first buffer id
	FirstBufferID BufferID = 0
	// InvalidBufferID is returned when no buffer is allocated
	InvalidBufferID BufferID = -1
)

const (
	// the size of one buffer.
	// this must be equal to page size because page is fetched into buffer
	// buffer-related metadata is managed in different structure called `buffer descriptor`
	bufferSize = page.PageSize

	// DefaultBufferNum is the default number of buffers (frames) managed by page cache
	// default in postgres is 32MB (shared_buffers)
	// https://www.postgresql.org/docs/9.1/runtime-config-resource.html
	DefaultBufferNum = 64
)

// newBuffers initializes buffer pool
func newBuffers(n int) []buffer {
	buffers := make([]buffer, n)
	for i := 0; i < n; i++ {
		buffers[i] = &[bufferSize]byte{}
	}
	return buffers
}
