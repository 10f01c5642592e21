/*
This file defines storage interface and its implementations.
We don't want to execute disk I/O in test, so it's better to use byte slice instead of actual file in test.
For this reason, storage interface is defined. Possible operation with storage is read/write at offset, sync, get size and close.
The implementations are:
- fileStorage: wrapper of os.File
- bufferStorage: this consists of byte slice.

note:
- bytes.Reader doesn't implement io.WriterAt
- so it may be better to define bufferStorage by myself.
*/
package disk

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// storage is storage which implements multiple operations necessary for mini-pg data file.
type storage interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
	Sync() error
	Close() error
}

// fileStorage is file storage
type fileStorage struct {
	*os.File
}

// Size returns the storage's size
func (fs fileStorage) Size() (int64, error) {
	stat, err := fs.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "Stat failed")
	}
	return stat.Size(), nil
}

// bufferStorage is buffer storage
type bufferStorage struct {
	mu sync.RWMutex
	// buf is actual contents
	buf []byte
}

// newBufferStorage initializes empty bufferStorage
func newBufferStorage() *bufferStorage {
	return &bufferStorage{}
}

// Size returns the buffer size
func (bs *bufferStorage) Size() (int64, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return int64(len(bs.buf)), nil
}

// Sync doesn't do anything
func (bs *bufferStorage) Sync() error {
	// on-memory byte slice doesn't need sync
	return nil
}

// Close doesn't do anything
func (bs *bufferStorage) Close() error {
	return nil
}

// ReadAt reads buffer at off into p
func (bs *bufferStorage) ReadAt(p []byte, off int64) (int, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	if off >= int64(len(bs.buf)) {
		return 0, io.EOF
	}
	n := copy(p, bs.buf[off:])
	if n != len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes p into buffer at off. the buffer grows when necessary
func (bs *bufferStorage) WriteAt(p []byte, off int64) (int, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if off < 0 {
		return 0, errors.Errorf("negative offset %d", off)
	}
	end := int(off) + len(p)
	if end > len(bs.buf) {
		grown := make([]byte, end)
		copy(grown, bs.buf)
		bs.buf = grown
	}
	return copy(bs.buf[off:], p), nil
}
