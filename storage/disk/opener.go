/*
This file defines opener interface and its implementations.
We don't want to execute disk I/O in test, so it's better to use byte slice instead of actual file in test.
For this reason, opener interface is defined. Opener opens its storage. The implementations are:
- fileOpener: open and return file.
- bufferOpener: open and return byte slice. this is intended to be used in test.
*/
package disk

import (
	"os"
	"path/filepath"

	"github.com/jimingkang/mini-pg/common"
)

// opener opens storage
type opener interface {
	open(file string) (storage, error)
	close() error
}

// fileOpener opens file
type fileOpener struct {
	dir string
	// cache file descriptors after open the files
	st map[string]storage
}

// newFileOpener initializes fileOpener
func newFileOpener(dir string) *fileOpener {
	return &fileOpener{
		dir: dir,
		st:  make(map[string]storage),
	}
}

// open opens and returns specified file under data directory
func (fo *fileOpener) open(file string) (storage, error) {
	// when file descriptor is cached, just return it
	st, ok := fo.st[file]
	if ok {
		return st, nil
	}
	fd, err := os.OpenFile(filepath.Join(fo.dir, file), os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, common.WrapIO(err, "os.OpenFile failed")
	}
	// cache file descriptor when open the file
	fo.st[file] = fileStorage{fd}
	return fileStorage{fd}, nil
}

// close closes all cached files
func (fo *fileOpener) close() error {
	var first error
	for file, st := range fo.st {
		if err := st.Close(); err != nil && first == nil {
			first = common.WrapIO(err, "Close failed")
		}
		delete(fo.st, file)
	}
	return first
}

// bufferOpener opens buffer
type bufferOpener struct {
	st map[string]storage
}

// newBufferOpener initializes bufferOpener
func newBufferOpener() *bufferOpener {
	return &bufferOpener{
		st: make(map[string]storage),
	}
}

// open returns specified buffer
func (bo *bufferOpener) open(file string) (storage, error) {
	buf, ok := bo.st[file]
	if ok {
		return buf, nil
	}
	buf = newBufferStorage()
	bo.st[file] = buf
	return buf, nil
}

// close keeps the contents so that reopen in test can see them
func (bo *bufferOpener) close() error {
	return nil
}
