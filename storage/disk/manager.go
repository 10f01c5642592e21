/*
Disk manager deals with the files under data directory.
This manages table data files. Each table occupies one file of consecutive fixed-size pages,
so the offset of the page within the file is calculated from page id.

note: transaction state file and wal file are not managed by this manager.

The implementation of disk manager is based on src/backend/storage/smgr directory in postgres.
See smgr README https://github.com/postgres/postgres/blob/b0a55e43299c4ea2a9a8c757f9c26352407d0ccc/src/backend/storage/smgr/README#L1

mini-pg does not support
- database and schema
- the division of files into segments (see https://github.com/postgres/postgres/blob/85d8b30724c0fd117a683cc72706f71b28463a05/src/backend/storage/smgr/md.c#L44-L80
- ...
*/
package disk

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/pkg/errors"
)

// TableFileSuffix is the suffix of table data file
const TableFileSuffix = ".tbl"

// TableFileName returns data file name of the table
func TableFileName(table string) string {
	return table + TableFileSuffix
}

// Manager manages disk
type Manager struct {
	// dir is the data directory
	dir string
	// mu protects opener cache and file extension
	mu sync.Mutex
	op opener
}

// NewManager initializes disk manager
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, common.WrapIO(err, "os.MkdirAll failed")
	}
	return &Manager{
		dir: dir,
		op:  newFileOpener(dir),
	}, nil
}

// Dir returns data directory
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the path of the file under data directory
func (m *Manager) Path(file string) string {
	return filepath.Join(m.dir, file)
}

func (m *Manager) open(file string) (storage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.op.open(file)
}

// ReadPage reads page from the file into p
func (m *Manager) ReadPage(file string, pageID page.PageID, p page.PagePtr) error {
	st, err := m.open(file)
	if err != nil {
		return err
	}
	size, err := st.Size()
	if err != nil {
		return err
	}
	off := page.CalculateFileOffset(pageID)
	if off+page.PageSize > size {
		return errors.Wrapf(common.ErrPageOutOfRange, "page %d of %s (file size %d)", pageID, file, size)
	}
	if _, err := st.ReadAt(p[:], off); err != nil {
		return common.WrapIO(err, "ReadAt failed")
	}
	return nil
}

// WritePage writes p to the file
func (m *Manager) WritePage(file string, pageID page.PageID, p page.PagePtr) error {
	st, err := m.open(file)
	if err != nil {
		return err
	}
	if _, err := st.WriteAt(p[:], page.CalculateFileOffset(pageID)); err != nil {
		return common.WrapIO(err, "WriteAt failed")
	}
	return nil
}

// ExtendPage appends new initialized page to the file and returns its page id
// see https://github.com/postgres/postgres/blob/b0a55e43299c4ea2a9a8c757f9c26352407d0ccc/src/backend/storage/smgr/md.c#L450
func (m *Manager) ExtendPage(file string) (page.PageID, error) {
	st, err := m.open(file)
	if err != nil {
		return page.InvalidPageID, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	size, err := st.Size()
	if err != nil {
		return page.InvalidPageID, err
	}
	pageID := page.PageID(size / page.PageSize)
	if pageID > page.MaxPageID {
		return page.InvalidPageID, errors.Errorf("file %s cannot be extended anymore", file)
	}
	p := page.NewPagePtr()
	page.InitializePage(p, pageID)
	page.SetChecksum(p)
	if _, err := st.WriteAt(p[:], page.CalculateFileOffset(pageID)); err != nil {
		return page.InvalidPageID, common.WrapIO(err, "WriteAt failed")
	}
	return pageID, nil
}

// GetNPages returns the number of pages in the file
func (m *Manager) GetNPages(file string) (int, error) {
	st, err := m.open(file)
	if err != nil {
		return 0, err
	}
	size, err := st.Size()
	if err != nil {
		return 0, err
	}
	return int(size / page.PageSize), nil
}

// Sync syncs the file
func (m *Manager) Sync(file string) error {
	st, err := m.open(file)
	if err != nil {
		return err
	}
	if err := st.Sync(); err != nil {
		return common.WrapIO(err, "Sync failed")
	}
	return nil
}

// Close closes all opened files
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.op.close()
}
