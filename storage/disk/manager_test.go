package disk

import (
	"os"
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	dir := t.TempDir() + "/data"
	m, err := NewManager(dir)
	assert.Nil(t, err)
	assert.Equal(t, dir, m.Dir())

	stat, err := os.Stat(dir)
	assert.Nil(t, err)
	assert.True(t, stat.IsDir())
}

func TestExtendAndReadPage(t *testing.T) {
	file, err := TestingNewFileManager(t)
	require.Nil(t, err)
	defer file.Close()

	tests := []struct {
		name string
		m    *Manager
	}{
		{name: "file storage", m: file},
		{name: "buffer storage", m: TestingNewBufferManager()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.m
			n, err := m.GetNPages("users.tbl")
			assert.Nil(t, err)
			assert.Equal(t, 0, n)

			for i := 0; i < 3; i++ {
				pageID, err := m.ExtendPage("users.tbl")
				assert.Nil(t, err)
				assert.Equal(t, page.PageID(i), pageID)
			}
			n, err = m.GetNPages("users.tbl")
			assert.Nil(t, err)
			assert.Equal(t, 3, n)

			p := page.NewPagePtr()
			err = m.ReadPage("users.tbl", 2, p)
			assert.Nil(t, err)
			assert.True(t, page.IsInitialized(p))
			assert.True(t, page.VerifyChecksum(p))
			assert.Equal(t, page.PageID(2), page.GetPageID(p))

			err = m.ReadPage("users.tbl", 3, p)
			assert.ErrorIs(t, err, common.ErrPageOutOfRange)
			assert.Equal(t, common.KindNotFound, common.KindOf(err))
		})
	}
}

func TestWritePage(t *testing.T) {
	m := TestingNewBufferManager()
	_, err := m.ExtendPage("users.tbl")
	require.Nil(t, err)

	p, err := page.TestingNewRandomPage()
	require.Nil(t, err)
	err = m.WritePage("users.tbl", 0, p)
	assert.Nil(t, err)
	assert.Nil(t, m.Sync("users.tbl"))

	got := page.NewPagePtr()
	err = m.ReadPage("users.tbl", 0, got)
	assert.Nil(t, err)
	assert.Equal(t, *p, *got)

	// other file is independent
	n, err := m.GetNPages("orders.tbl")
	assert.Nil(t, err)
	assert.Equal(t, 0, n)
}

func TestReopenFile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.Nil(t, err)
	_, err = m.ExtendPage("users.tbl")
	require.Nil(t, err)
	require.Nil(t, m.Close())

	m, err = NewManager(dir)
	require.Nil(t, err)
	defer m.Close()
	n, err := m.GetNPages("users.tbl")
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "users.tbl", TableFileName("users"))
}
