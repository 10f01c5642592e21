package page

import (
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/stretchr/testify/assert"
)

func TestGetAndSetLSN(t *testing.T) {
	page := NewPagePtr()
	var expected common.LSN = 100
	SetLSN(page, expected)
	got := GetLSN(page)
	assert.Equal(t, expected, got)
}

func TestGetAndSetFreeOffset(t *testing.T) {
	page := NewPagePtr()
	SetFreeStart(page, 100)
	SetFreeEnd(page, 200)
	assert.Equal(t, offset(100), GetFreeStart(page))
	assert.Equal(t, offset(200), GetFreeEnd(page))
	assert.Equal(t, 100, HeapFreeSpace(page))
}

func TestGetAndSetPageLink(t *testing.T) {
	page := NewPagePtr()
	InitializePage(page, 3)
	assert.Equal(t, PageID(3), GetPageID(page))
	assert.Equal(t, InvalidPageID, GetNextPage(page))
	assert.Equal(t, InvalidPageID, GetPrevPage(page))

	SetNextPage(page, 4)
	SetPrevPage(page, 2)
	assert.Equal(t, PageID(4), GetNextPage(page))
	assert.Equal(t, PageID(2), GetPrevPage(page))
	// header fields must not overlap each other
	assert.Equal(t, PageID(3), GetPageID(page))
	assert.Equal(t, offset(DataSize), GetFreeEnd(page))
}
