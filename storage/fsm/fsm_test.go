package fsm

import (
	"testing"

	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/stretchr/testify/assert"
)

func TestSearch(t *testing.T) {
	m := NewMap()
	_, ok := m.Search(100)
	assert.False(t, ok, "empty map has no page")

	m.Update(0, 50)
	m.Update(1, 2000)
	m.Update(2, 500)

	tests := []struct {
		name     string
		size     int
		expected page.PageID
		ok       bool
	}{
		{
			name:     "first page has enough space",
			size:     32,
			expected: 0,
			ok:       true,
		},
		{
			name:     "leftmost page with enough space",
			size:     400,
			expected: 1,
			ok:       true,
		},
		{
			name:     "only one page has enough space",
			size:     1500,
			expected: 1,
			ok:       true,
		},
		{
			name: "no page has enough space",
			size: 3000,
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Search(tt.size)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestExtend(t *testing.T) {
	m := NewMap()
	m.Update(0, 0)
	m.Extend(5)
	assert.Equal(t, 5, m.Len())

	// new pages are unknown, so they are visited
	got, ok := m.Search(page.DataSize)
	assert.True(t, ok)
	assert.Equal(t, page.PageID(1), got)

	c, ok := m.Get(4)
	assert.True(t, ok)
	assert.Equal(t, unknownCategory, c)
	_, ok = m.Get(5)
	assert.False(t, ok)

	// the recorded size survives growth of the tree
	c, ok = m.Get(0)
	assert.True(t, ok)
	assert.Equal(t, category(0), c)
}

func TestUpdateGrowsMap(t *testing.T) {
	m := NewMap()
	for i := 0; i < 9; i++ {
		m.Update(page.PageID(i), 0)
	}
	m.Update(6, 1000)
	assert.Equal(t, 9, m.Len())

	got, ok := m.Search(900)
	assert.True(t, ok)
	assert.Equal(t, page.PageID(6), got)

	m.Update(6, 10)
	_, ok = m.Search(900)
	assert.False(t, ok)
}
