/*
the implementation of free space map

free space map tracks how many bytes each page of a table can still take, so that insert
does not have to visit every page to find the space.
The map is kept in memory per table and is not persisted. after restart every page is
recorded as unknown, and the real size is recorded when insert visits the page.

The map is a binary max tree. each leaf is the free space category of one page,
and each non-leaf node stores the max category of the children.
so the search goes down from the root to the leftmost leaf which has enough space.

	            [ 9 ]
	       /            \
	    [ 9 ]          [ 4 ]
	   /     \        /     \
	[ 3 ]   [ 9 ]  [ 4 ]   [ 0 ]
	page0   page1  page2   (none)

see https://github.com/postgres/postgres/blob/bfcf1b34805f70df48eedeec237230d0cc1154a6/src/backend/storage/freespace/README
*/
package fsm

import (
	"sync"

	"github.com/jimingkang/mini-pg/storage/page"
)

// Map is the free space map of one table
type Map struct {
	mu sync.Mutex
	// nodes is the binary tree. the leaves follow the non-leaf nodes
	nodes []category
	// npages is the number of pages recorded in the map
	npages int
}

// NewMap initializes free space map with no page
func NewMap() *Map {
	return &Map{
		nodes: make([]category, 1),
	}
}

// Len returns the number of pages tracked
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.npages
}

// Extend makes the map track pages up to n. the new pages are recorded as unknown
func (m *Map) Extend(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= m.npages {
		return
	}
	for leafNum(m.nodes) < n {
		m.grow()
	}
	for i := m.npages; i < n; i++ {
		m.set(i, unknownCategory)
	}
	m.npages = n
}

// Update records the free space of the page.
// the page beyond the tracked pages extends the map
func (m *Map) Update(pageID page.PageID, size int) {
	c, ok := convertToCategory(size)
	if !ok {
		return
	}
	m.Extend(int(pageID) + 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(int(pageID), c)
}

// Search returns the leftmost page which may have the size of free space.
// ok is false when no page has enough space, then the table has to be extended
func (m *Map) Search(size int) (page.PageID, bool) {
	need, ok := requiredCategory(size)
	if !ok {
		return page.InvalidPageID, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nodes[rootNodeIndex] < need {
		return page.InvalidPageID, false
	}
	index := rootNodeIndex
	for !isLeaf(m.nodes, index) {
		left := getLeftChildNode(index)
		if m.nodes[left] >= need {
			index = left
			continue
		}
		index = getRightChildNode(index)
	}
	slot := getSlotFromNodeIndex(m.nodes, index)
	if slot >= m.npages {
		return page.InvalidPageID, false
	}
	return page.PageID(slot), true
}

// Get returns the category recorded for the page
func (m *Map) Get(pageID page.PageID) (category, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(pageID) >= m.npages {
		return 0, false
	}
	return m.nodes[getNodeIndexFromSlot(m.nodes, int(pageID))], true
}

// set updates the leaf and bubbles the max category up to the root
// the caller has to hold mu
func (m *Map) set(slot int, c category) {
	index := getNodeIndexFromSlot(m.nodes, slot)
	m.nodes[index] = c
	for !isRoot(index) {
		index = getParentNode(index)
		l := m.nodes[getLeftChildNode(index)]
		r := m.nodes[getRightChildNode(index)]
		m.nodes[index] = max(l, r)
	}
}

// grow doubles the number of leaves. the tree is rebuilt from the old leaves
// the caller has to hold mu
func (m *Map) grow() {
	oldLeaves := leafNum(m.nodes)
	old := make([]category, oldLeaves)
	for i := 0; i < oldLeaves; i++ {
		old[i] = m.nodes[getNodeIndexFromSlot(m.nodes, i)]
	}
	m.nodes = make([]category, 4*oldLeaves-1)
	for i, c := range old {
		m.set(i, c)
	}
}
