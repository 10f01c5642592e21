package tuple

import (
	"fmt"

	"github.com/jimingkang/mini-pg/storage/page"
)

// Tid consists of pageID and slot index
// so, with tid, the tuple can be located
// this is ItemPointerData in postgres
type Tid struct {
	pageID page.PageID
	slot   page.SlotIndex
}

// NewTid initializes tid
func NewTid(pid page.PageID, slotIndex page.SlotIndex) Tid {
	return Tid{
		pageID: pid,
		slot:   slotIndex,
	}
}

// PageID returns page id
func (t Tid) PageID() page.PageID {
	return t.pageID
}

// SlotIndex returns slot index
func (t Tid) SlotIndex() page.SlotIndex {
	return t.slot
}

func (t Tid) String() string {
	return fmt.Sprintf("(%d,%d)", t.pageID, t.slot)
}
