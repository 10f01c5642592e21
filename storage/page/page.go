/*
Page is the unit of I/O in mini-pg.
Disk manager organizes each table data file as a sequence of pages.
Page may be called `block` in postgres.
*/
package page

import (
	"hash/crc32"
	"math"
)

/*
PageSize is the byte size of page. 8KB is the default size in postgres, mini-pg uses 4KB.
see block_size parameter in https://www.postgresql.org/docs/current/runtime-config-preset.html

Linux OS page size is probably 4KB so torn page(partial writes) is less likely to happen,
and the page checksum detects it when it happens.
*/
const PageSize = 4096

// PageID is the unique identifier given to each page within a file, which is called blockNumber in postgres
// see https://github.com/postgres/postgres/blob/d63d957e330c611f7a8c0ed02e4407f40f975026/src/include/storage/block.h#L17-L31
type PageID uint32

const (
	// first page id in file
	FirstPageID PageID = 0
	// invalid page id. this is also used as the end of next/prev page link
	InvalidPageID PageID = math.MaxUint32
	// max page id
	MaxPageID PageID = math.MaxUint32 - 1
)

// PagePtr is pointer to page
// page is defined as pointer explicitly
// because page should not be passed by value in many cases (for concurrent access and space-efficiency)
type PagePtr *[PageSize]byte

// NewPagePtr returns 0-filled page pointer
func NewPagePtr() PagePtr {
	p := &[PageSize]byte{}
	return PagePtr(p)
}

// InitializePage initializes page
// when extending new page, the page is 0-filled, so should be initialized with this function
// see https://github.com/postgres/postgres/blob/2cd2569c72b8920048e35c31c9be30a6170e1410/src/backend/storage/page/bufpage.c#L35-L42
func InitializePage(p PagePtr, pageID PageID) {
	*p = [PageSize]byte{}
	SetPageID(p, pageID)
	SetFreeStart(p, 0)
	SetFreeEnd(p, DataSize)
	SetNextPage(p, InvalidPageID)
	SetPrevPage(p, InvalidPageID)
	refreshFreeSpace(p)
}

// IsInitialized checks whether the page has been already initialized
// free end of the initialized page is never 0
func IsInitialized(p PagePtr) bool {
	return GetFreeEnd(p) != 0
}

// CalculateFileOffset calculates the page's offset within the file
// the page size is fixed so that it is easy to calculate the offset
func CalculateFileOffset(pageID PageID) int64 {
	return int64(pageID) * PageSize
}

// Capacity is the bytes which can be used by slots and items
const Capacity = MaxSlots*slotSize + DataSize

// FreeSpace returns unused heap bytes plus unused slot directory capacity
// see: https://github.com/postgres/postgres/blob/2cd2569c72b8920048e35c31c9be30a6170e1410/src/backend/storage/page/bufpage.c#L907
func FreeSpace(p PagePtr) int {
	slots := (MaxSlots - int(GetSlotCount(p))) * slotSize
	return HeapFreeSpace(p) + slots
}

// HeapFreeSpace returns the bytes between free start and free end.
// new item is appended here
func HeapFreeSpace(p PagePtr) int {
	return int(GetFreeEnd(p)) - int(GetFreeStart(p))
}

// refreshFreeSpace updates free space field in header
func refreshFreeSpace(p PagePtr) {
	setFreeSpace(p, uint16(FreeSpace(p)))
}

/*
CompactPage compacts the items within page. this does not compact slot.

Deleting item only flips the slot status, and the bytes are reclaimed here.
All occupied items are packed from the head of the data region (just after the slot directory)
in slot order, and the offsets of the slots are rewritten.
Slot index is never changed, because the item is located with (page id, slot index) from outside.
so deleted slots are still allocated after compaction.

see https://github.com/postgres/postgres/blob/2cd2569c72b8920048e35c31c9be30a6170e1410/src/backend/storage/page/bufpage.c#L682-L699
*/
func CompactPage(p PagePtr) {
	n := GetSlotCount(p)
	data := p[dataOffset:]
	constructed := make([]byte, 0, DataSize)
	for i := FirstSlotIndex; i < SlotIndex(n); i++ {
		s := getSlot(p, i)
		if !IsOccupied(s) {
			// the bytes of deleted item are dropped
			setItemOffset(s, 0)
			setItemLength(s, 0)
			setTupleSize(s, 0)
			continue
		}
		o := getItemOffset(s)
		l := getItemLength(s)
		setItemOffset(s, offset(len(constructed)))
		setTupleSize(s, l)
		constructed = append(constructed, data[o:o+l]...)
	}
	copy(data, constructed)
	clear(data[len(constructed):])
	SetFreeStart(p, offset(len(constructed)))
	SetFreeEnd(p, DataSize)
	refreshFreeSpace(p)
}

// SetChecksum calculates the page checksum and stores it into header
// this is expected to be called just before the page is written out to disk
func SetChecksum(p PagePtr) {
	setChecksum(p, calculateChecksum(p))
}

// VerifyChecksum checks the checksum stored in header
// checksum 0 means the page has never been written with checksum (e.g. 0-filled extended page)
func VerifyChecksum(p PagePtr) bool {
	stored := GetChecksum(p)
	if stored == 0 {
		return true
	}
	return stored == calculateChecksum(p)
}

func calculateChecksum(p PagePtr) uint32 {
	return crc32.ChecksumIEEE(p[checksumOffset+4:])
}
