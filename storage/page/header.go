/*
Page in mini-pg is implemented with the data layout called `slotted page`.
Slotted page has slot array after page header which points to tuple(kind-of row) within the page.
The slot directory has fixed capacity (MaxSlots) and the data region follows it.
Items are appended from free start toward free end.

  - +-------------+------------------------------------+
  - | PageHeader  | slot0 slot1 slot2 ... slot63       |
  - +-------------+------------------------------------+
  - | item0 item1 item2 ...|                            |
  - |                      ^ free start                 |
  - |                                                   |
  - |                                    free end v     |
  - +---------------------------------------------------+

see: https://github.com/postgres/postgres/blob/bfcf1b34805f70df48eedeec237230d0cc1154a6/src/include/storage/bufpage.h#L29-L42

Page header layout (32 bytes, little endian):
- checksum: uint32
- page id: uint32
- lsn: uint32
- free start: uint16. relative to the data region
- free end: uint16. relative to the data region
- free space: uint16
- tuple count: uint16. the number of occupied slots
- slot count: uint16. the number of allocated slots
- padding: uint16
- next page: uint32
- prev page: uint32
*/
package page

import (
	"encoding/binary"

	"github.com/jimingkang/mini-pg/common"
)

// offset is the byte offset within the page or data region
type offset uint16

// byte offset of page header
const (
	checksumOffset   offset = 0
	pageIDOffset     offset = checksumOffset + 4
	lsnOffset        offset = pageIDOffset + 4
	freeStartOffset  offset = lsnOffset + 4
	freeEndOffset    offset = freeStartOffset + 2
	freeSpaceOffset  offset = freeEndOffset + 2
	tupleCountOffset offset = freeSpaceOffset + 2
	slotCountOffset  offset = tupleCountOffset + 2
	paddingOffset    offset = slotCountOffset + 2
	nextPageOffset   offset = paddingOffset + 2
	prevPageOffset   offset = nextPageOffset + 4

	// HeaderSize is the byte size of page header (prevPageOffset + 4)
	HeaderSize = 32

	// slot directory follows header
	slotsOffset offset = HeaderSize
	// data region follows slot directory
	dataOffset offset = slotsOffset + MaxSlots*slotSize

	// DataSize is the byte size of data region
	DataSize = PageSize - HeaderSize - MaxSlots*slotSize
)

// GetChecksum returns checksum
func GetChecksum(p PagePtr) uint32 {
	return binary.LittleEndian.Uint32(p[checksumOffset:pageIDOffset])
}

func setChecksum(p PagePtr, sum uint32) {
	binary.LittleEndian.PutUint32(p[checksumOffset:pageIDOffset], sum)
}

// GetPageID returns page id
func GetPageID(p PagePtr) PageID {
	return PageID(binary.LittleEndian.Uint32(p[pageIDOffset:lsnOffset]))
}

// SetPageID sets page id
func SetPageID(p PagePtr, id PageID) {
	binary.LittleEndian.PutUint32(p[pageIDOffset:lsnOffset], uint32(id))
}

// GetLSN returns lsn
func GetLSN(p PagePtr) common.LSN {
	return common.LSN(binary.LittleEndian.Uint32(p[lsnOffset:freeStartOffset]))
}

// SetLSN sets lsn
func SetLSN(p PagePtr, lsn common.LSN) {
	binary.LittleEndian.PutUint32(p[lsnOffset:freeStartOffset], uint32(lsn))
}

// GetFreeStart returns free start
func GetFreeStart(p PagePtr) offset {
	return offset(binary.LittleEndian.Uint16(p[freeStartOffset:freeEndOffset]))
}

// SetFreeStart sets free start
func SetFreeStart(p PagePtr, o offset) {
	binary.LittleEndian.PutUint16(p[freeStartOffset:freeEndOffset], uint16(o))
}

// GetFreeEnd returns free end
func GetFreeEnd(p PagePtr) offset {
	return offset(binary.LittleEndian.Uint16(p[freeEndOffset:freeSpaceOffset]))
}

// SetFreeEnd sets free end
func SetFreeEnd(p PagePtr, o offset) {
	binary.LittleEndian.PutUint16(p[freeEndOffset:freeSpaceOffset], uint16(o))
}

// GetFreeSpace returns free space stored in header
// this is the same as FreeSpace() as long as the page is modified through this package
func GetFreeSpace(p PagePtr) uint16 {
	return binary.LittleEndian.Uint16(p[freeSpaceOffset:tupleCountOffset])
}

func setFreeSpace(p PagePtr, size uint16) {
	binary.LittleEndian.PutUint16(p[freeSpaceOffset:tupleCountOffset], size)
}

// GetTupleCount returns tuple count
func GetTupleCount(p PagePtr) uint16 {
	return binary.LittleEndian.Uint16(p[tupleCountOffset:slotCountOffset])
}

func setTupleCount(p PagePtr, n uint16) {
	binary.LittleEndian.PutUint16(p[tupleCountOffset:slotCountOffset], n)
}

// GetSlotCount returns slot count
func GetSlotCount(p PagePtr) uint16 {
	return binary.LittleEndian.Uint16(p[slotCountOffset:paddingOffset])
}

func setSlotCount(p PagePtr, n uint16) {
	binary.LittleEndian.PutUint16(p[slotCountOffset:paddingOffset], n)
}

// GetNextPage returns next page id
func GetNextPage(p PagePtr) PageID {
	return PageID(binary.LittleEndian.Uint32(p[nextPageOffset:prevPageOffset]))
}

// SetNextPage sets next page id
func SetNextPage(p PagePtr, id PageID) {
	binary.LittleEndian.PutUint32(p[nextPageOffset:prevPageOffset], uint32(id))
}

// GetPrevPage returns prev page id
func GetPrevPage(p PagePtr) PageID {
	return PageID(binary.LittleEndian.Uint32(p[prevPageOffset:slotsOffset]))
}

// SetPrevPage sets prev page id
func SetPrevPage(p PagePtr, id PageID) {
	binary.LittleEndian.PutUint32(p[prevPageOffset:slotsOffset], uint32(id))
}
