package page

import (
	"encoding/binary"

	"github.com/jimingkang/mini-pg/common"
	"github.com/pkg/errors"
)

// SlotPtr is pointer to slot WITHIN PAGE
// basically this type is used for slot
type SlotPtr *[slotSize]byte

// slotSize is the byte size of slot
const slotSize = 8

// MaxSlots is the capacity of slot directory in page
const MaxSlots = 64

/*
Slot layout (8 bytes, little endian)
- item offset/uint16. relative to the data region
- item length/uint16. the current length of the item
- tuple size/uint16. the bytes reserved for the item. in-place overwrite is allowed up to this size
- status/uint8
- flags/uint8

see: https://github.com/postgres/postgres/blob/27b77ecf9f4d5be211900eda54d8155ada50d696/src/include/storage/itemid.h#L17-L30
*/
const (
	slotItemOffset = 0
	slotItemLength = slotItemOffset + 2
	slotTupleSize  = slotItemLength + 2
	slotStatus     = slotTupleSize + 2
	slotFlags      = slotStatus + 1
)

// slot status
// see https://github.com/postgres/postgres/blob/27b77ecf9f4d5be211900eda54d8155ada50d696/src/include/storage/itemid.h#L34-L41
const (
	slotStatusUnused uint8 = iota
	slotStatusUsed
	slotStatusDeleted
)

// slot flags
const (
	SlotOccupied uint8 = 0x01
	SlotDeleted  uint8 = 0x02
)

// SlotIndex is the index of slot array
// this is called OffsetNumber in postgres
// see https://github.com/postgres/postgres/blob/27b77ecf9f4d5be211900eda54d8155ada50d696/src/include/storage/off.h#L19-L29
type SlotIndex uint16

const (
	FirstSlotIndex   SlotIndex = 0
	MaxSlotIndex     SlotIndex = MaxSlots - 1
	InvalidSlotIndex SlotIndex = 0xFFFF
)

// GetSlot returns slot pointer of the slot index
// the slot index must be already allocated
func GetSlot(p PagePtr, idx SlotIndex) (SlotPtr, error) {
	if idx >= SlotIndex(GetSlotCount(p)) {
		return nil, errors.Wrapf(common.ErrSlotNotFound, "slot %d (slot count %d)", idx, GetSlotCount(p))
	}
	return getSlot(p, idx), nil
}

// getSlot does not validate the slot index
func getSlot(p PagePtr, idx SlotIndex) SlotPtr {
	o := slotsOffset + offset(idx)*slotSize
	return SlotPtr(p[o : o+slotSize])
}

// IsOccupied checks whether the slot points to live item
func IsOccupied(s SlotPtr) bool {
	return getFlags(s)&SlotOccupied != 0
}

// IsDeleted checks whether the item of the slot has been deleted
func IsDeleted(s SlotPtr) bool {
	return getFlags(s)&SlotDeleted != 0
}

func getItemOffset(s SlotPtr) offset {
	return offset(binary.LittleEndian.Uint16(s[slotItemOffset:slotItemLength]))
}

func setItemOffset(s SlotPtr, o offset) {
	binary.LittleEndian.PutUint16(s[slotItemOffset:slotItemLength], uint16(o))
}

func getItemLength(s SlotPtr) offset {
	return offset(binary.LittleEndian.Uint16(s[slotItemLength:slotTupleSize]))
}

func setItemLength(s SlotPtr, l offset) {
	binary.LittleEndian.PutUint16(s[slotItemLength:slotTupleSize], uint16(l))
}

func getTupleSize(s SlotPtr) offset {
	return offset(binary.LittleEndian.Uint16(s[slotTupleSize:slotStatus]))
}

func setTupleSize(s SlotPtr, l offset) {
	binary.LittleEndian.PutUint16(s[slotTupleSize:slotStatus], uint16(l))
}

func getStatus(s SlotPtr) uint8 {
	return s[slotStatus]
}

func getFlags(s SlotPtr) uint8 {
	return s[slotFlags]
}

// markOccupied marks the slot as pointing to live item
func markOccupied(s SlotPtr) {
	s[slotStatus] = slotStatusUsed
	s[slotFlags] = SlotOccupied
}

// markDeleted marks the slot as deleted. the slot itself is never reused
func markDeleted(s SlotPtr) {
	s[slotStatus] = slotStatusDeleted
	s[slotFlags] = SlotDeleted
}
