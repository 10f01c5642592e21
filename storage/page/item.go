/*
`item` is interchangeably used with `heap tuple`

item-related interface is
- AddItem(PagePtr, ItemPtr): adds item to the page with new slot. if the page does not have enough space, return error.
- GetItem(PagePtr, SlotIndex): gets item from page. the location of the item is calculated from the slot
- DeleteItem(PagePtr, SlotIndex): marks the slot deleted. the bytes are reclaimed by CompactPage()
- UpdateItem(PagePtr, SlotIndex, ItemPtr): overwrites the item in place, or moves it to new slot
*/
package page

import (
	"bytes"

	"github.com/jimingkang/mini-pg/common"
	"github.com/pkg/errors"
)

// ItemPtr points to item within page
// item length is variable
type ItemPtr []byte

// MaxItemSize is the max byte size of item which can be stored in page
const MaxItemSize = DataSize

// AddItem adds item to the page and returns the new slot index
// slot is never reused, so new slot is always allocated at the end of slot directory.
// when the heap gap is not enough, the page is compacted once.
// see https://github.com/postgres/postgres/blob/2cd2569c72b8920048e35c31c9be30a6170e1410/src/backend/storage/page/bufpage.c#L194-L200
func AddItem(p PagePtr, item ItemPtr) (SlotIndex, error) {
	size := len(item)
	if size == 0 {
		return InvalidSlotIndex, errors.New("empty item cannot be added")
	}
	if size > MaxItemSize {
		return InvalidSlotIndex, errors.Wrapf(common.ErrPageFull, "item size %d exceeds %d", size, MaxItemSize)
	}
	n := GetSlotCount(p)
	if n >= MaxSlots {
		return InvalidSlotIndex, errors.WithStack(common.ErrSlotDirectoryFull)
	}
	if HeapFreeSpace(p) < size {
		CompactPage(p)
		if HeapFreeSpace(p) < size {
			return InvalidSlotIndex, errors.Wrapf(common.ErrPageFull, "item size %d, free %d", size, HeapFreeSpace(p))
		}
	}

	idx := SlotIndex(n)
	start := GetFreeStart(p)
	copy(p[dataOffset+start:], item)

	s := getSlot(p, idx)
	setItemOffset(s, start)
	setItemLength(s, offset(size))
	setTupleSize(s, offset(size))
	markOccupied(s)

	SetFreeStart(p, start+offset(size))
	setSlotCount(p, n+1)
	setTupleCount(p, GetTupleCount(p)+1)
	refreshFreeSpace(p)
	return idx, nil
}

// GetItem returns item of the slot index
// the returned item points to the page, so copy it when the page may be modified later
func GetItem(p PagePtr, idx SlotIndex) (ItemPtr, error) {
	s, err := occupiedSlot(p, idx)
	if err != nil {
		return nil, err
	}
	o := dataOffset + getItemOffset(s)
	l := getItemLength(s)
	return ItemPtr(p[o : o+l]), nil
}

// DeleteItem marks the slot deleted
func DeleteItem(p PagePtr, idx SlotIndex) error {
	s, err := occupiedSlot(p, idx)
	if err != nil {
		return err
	}
	markDeleted(s)
	setTupleCount(p, GetTupleCount(p)-1)
	refreshFreeSpace(p)
	return nil
}

// OverwriteItem overwrites the item in place
// the new item must fit into the bytes reserved for the slot
func OverwriteItem(p PagePtr, idx SlotIndex, item ItemPtr) error {
	s, err := occupiedSlot(p, idx)
	if err != nil {
		return err
	}
	if len(item) == 0 || len(item) > int(getTupleSize(s)) {
		return errors.Wrapf(common.ErrPageFull, "item size %d does not fit into slot %d (%d bytes)", len(item), idx, getTupleSize(s))
	}
	o := dataOffset + getItemOffset(s)
	copy(p[o:], item)
	setItemLength(s, offset(len(item)))
	refreshFreeSpace(p)
	return nil
}

/*
UpdateItem replaces the item of the slot index.
when the new item is no larger than the reserved bytes, it is overwritten in place and the slot index is not changed.
otherwise the old item is deleted and the new item is added with new slot.
when the new item cannot be stored even after compaction, the page is left untouched.
*/
func UpdateItem(p PagePtr, idx SlotIndex, item ItemPtr) (SlotIndex, error) {
	s, err := occupiedSlot(p, idx)
	if err != nil {
		return InvalidSlotIndex, err
	}
	if len(item) > 0 && len(item) <= int(getTupleSize(s)) {
		if err := OverwriteItem(p, idx, item); err != nil {
			return InvalidSlotIndex, err
		}
		return idx, nil
	}

	// check beforehand so that the old item is never lost
	if GetSlotCount(p) >= MaxSlots {
		return InvalidSlotIndex, errors.WithStack(common.ErrSlotDirectoryFull)
	}
	live := liveItemBytes(p) - int(getItemLength(s))
	if DataSize-live < len(item) {
		return InvalidSlotIndex, errors.Wrapf(common.ErrPageFull, "item size %d, free %d", len(item), DataSize-live)
	}

	if err := DeleteItem(p, idx); err != nil {
		return InvalidSlotIndex, err
	}
	newIdx, err := AddItem(p, item)
	if err != nil {
		// this is not expected to happen. restore the old slot anyway
		markOccupied(s)
		setTupleCount(p, GetTupleCount(p)+1)
		refreshFreeSpace(p)
		return InvalidSlotIndex, err
	}
	return newIdx, nil
}

// FindItemByPrefix returns the first occupied slot whose item starts with the prefix
// this is used to locate tuple with row oid, which is the first field of tuple
func FindItemByPrefix(p PagePtr, prefix []byte) SlotIndex {
	n := SlotIndex(GetSlotCount(p))
	for i := FirstSlotIndex; i < n; i++ {
		s := getSlot(p, i)
		if !IsOccupied(s) {
			continue
		}
		o := dataOffset + getItemOffset(s)
		l := getItemLength(s)
		if bytes.HasPrefix(p[o:o+l], prefix) {
			return i
		}
	}
	return InvalidSlotIndex
}

// occupiedSlot returns the slot only when it points to live item
func occupiedSlot(p PagePtr, idx SlotIndex) (SlotPtr, error) {
	s, err := GetSlot(p, idx)
	if err != nil {
		return nil, err
	}
	if !IsOccupied(s) {
		return nil, errors.Wrapf(common.ErrSlotNotFound, "slot %d is not occupied (status %d)", idx, getStatus(s))
	}
	return s, nil
}

// AvailableSpace returns the size of the largest item which can be added to the page.
// the page may have to be compacted before the item is added
func AvailableSpace(p PagePtr) int {
	if GetSlotCount(p) >= MaxSlots {
		return 0
	}
	return DataSize - liveItemBytes(p)
}

// liveItemBytes returns the total length of occupied items
func liveItemBytes(p PagePtr) int {
	total := 0
	n := SlotIndex(GetSlotCount(p))
	for i := FirstSlotIndex; i < n; i++ {
		s := getSlot(p, i)
		if IsOccupied(s) {
			total += int(getItemLength(s))
		}
	}
	return total
}
