package fsm

import (
	"github.com/jimingkang/mini-pg/storage/page"
)

/*
Free space size is defined with 1 byte category.
Free space size within page can be page.DataSize at most.
so the mapping is below.

* Range	 Category
* 0	   - 15   0
* 16   - 31   1
* ...    ...  ...
* 3536 - 3551 221
* 3552        222

category 255 is reserved for the page whose free space is not known yet.

for more details, see https://github.com/postgres/postgres/blob/bfcf1b34805f70df48eedeec237230d0cc1154a6/src/backend/storage/freespace/freespace.c#L36-L63
*/
type category uint8

const (
	categoryUnit = 16
	// unknownCategory is larger than any real category, so the page is always visited once
	unknownCategory category = 255
)

// convertToCategory converts free space size to category (rounded down)
// this is used to record the free space of page
func convertToCategory(size int) (category, bool) {
	if size > page.DataSize || size < 0 {
		return 0, false
	}
	return category(size / categoryUnit), true
}

// requiredCategory converts requested size to category (rounded up)
// so that the page of the category surely has the size
func requiredCategory(size int) (category, bool) {
	if size > page.DataSize || size < 0 {
		return 0, false
	}
	return category((size + categoryUnit - 1) / categoryUnit), true
}
