package buffer

import (
	"github.com/jimingkang/mini-pg/storage/page"
)

// tag is buffer tag
// buffer tag must be sufficient to locate where the page is on disk
// the page is always identified with page id, never with row id
// see https://github.com/postgres/postgres/blob/a448e49bcbe40fb72e1ed85af910dd216d45bad8/src/include/storage/buf_internals.h#L79-L98
type tag struct {
	// file name under data directory
	file string
	// page id
	pageID page.PageID
}

// newTag initializes buffer tag
func newTag(file string, pageID page.PageID) tag {
	return tag{
		file:   file,
		pageID: pageID,
	}
}
