package page

import (
	"github.com/pkg/errors"
)

// TestingNewRandomPage returns initialized page with two items
func TestingNewRandomPage() (PagePtr, error) {
	p := NewPagePtr()
	InitializePage(p, 10)

	if _, err := AddItem(p, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		return nil, errors.Wrap(err, "AddItem failed")
	}
	if _, err := AddItem(p, []byte{8, 9}); err != nil {
		return nil, errors.Wrap(err, "AddItem failed")
	}
	return p, nil
}
