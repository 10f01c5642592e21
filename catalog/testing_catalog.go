package catalog

import (
	"testing"

	"github.com/jimingkang/mini-pg/storage/tuple"
)

// TestingUsersColumns returns columns of users table used in tests
func TestingUsersColumns() []Column {
	return []Column{
		{Name: "id", Type: tuple.TypeInt4},
		{Name: "name", Type: tuple.TypeText},
		{Name: "age", Type: tuple.TypeInt4},
	}
}

// TestingNewCatalog initializes catalog on temporary directory
func TestingNewCatalog(t *testing.T) (*Catalog, string) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	return c, dir
}
