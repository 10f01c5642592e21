package wal

import (
	"path/filepath"
	"testing"
)

// TestingNewWriter initializes writer on the temporary directory
func TestingNewWriter(t *testing.T) (*Writer, string) {
	path := filepath.Join(t.TempDir(), FileName)
	w, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })
	return w, path
}
