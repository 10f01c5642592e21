package disk

import "testing"

// TestingNewFileManager initializes disk manager with file storage under temp directory.
func TestingNewFileManager(t *testing.T) (*Manager, error) {
	// t.TempDir() is removed after test is completed
	return NewManager(t.TempDir())
}

// TestingNewBufferManager initializes disk manager with buffer storage instead of file storage. This prevents unnecessary disk I/O.
func TestingNewBufferManager() *Manager {
	return &Manager{dir: "", op: newBufferOpener()}
}
