package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/ntcore/internal/value"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record with the given name and value.
func createTestRecord(name string, v value.Value, flags uint32) Record {
	return Record{Name: name, Value: v, Flags: flags}
}
