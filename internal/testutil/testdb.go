package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jkdev/speaking/internal/history"
)

// OpenTestStore creates a history store backed by a throwaway SQLite file
// under the test's temp directory.
func OpenTestStore(t *testing.T) *history.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
