// Package testutil provides shared helpers for tests across the verify packages.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/assembly-verify/internal/storage"
)

// SetupTestStore creates a migrated in-memory run index. Result files written through the
// store land under the test's temporary directories.
//
// Example:
//
//	store := testutil.SetupTestStore(t)
//	run, cached, err := store.RunOrLoad(ctx, identity, pipelineFn)
func SetupTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// SetupFileStore creates a migrated on-disk run index inside a temporary directory, for
// tests that reopen the store.
func SetupFileStore(t *testing.T) (*storage.SQLiteStorage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store, dbPath
}
