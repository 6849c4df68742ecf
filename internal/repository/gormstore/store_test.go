package gormstore

import (
	"context"
	"path/filepath"
	"testing"

	"parley/internal/repository"
	"parley/internal/repository/repotest"
)

func TestSQLiteStoreConformance(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store {
		dsn := filepath.Join(t.TempDir(), "parley.db")
		store, err := Open("sqlite", dsn)
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		t.Cleanup(func() { _ = store.Close(context.Background()) })
		return store
	})
}

func TestOpenUnsupported(t *testing.T) {
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Fatal("expected error for unsupported database type")
	}
}
