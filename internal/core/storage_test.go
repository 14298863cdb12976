package core

import (
	"path/filepath"
	"testing"

	"procedurecore/internal/infra/persistence/memory"
	"procedurecore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv("PROCEDURECORE_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore(NewRulesEngine())
	if err != nil {
		t.Fatalf("OpenPersistentStore: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreSQLiteDefault(t *testing.T) {
	t.Setenv("PROCEDURECORE_STORAGE_DRIVER", "")
	t.Setenv("PROCEDURECORE_SQLITE_PATH", filepath.Join(t.TempDir(), "store.db"))
	store, err := OpenPersistentStore(NewRulesEngine())
	if err != nil {
		t.Fatalf("OpenPersistentStore: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	defer func() { _ = s.Close() }()
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv("PROCEDURECORE_STORAGE_DRIVER", "tape")
	if _, err := OpenPersistentStore(NewRulesEngine()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
