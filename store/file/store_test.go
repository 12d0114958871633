package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-wallets/core"
)

func TestStore_SetGetDeletePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := InDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected missing key on fresh store, got found=%v err=%v", found, err)
	}
	if err := store.Set(ctx, core.DefaultStorageKey, "value"); err != nil {
		t.Fatalf("set: %v", err)
	}

	reopened, err := New(store.Path())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	value, found, err := reopened.Get(ctx, core.DefaultStorageKey)
	if err != nil || !found || value != "value" {
		t.Fatalf("expected persisted value, got %q found=%v err=%v", value, found, err)
	}

	if err := reopened.Delete(ctx, core.DefaultStorageKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, core.DefaultStorageKey); found {
		t.Fatalf("expected deleted key")
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != fileMode {
		t.Fatalf("expected mode %o, got %o", fileMode, info.Mode().Perm())
	}
	leftovers, _ := filepath.Glob(store.Path() + ".tmp-*")
	if len(leftovers) != 0 {
		t.Fatalf("expected temp files cleaned up, got %v", leftovers)
	}
}

func TestStore_CorruptFileSurfacesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, _, err := store.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected decode error")
	}

	persisted := core.NewKeyValuePersistence(store, "", nil)
	if loaded := persisted.Load(context.Background()); loaded != nil {
		t.Fatalf("expected unreadable store to restore nothing")
	}
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(" "); err == nil {
		t.Fatalf("expected path error")
	}
}
