package core

import (
	"context"
	"testing"
)

func TestKeyValuePersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	persistence := NewKeyValuePersistence(NewMemoryKeyValueStore(), "", nil)
	if persistence.Key() != DefaultStorageKey {
		t.Fatalf("expected default storage key, got %q", persistence.Key())
	}

	if got := persistence.Load(ctx); got != nil {
		t.Fatalf("expected empty storage to load nil, got %q", got)
	}
	if err := persistence.Save(ctx, keyPtr(1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := persistence.Load(ctx); !KeysEqual(got, keyPtr(1)) {
		t.Fatalf("expected saved key, got %q", KeyString(got))
	}
	if err := persistence.Save(ctx, nil); err != nil {
		t.Fatalf("save nil: %v", err)
	}
	if got := persistence.Load(ctx); got != nil {
		t.Fatalf("expected nil after Save(nil), got %q", got)
	}
}

func TestKeyValuePersistence_MalformedReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeyValueStore()
	_ = store.Set(ctx, "walletKey", "%%%")
	logger := newCaptureLogger()
	persistence := NewKeyValuePersistence(store, "walletKey", logger)

	if got := persistence.Load(ctx); got != nil {
		t.Fatalf("expected malformed value to load nil, got %q", got)
	}
	if _, ok := logger.find("persisted identity malformed, treating as absent"); !ok {
		t.Fatalf("expected malformed value to be logged")
	}
}

func TestKeyValuePersistence_StoreErrors(t *testing.T) {
	ctx := context.Background()
	persistence := NewKeyValuePersistence(failingKeyValueStore{err: errBoom}, "k", nil)
	if got := persistence.Load(ctx); got != nil {
		t.Fatalf("expected read failure to load nil")
	}
	err := persistence.Save(ctx, keyPtr(1))
	if err == nil {
		t.Fatalf("expected save failure")
	}
	mapped := walletErrorMapper(err)
	if mapped.TextCode != WalletErrorPersistenceFailed {
		t.Fatalf("expected persistence failure code, got %q", mapped.TextCode)
	}
}
