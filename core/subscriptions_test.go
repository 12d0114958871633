package core

import (
	"context"
	"testing"
)

func newTestSubscriptions() (*SubscriptionManager, *ActiveIdentityStore) {
	store := newActiveIdentityStore(identityStoreConfig{config: DefaultConfig()})
	return newSubscriptionManager(store, nil), store
}

func TestSubscriptionManager_OneListenerPerEvent(t *testing.T) {
	manager, store := newTestSubscriptions()
	defer store.Close(context.Background())
	handle := newFakeHandle(nil)

	swapped, err := manager.Sync(SourcePhantom, SourceKindInjected, handle,
		[]EventKind{EventAccountChanged, EventDisconnect, EventAccountChanged, "bogus"})
	if err != nil || !swapped {
		t.Fatalf("expected initial sync to attach, swapped=%v err=%v", swapped, err)
	}
	if handle.listenerCount(EventAccountChanged) != 1 || handle.listenerCount(EventDisconnect) != 1 {
		t.Fatalf("expected one listener per event kind")
	}
	if len(manager.Listeners(SourcePhantom)) != 2 {
		t.Fatalf("expected two stored references")
	}

	swapped, err = manager.Sync(SourcePhantom, SourceKindInjected, handle, []EventKind{EventAccountChanged})
	if err != nil || swapped {
		t.Fatalf("expected same handle to be a no-op, swapped=%v err=%v", swapped, err)
	}
}

func TestSubscriptionManager_DetachUsesAttachedReferences(t *testing.T) {
	manager, store := newTestSubscriptions()
	defer store.Close(context.Background())
	first := newFakeHandle(nil)
	second := newFakeHandle(nil)

	if _, err := manager.Sync(SourceTrust, SourceKindInjected, first, []EventKind{EventAccountChanged, EventDisconnect}); err != nil {
		t.Fatalf("sync first: %v", err)
	}
	unrelated := NewListener(func(*PublicKey) {})
	first.On(EventAccountChanged, unrelated)

	if _, err := manager.Sync(SourceTrust, SourceKindInjected, second, []EventKind{EventAccountChanged, EventDisconnect}); err != nil {
		t.Fatalf("sync second: %v", err)
	}
	if first.listenerCount(EventAccountChanged) != 1 {
		t.Fatalf("expected only the foreign listener to remain, got %d", first.listenerCount(EventAccountChanged))
	}
	if first.listenerCount(EventDisconnect) != 0 {
		t.Fatalf("expected disconnect listener detached")
	}

	if !manager.Detach(SourceTrust) {
		t.Fatalf("expected detach to report removal")
	}
	if manager.Detach(SourceTrust) {
		t.Fatalf("expected second detach to be a no-op")
	}
	if second.listenerCount(EventAccountChanged) != 0 {
		t.Fatalf("expected listeners detached on teardown")
	}
	if _, ok := manager.Handle(SourceTrust); ok {
		t.Fatalf("expected handle forgotten on teardown")
	}
}

func TestSubscriptionManager_GenerationAdvancesOnSwapAndTeardown(t *testing.T) {
	manager, store := newTestSubscriptions()
	defer store.Close(context.Background())

	_, _ = manager.Sync(SourceGlow, SourceKindInjected, newFakeHandle(nil), []EventKind{EventAccountChanged})
	first := store.snapshot().Generations[SourceGlow]
	_, _ = manager.Sync(SourceGlow, SourceKindInjected, newFakeHandle(nil), []EventKind{EventAccountChanged})
	second := store.snapshot().Generations[SourceGlow]
	manager.Detach(SourceGlow)
	third := store.snapshot().Generations[SourceGlow]

	if !(first < second && second < third) {
		t.Fatalf("expected strictly increasing generations, got %d %d %d", first, second, third)
	}
}

func TestSubscriptionManager_NilHandleDetaches(t *testing.T) {
	manager, store := newTestSubscriptions()
	defer store.Close(context.Background())
	handle := newFakeHandle(nil)
	_, _ = manager.Sync(SourceBackpack, SourceKindInjected, handle, []EventKind{EventConnect})

	swapped, err := manager.Sync(SourceBackpack, SourceKindInjected, nil, nil)
	if err != nil || !swapped {
		t.Fatalf("expected nil handle to detach, swapped=%v err=%v", swapped, err)
	}
	if handle.listenerCount(EventConnect) != 0 {
		t.Fatalf("expected listener detached")
	}
	if len(manager.Sources()) != 0 {
		t.Fatalf("expected no sources left")
	}
}

type funcHandle func()

func (funcHandle) Connect(context.Context) (*PublicKey, error) { return nil, nil }
func (funcHandle) Disconnect(context.Context) error            { return nil }
func (funcHandle) On(EventKind, *Listener)                     {}
func (funcHandle) Off(EventKind, *Listener)                    {}
func (funcHandle) PublicKey() *PublicKey                       { return nil }

func TestSameHandle_NonComparable(t *testing.T) {
	var handle funcHandle = func() {}
	if sameHandle(handle, handle) {
		t.Fatalf("expected non comparable handles to never match")
	}
	fake := newFakeHandle(nil)
	if !sameHandle(fake, fake) || sameHandle(fake, newFakeHandle(nil)) {
		t.Fatalf("expected pointer identity comparison")
	}
}
