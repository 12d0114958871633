package core

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// subscriptionBinder owns the per source generation. The subscription manager
// asks it to open a generation before attaching and to close it on teardown,
// so listeners from an older generation are ignored when they fire.
type subscriptionBinder interface {
	beginGeneration(source SourceID, kind SourceKind, handle Handle) uint64
	endGeneration(source SourceID)
	listenerFor(source SourceID, generation uint64, event EventKind) *Listener
}

type subscription struct {
	handle     Handle
	kind       SourceKind
	generation uint64
	listeners  map[EventKind]*Listener
}

// SubscriptionManager keeps at most one listener per event kind per source
// and always detaches the exact references it attached.
type SubscriptionManager struct {
	mu      sync.Mutex
	binder  subscriptionBinder
	entries map[SourceID]*subscription
	logger  Logger
}

func newSubscriptionManager(binder subscriptionBinder, logger Logger) *SubscriptionManager {
	return &SubscriptionManager{
		binder:  binder,
		entries: map[SourceID]*subscription{},
		logger:  logger,
	}
}

// Sync makes the subscription for source follow handle. A nil handle tears
// the subscription down. It reports whether listeners were swapped.
func (m *SubscriptionManager) Sync(source SourceID, kind SourceKind, handle Handle, events []EventKind) (bool, error) {
	if m == nil || m.binder == nil {
		return false, fmt.Errorf("core: subscription manager is not initialized")
	}
	if source == "" {
		return false, fmt.Errorf("core: source is required")
	}
	if handle == nil {
		return m.Detach(source), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.entries[source]
	if current != nil && sameHandle(current.handle, handle) {
		return false, nil
	}
	if current != nil {
		detachAll(current)
	}

	generation := m.binder.beginGeneration(source, kind, handle)
	entry := &subscription{
		handle:     handle,
		kind:       kind,
		generation: generation,
		listeners:  make(map[EventKind]*Listener, len(events)),
	}
	for _, event := range events {
		if !event.Valid() {
			continue
		}
		if _, exists := entry.listeners[event]; exists {
			continue
		}
		listener := m.binder.listenerFor(source, generation, event)
		entry.listeners[event] = listener
		safeOn(handle, event, listener)
	}
	m.entries[source] = entry
	logWithLevel(context.Background(), m.logger, "debug", "source subscribed", map[string]any{
		"source":     source.String(),
		"generation": generation,
		"events":     len(entry.listeners),
	})
	return true, nil
}

// Detach removes every listener of source and closes its generation.
func (m *SubscriptionManager) Detach(source SourceID) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[source]
	if !ok {
		return false
	}
	if m.binder != nil {
		m.binder.endGeneration(source)
	}
	detachAll(entry)
	delete(m.entries, source)
	logWithLevel(context.Background(), m.logger, "debug", "source detached", map[string]any{
		"source":     source.String(),
		"generation": entry.generation,
	})
	return true
}

func (m *SubscriptionManager) DetachAll() {
	for _, source := range m.Sources() {
		m.Detach(source)
	}
}

func (m *SubscriptionManager) Handle(source SourceID) (Handle, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[source]
	if !ok {
		return nil, false
	}
	return entry.handle, true
}

// Listeners returns a copy of the references attached for source.
func (m *SubscriptionManager) Listeners(source SourceID) map[EventKind]*Listener {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[source]
	if !ok {
		return map[EventKind]*Listener{}
	}
	out := make(map[EventKind]*Listener, len(entry.listeners))
	for event, listener := range entry.listeners {
		out[event] = listener
	}
	return out
}

func (m *SubscriptionManager) Sources() []SourceID {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SourceID, 0, len(m.entries))
	for source := range m.entries {
		out = append(out, source)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func detachAll(entry *subscription) {
	if entry == nil {
		return
	}
	for event, listener := range entry.listeners {
		safeOff(entry.handle, event, listener)
	}
	entry.listeners = map[EventKind]*Listener{}
}

func safeOn(handle Handle, event EventKind, listener *Listener) {
	defer func() { _ = recover() }()
	handle.On(event, listener)
}

func safeOff(handle Handle, event EventKind, listener *Listener) {
	defer func() { _ = recover() }()
	handle.Off(event, listener)
}

// sameHandle compares handle references. Non comparable dynamic types are
// never considered equal.
func sameHandle(a, b Handle) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
