package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type sourceState struct {
	kind       SourceKind
	handle     Handle
	generation uint64
	// events counts deliveries accepted from the current generation. A
	// reconnect result is only applied when no newer event arrived.
	events       uint64
	pending      Timer
	pendingToken uint64
}

type identityStoreConfig struct {
	config      Config
	persistence IdentityPersistence
	clock       Clock
	logger      Logger
	metrics     MetricsRecorder
	reporter    ErrorReporter
	hooks       *ChangeHookCoordinator
}

// ActiveIdentityStore is the single writer of the active identity. Provider
// events, caller key changes and fallback adoption all go through it; every
// committed transition is persisted and then handed to change hooks in
// commit order.
type ActiveIdentityStore struct {
	mu          sync.Mutex
	config      Config
	debounced   map[SourceID]bool
	persistence IdentityPersistence
	clock       Clock
	logger      Logger
	metrics     MetricsRecorder
	reporter    ErrorReporter
	hooks       *ChangeHookCoordinator

	active      *PublicKey
	external    *PublicKey
	adapter     *AdapterDescriptor
	initialized bool
	closed      bool
	sources     map[SourceID]*sourceState

	queue    []Change
	draining bool

	// inflight counts reconnects and scheduled clears, reconnects only the
	// former.
	inflight   activityCounter
	reconnects activityCounter
	baseCtx    context.Context
	cancel     context.CancelFunc
}

func newActiveIdentityStore(cfg identityStoreConfig) *ActiveIdentityStore {
	if cfg.clock == nil {
		cfg.clock = SystemClock{}
	}
	if cfg.metrics == nil {
		cfg.metrics = NopMetricsRecorder{}
	}
	if cfg.hooks == nil {
		cfg.hooks = NewChangeHookCoordinator()
	}
	if cfg.persistence == nil {
		cfg.persistence = NewKeyValuePersistence(NewMemoryKeyValueStore(), cfg.config.StorageKey, cfg.logger)
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &ActiveIdentityStore{
		config:      cfg.config,
		debounced:   cfg.config.debouncedSourceSet(),
		persistence: cfg.persistence,
		clock:       cfg.clock,
		logger:      cfg.logger,
		metrics:     cfg.metrics,
		reporter:    cfg.reporter,
		hooks:       cfg.hooks,
		sources:     map[SourceID]*sourceState{},
		baseCtx:     baseCtx,
		cancel:      cancel,
	}
}

// Initialize restores the persisted identity and applies the fallback rule.
// Repeated calls are no-ops.
func (r *ActiveIdentityStore) Initialize(ctx context.Context) {
	func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.initialized || r.closed {
			return
		}
		r.initialized = true
		if restored := r.persistence.Load(ctx); restored != nil && !KeysEqual(r.active, restored) {
			previous := r.active
			r.active = CloneKey(restored)
			r.enqueueLocked(ctx, previous, SourceStorage, ChangeReasonInitialize)
		}
		r.applyFallbackLocked(ctx)
	}()
	r.flush(ctx)
}

func (r *ActiveIdentityStore) Active() *PublicKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return CloneKey(r.active)
}

// SetExternalKey records the caller session key. It only becomes the active
// identity through fallback adoption, i.e. while the identity is empty.
func (r *ActiveIdentityStore) SetExternalKey(ctx context.Context, key *PublicKey) {
	func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return
		}
		r.external = CloneKey(key)
		if r.initialized {
			r.applyFallbackLocked(ctx)
		}
	}()
	r.flush(ctx)
}

func (r *ActiveIdentityStore) setAdapter(descriptor *AdapterDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if descriptor == nil {
		r.adapter = nil
		return
	}
	copied := *descriptor
	r.adapter = &copied
}

func (r *ActiveIdentityStore) currentAdapter() *AdapterDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adapter == nil {
		return nil
	}
	copied := *r.adapter
	return &copied
}

// commitAdapterKey commits the key currently exposed by the adapter handle,
// if any. Used when a new adapter handle is attached.
func (r *ActiveIdentityStore) commitAdapterKey(ctx context.Context) {
	func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || r.adapter == nil || r.adapter.Handle == nil {
			return
		}
		if key := safePublicKey(r.adapter.Handle); key != nil {
			r.commitLocked(ctx, key, SourceAdapter, ChangeReasonAdapterAttach)
		}
	}()
	r.flush(ctx)
}

func (r *ActiveIdentityStore) handle(source SourceID) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sources[source]
	if !ok || state.handle == nil {
		return nil, false
	}
	return state.handle, true
}

func (r *ActiveIdentityStore) beginGeneration(source SourceID, kind SourceKind, handle Handle) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.sources[source]
	if state == nil {
		state = &sourceState{}
		r.sources[source] = state
	}
	r.cancelPendingLocked(state)
	state.generation++
	state.events = 0
	state.kind = kind
	state.handle = handle
	return state.generation
}

func (r *ActiveIdentityStore) endGeneration(source SourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.sources[source]
	if state == nil {
		return
	}
	r.cancelPendingLocked(state)
	state.generation++
	state.events = 0
	state.handle = nil
}

func (r *ActiveIdentityStore) listenerFor(source SourceID, generation uint64, event EventKind) *Listener {
	return NewListener(func(key *PublicKey) {
		r.deliver(r.baseCtx, source, generation, event, key)
	})
}

// deliver applies one provider event. Events from a closed generation are
// dropped so torn down listeners can never mutate the identity.
func (r *ActiveIdentityStore) deliver(ctx context.Context, source SourceID, generation uint64, event EventKind, key *PublicKey) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logWithLevel(ctx, r.logger, "error", "wallet event handling panicked", map[string]any{
				"source": source.String(),
				"event":  string(event),
				"panic":  fmt.Sprint(recovered),
			})
		}
	}()

	if !r.applyEvent(ctx, source, generation, event, key) {
		logWithLevel(ctx, r.logger, "debug", "ignored event from inactive subscription", map[string]any{
			"source":     source.String(),
			"event":      string(event),
			"generation": generation,
		})
		return
	}
	r.flush(ctx)
}

// applyEvent reports false when the event came from an inactive generation.
func (r *ActiveIdentityStore) applyEvent(ctx context.Context, source SourceID, generation uint64, event EventKind, key *PublicKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.sources[source]
	if r.closed || state == nil || state.handle == nil || state.generation != generation {
		return false
	}
	state.events++

	switch event {
	case EventAccountChanged:
		r.cancelPendingLocked(state)
		if key != nil {
			r.commitLocked(ctx, key, source, ChangeReasonAccountChanged)
			break
		}
		r.startReconnectLocked(source, state)
	case EventConnect:
		r.cancelPendingLocked(state)
		var next *PublicKey
		if state.kind == SourceKindAdapter {
			if r.adapter != nil && r.adapter.Handle != nil {
				next = safePublicKey(r.adapter.Handle)
			}
		} else {
			next = CloneKey(key)
			if next == nil {
				next = safePublicKey(state.handle)
			}
		}
		if next != nil {
			r.commitLocked(ctx, next, source, ChangeReasonConnect)
		}
	case EventDisconnect:
		if r.debounced[source] && r.config.DebounceWindow() > 0 {
			r.scheduleClearLocked(ctx, source, state)
			break
		}
		r.cancelPendingLocked(state)
		r.commitLocked(ctx, nil, source, ChangeReasonDisconnect)
	}
	return true
}

func (r *ActiveIdentityStore) startReconnectLocked(source SourceID, state *sourceState) {
	handle := state.handle
	generation := state.generation
	events := state.events
	r.inflight.add()
	r.reconnects.add()
	go r.reconnect(r.baseCtx, source, handle, generation, events)
}

type reconnectOutcome int

const (
	reconnectApplied reconnectOutcome = iota
	reconnectStale
	reconnectAborted
)

func (r *ActiveIdentityStore) reconnect(ctx context.Context, source SourceID, handle Handle, generation, events uint64) {
	defer r.inflight.done()
	defer r.reconnects.done()
	defer func() {
		if recovered := recover(); recovered != nil {
			logWithLevel(ctx, r.logger, "error", "silent reconnect panicked", map[string]any{
				"source": source.String(),
				"panic":  fmt.Sprint(recovered),
			})
		}
	}()
	startedAt := r.clock.Now()
	key, err := safeConnect(ctx, handle)

	tags := map[string]string{"source": source.String()}
	fields := map[string]any{
		"source":     source.String(),
		"generation": generation,
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	switch r.applyReconnect(ctx, source, generation, events, key, err) {
	case reconnectAborted:
		logWithLevel(ctx, r.logger, "debug", "reconnect aborted by shutdown", fields)
		return
	case reconnectStale:
		tags["status"] = "stale"
		recordCounter(ctx, r.metrics, MetricReconnectTotal, 1, tags)
		recordCounter(ctx, r.metrics, MetricStaleTotal, 1, map[string]string{"source": source.String()})
		fields["key"] = KeyString(key)
		fields["reason"] = ErrStaleResult.Error()
		logWithLevel(ctx, r.logger, "debug", "discarded stale reconnect result", fields)
		return
	}

	if err != nil {
		tags["status"] = "failure"
		recordCounter(ctx, r.metrics, MetricReconnectTotal, 1, tags)
		logWithLevel(ctx, r.logger, "error", "silent reconnect failed", fields)
		r.report(ctx, source, connectFailure(source, err))
		return
	}
	r.flush(ctx)
	tags["status"] = "success"
	recordCounter(ctx, r.metrics, MetricReconnectTotal, 1, tags)
	recordHistogram(ctx, r.metrics, "wallets.reconnect.duration_ms", float64(r.clock.Now().Sub(startedAt).Milliseconds()), tags)
}

// applyReconnect commits a successful result from a still current
// generation. Results from torn down or superseded generations are stale
// whether or not the connect call failed.
func (r *ActiveIdentityStore) applyReconnect(ctx context.Context, source SourceID, generation, events uint64, key *PublicKey, err error) reconnectOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return reconnectAborted
	}
	state := r.sources[source]
	if state == nil || state.generation != generation || state.events != events {
		return reconnectStale
	}
	if err == nil && key != nil {
		r.commitLocked(ctx, key, source, ChangeReasonReconnect)
	}
	return reconnectApplied
}

func (r *ActiveIdentityStore) scheduleClearLocked(ctx context.Context, source SourceID, state *sourceState) {
	r.cancelPendingLocked(state)
	state.pendingToken++
	token := state.pendingToken
	generation := state.generation
	r.inflight.add()
	timer, err := safeAfterFunc(r.clock, r.config.DebounceWindow(), func() {
		defer r.inflight.done()
		r.firePendingClear(source, generation, token)
	})
	if err != nil {
		r.inflight.done()
		logWithLevel(ctx, r.logger, "error", "debounce timer unavailable, clearing now", map[string]any{
			"source": source.String(),
			"error":  err.Error(),
		})
		r.commitLocked(ctx, nil, source, ChangeReasonDisconnect)
		return
	}
	state.pending = timer
	logWithLevel(ctx, r.logger, "debug", "disconnect debounced", map[string]any{
		"source":     source.String(),
		"generation": generation,
		"window_ms":  r.config.DebounceWindowMS,
	})
}

func (r *ActiveIdentityStore) firePendingClear(source SourceID, generation, token uint64) {
	ctx := r.baseCtx
	defer func() {
		if recovered := recover(); recovered != nil {
			logWithLevel(ctx, r.logger, "error", "debounced clear panicked", map[string]any{
				"source": source.String(),
				"panic":  fmt.Sprint(recovered),
			})
		}
	}()
	cleared := func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		state := r.sources[source]
		if r.closed || state == nil || state.pending == nil || state.generation != generation || state.pendingToken != token {
			return false
		}
		state.pending = nil
		r.commitLocked(ctx, nil, source, ChangeReasonDisconnect)
		return true
	}()
	if cleared {
		r.flush(ctx)
	}
}

func (r *ActiveIdentityStore) cancelPendingLocked(state *sourceState) {
	if state == nil || state.pending == nil {
		return
	}
	if safeStop(state.pending) {
		r.inflight.done()
	}
	state.pending = nil
	state.pendingToken++
}

// commitLocked applies next and then the fallback rule.
func (r *ActiveIdentityStore) commitLocked(ctx context.Context, next *PublicKey, source SourceID, reason ChangeReason) {
	r.setLocked(ctx, next, source, reason)
	r.applyFallbackLocked(ctx)
}

func (r *ActiveIdentityStore) applyFallbackLocked(ctx context.Context) {
	if r.active != nil || r.external == nil {
		return
	}
	r.setLocked(ctx, r.external, SourceExternalKey, ChangeReasonFallback)
}

func (r *ActiveIdentityStore) setLocked(ctx context.Context, next *PublicKey, source SourceID, reason ChangeReason) {
	if KeysEqual(r.active, next) {
		return
	}
	previous := r.active
	r.active = CloneKey(next)

	if err := safeSave(ctx, r.persistence, r.active); err != nil {
		recordCounter(ctx, r.metrics, MetricPersistFailureTotal, 1, map[string]string{"source": source.String()})
		logWithLevel(ctx, r.logger, "warn", "persisting active identity failed", map[string]any{
			"source": source.String(),
			"reason": string(reason),
			"error":  err.Error(),
		})
	}
	r.enqueueLocked(ctx, previous, source, reason)
}

func (r *ActiveIdentityStore) enqueueLocked(ctx context.Context, previous *PublicKey, source SourceID, reason ChangeReason) {
	change := Change{
		Previous: CloneKey(previous),
		Current:  CloneKey(r.active),
		Source:   source,
		Reason:   reason,
		At:       r.clock.Now(),
	}
	r.queue = append(r.queue, change)
	recordCounter(ctx, r.metrics, MetricCommitTotal, 1, map[string]string{
		"source": source.String(),
		"reason": string(reason),
	})
	logWithLevel(ctx, r.logger, "info", "active identity changed", map[string]any{
		"source":   source.String(),
		"reason":   string(reason),
		"key":      KeyString(r.active),
		"previous": KeyString(previous),
	})
}

// flush hands queued changes to hooks outside the store lock. Only one
// goroutine drains at a time, which keeps hook delivery in commit order and
// lets hooks call back into the store.
func (r *ActiveIdentityStore) flush(ctx context.Context) {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true
	for len(r.queue) > 0 {
		change := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		if err := r.hooks.Notify(ctx, change); err != nil {
			logWithLevel(ctx, r.logger, "warn", "change hooks failed", map[string]any{
				"source": change.Source.String(),
				"reason": string(change.Reason),
				"error":  err.Error(),
			})
		}
		r.mu.Lock()
	}
	r.draining = false
	r.mu.Unlock()
}

func (r *ActiveIdentityStore) report(ctx context.Context, source SourceID, err error) {
	if r.reporter == nil || err == nil {
		return
	}
	defer func() { _ = recover() }()
	r.reporter(ctx, source, err)
}

func (r *ActiveIdentityStore) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := Snapshot{
		Active:      CloneKey(r.active),
		Initialized: r.initialized,
		ExternalKey: CloneKey(r.external),
		Generations: make(map[SourceID]uint64, len(r.sources)),
	}
	if r.adapter != nil {
		snap.Adapter = r.adapter.normalizedName()
	}
	for source, state := range r.sources {
		snap.Generations[source] = state.generation
		if state.handle != nil {
			snap.Sources = append(snap.Sources, source)
		}
		if state.pending != nil {
			snap.PendingClear = append(snap.PendingClear, source)
		}
	}
	sort.Slice(snap.Sources, func(i, j int) bool { return snap.Sources[i] < snap.Sources[j] })
	sort.Slice(snap.PendingClear, func(i, j int) bool { return snap.PendingClear[i] < snap.PendingClear[j] })
	return snap
}

// WaitIdle blocks until in-flight reconnects and pending debounced clears
// have settled, or ctx is done.
func (r *ActiveIdentityStore) WaitIdle(ctx context.Context) error {
	return r.inflight.wait(ctx)
}

// WaitReconnects blocks until in-flight reconnects have settled. Unlike
// WaitIdle it does not wait for debounced clears, which only fire when the
// clock reaches their deadline.
func (r *ActiveIdentityStore) WaitReconnects(ctx context.Context) error {
	return r.reconnects.wait(ctx)
}

// Close stops future mutation. Pending clears are cancelled, in-flight
// reconnects see a cancelled context and their results are discarded. The
// current identity is left untouched.
func (r *ActiveIdentityStore) Close(ctx context.Context) error {
	alreadyClosed := func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return true
		}
		r.closed = true
		for _, state := range r.sources {
			r.cancelPendingLocked(state)
			state.generation++
			state.handle = nil
		}
		return false
	}()
	if alreadyClosed {
		return nil
	}
	r.cancel()
	return r.inflight.wait(ctx)
}

// activityCounter tracks outstanding background work. Waiters receive the
// channel of the current busy period, which is closed when the count drops
// back to zero; the next add starts a new period with a fresh channel.
type activityCounter struct {
	mu    sync.Mutex
	count int
	idle  chan struct{}
}

func (c *activityCounter) add() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		c.idle = make(chan struct{})
	}
	c.count++
}

func (c *activityCounter) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return
	}
	c.count--
	if c.count == 0 {
		close(c.idle)
		c.idle = nil
	}
}

func (c *activityCounter) wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.count == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func safeAfterFunc(clock Clock, delay time.Duration, fn func()) (timer Timer, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			timer = nil
			err = fmt.Errorf("core: clock panicked: %v", recovered)
		}
	}()
	timer = clock.AfterFunc(delay, fn)
	if timer == nil {
		return nil, fmt.Errorf("core: clock returned no timer")
	}
	return timer, nil
}

func safeStop(timer Timer) (stopped bool) {
	defer func() {
		if recover() != nil {
			stopped = false
		}
	}()
	return timer.Stop()
}

func safeConnect(ctx context.Context, handle Handle) (key *PublicKey, err error) {
	if handle == nil {
		return nil, ErrHandleUnavailable
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			key = nil
			err = fmt.Errorf("core: connect panicked: %v", recovered)
		}
	}()
	key, err = handle.Connect(ctx)
	return CloneKey(key), err
}

func safeSave(ctx context.Context, persistence IdentityPersistence, key *PublicKey) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = persistenceFailure("save", fmt.Errorf("panic: %v", recovered))
		}
	}()
	return persistence.Save(ctx, key)
}

func safePublicKey(handle Handle) (key *PublicKey) {
	if handle == nil {
		return nil
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			key = nil
		}
	}()
	return CloneKey(handle.PublicKey())
}
