package core

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) hook() ChangeHook {
	return NewChangeHook("recorder", func(_ context.Context, change Change) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.changes = append(r.changes, change)
		return nil
	})
}

func (r *changeRecorder) snapshot() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func startService(t *testing.T, cfg Config, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(cfg, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() { closeService(t, svc) })
	return svc
}

func TestReconciler_AccountChangedWithKeyCommitsAndPersists(t *testing.T) {
	store := NewMemoryKeyValueStore()
	phantom := newFakeHandle(nil)
	svc := startService(t, Config{},
		WithKeyValueStore(store),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)

	phantom.emit(EventAccountChanged, keyPtr(1))
	assertActive(t, svc, keyPtr(1))

	persisted, found, err := store.Get(context.Background(), DefaultStorageKey)
	if err != nil || !found {
		t.Fatalf("expected persisted identity, found=%v err=%v", found, err)
	}
	if persisted != testKey(1).String() {
		t.Fatalf("expected persisted %q, got %q", testKey(1).String(), persisted)
	}

	phantom.emit(EventDisconnect, nil)
	assertActive(t, svc, nil)
	if _, found, _ := store.Get(context.Background(), DefaultStorageKey); found {
		t.Fatalf("expected persisted identity removed after disconnect")
	}
}

func TestReconciler_LastArrivalWinsAcrossSources(t *testing.T) {
	phantom := newFakeHandle(nil)
	backpack := newFakeHandle(nil)
	svc := startService(t, Config{},
		WithDetectors(
			newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect),
			newFakeDetector(SourceBackpack, backpack, EventConnect, EventDisconnect),
		),
	)

	phantom.emit(EventAccountChanged, keyPtr(1))
	backpack.emit(EventConnect, keyPtr(2))
	assertActive(t, svc, keyPtr(2))

	phantom.emit(EventAccountChanged, keyPtr(3))
	assertActive(t, svc, keyPtr(3))
}

func TestReconciler_ConnectWithoutPayloadReadsHandleKey(t *testing.T) {
	backpack := newFakeHandle(keyPtr(4))
	svc := startService(t, Config{},
		WithDetectors(newFakeDetector(SourceBackpack, backpack, EventConnect, EventDisconnect)),
	)

	backpack.emit(EventConnect, nil)
	assertActive(t, svc, keyPtr(4))
}

func TestReconciler_SilentReconnectCommitsResolvedKey(t *testing.T) {
	recorder := &changeRecorder{}
	phantom := newFakeHandle(keyPtr(5))
	svc := startService(t, Config{},
		WithChangeHook(recorder.hook()),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)

	phantom.emit(EventAccountChanged, nil)
	waitIdle(t, svc)

	assertActive(t, svc, keyPtr(5))
	changes := recorder.snapshot()
	if len(changes) != 1 {
		t.Fatalf("expected one change, got %d", len(changes))
	}
	if changes[0].Reason != ChangeReasonReconnect || changes[0].Source != SourcePhantom {
		t.Fatalf("unexpected change: %+v", changes[0])
	}
}

func TestReconciler_StaleReconnectAfterDisconnectIsDiscarded(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	connect, started, release := blockingConnect(keyPtr(6), nil)
	phantom := newFakeHandle(nil)
	phantom.connectFn = connect
	svc := startService(t, Config{},
		WithMetricsRecorder(metrics),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)

	phantom.emit(EventAccountChanged, nil)
	<-started
	phantom.emit(EventDisconnect, nil)
	close(release)
	waitIdle(t, svc)

	assertActive(t, svc, nil)
	if got := metrics.count(MetricStaleTotal, nil); got != 1 {
		t.Fatalf("expected one stale result, got %d", got)
	}
}

func TestReconciler_StaleReconnectAfterNewerAccountIsDiscarded(t *testing.T) {
	connect, started, release := blockingConnect(keyPtr(7), nil)
	glow := newFakeHandle(nil)
	glow.connectFn = connect
	svc := startService(t, Config{},
		WithDetectors(newFakeDetector(SourceGlow, glow, EventAccountChanged)),
	)

	glow.emit(EventAccountChanged, nil)
	<-started
	glow.emit(EventAccountChanged, keyPtr(8))
	close(release)
	waitIdle(t, svc)

	assertActive(t, svc, keyPtr(8))
}

func TestReconciler_ReconnectFailureIsReportedAndLeavesIdentity(t *testing.T) {
	reporter := &captureReporter{}
	phantom := newFakeHandle(nil)
	phantom.connectFn = func(context.Context) (*PublicKey, error) { return nil, errBoom }
	svc := startService(t, Config{},
		WithErrorReporter(reporter.report),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)

	phantom.emit(EventAccountChanged, keyPtr(1))
	phantom.emit(EventAccountChanged, nil)
	waitIdle(t, svc)

	assertActive(t, svc, keyPtr(1))
	reported := reporter.snapshot()
	if len(reported) != 1 {
		t.Fatalf("expected one reported error, got %d", len(reported))
	}
	if reported[0].source != SourcePhantom {
		t.Fatalf("expected phantom source, got %q", reported[0].source)
	}
	var richErr *goerrors.Error
	if !goerrors.As(reported[0].err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", reported[0].err)
	}
	if richErr.TextCode != WalletErrorConnectFailed {
		t.Fatalf("expected connect failed code, got %q", richErr.TextCode)
	}
}

func TestReconciler_DebouncedDisconnectCancelledByAccountChange(t *testing.T) {
	clock := NewManualClock(time.Time{})
	recorder := &changeRecorder{}
	trust := newFakeHandle(nil)
	svc := startService(t, Config{},
		WithClock(clock),
		WithChangeHook(recorder.hook()),
		WithDetectors(newFakeDetector(SourceTrust, trust, EventAccountChanged, EventDisconnect)),
	)

	trust.emit(EventAccountChanged, keyPtr(1))
	trust.emit(EventDisconnect, nil)
	assertActive(t, svc, keyPtr(1))
	if pending := svc.Snapshot().PendingClear; len(pending) != 1 || pending[0] != SourceTrust {
		t.Fatalf("expected pending clear for trust, got %v", pending)
	}

	clock.Advance(200 * time.Millisecond)
	trust.emit(EventAccountChanged, keyPtr(2))
	clock.Advance(time.Second)

	assertActive(t, svc, keyPtr(2))
	for _, change := range recorder.snapshot() {
		if change.Current == nil {
			t.Fatalf("expected no intermediate null identity, got %+v", change)
		}
	}
	if pending := svc.Snapshot().PendingClear; len(pending) != 0 {
		t.Fatalf("expected no pending clears, got %v", pending)
	}
}

func TestReconciler_DebouncedDisconnectClearsAfterWindow(t *testing.T) {
	clock := NewManualClock(time.Time{})
	trust := newFakeHandle(nil)
	svc := startService(t, Config{},
		WithClock(clock),
		WithDetectors(newFakeDetector(SourceTrust, trust, EventAccountChanged, EventDisconnect)),
	)

	trust.emit(EventAccountChanged, keyPtr(1))
	trust.emit(EventDisconnect, nil)

	clock.Advance(499 * time.Millisecond)
	assertActive(t, svc, keyPtr(1))

	clock.Advance(time.Millisecond)
	assertActive(t, svc, nil)
}

func TestReconciler_WaitReconnectsIgnoresPendingClear(t *testing.T) {
	clock := NewManualClock(time.Time{})
	trust := newFakeHandle(nil)
	phantom := newFakeHandle(keyPtr(2))
	svc := startService(t, Config{},
		WithClock(clock),
		WithDetectors(
			newFakeDetector(SourceTrust, trust, EventAccountChanged, EventDisconnect),
			newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect),
		),
	)

	trust.emit(EventAccountChanged, keyPtr(1))
	trust.emit(EventDisconnect, nil)
	phantom.emit(EventAccountChanged, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.WaitReconnects(ctx); err != nil {
		t.Fatalf("wait reconnects: %v", err)
	}
	assertActive(t, svc, keyPtr(2))
	if pending := svc.Snapshot().PendingClear; len(pending) != 1 || pending[0] != SourceTrust {
		t.Fatalf("expected trust clear still pending, got %v", pending)
	}

	clock.Advance(500 * time.Millisecond)
	assertActive(t, svc, nil)
}

func TestReconciler_DisabledDebounceClearsImmediately(t *testing.T) {
	trust := newFakeHandle(nil)
	svc := startService(t, Config{DisableDebounce: true},
		WithDetectors(newFakeDetector(SourceTrust, trust, EventAccountChanged, EventDisconnect)),
	)

	trust.emit(EventAccountChanged, keyPtr(1))
	trust.emit(EventDisconnect, nil)
	assertActive(t, svc, nil)
}

func TestReconciler_TeardownIsolatesReplayedListeners(t *testing.T) {
	phantom := newFakeHandle(nil)
	detector := newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)
	svc := startService(t, Config{}, WithDetectors(detector))

	listeners := svc.subscriptions.Listeners(SourcePhantom)
	stale := listeners[EventAccountChanged]
	if stale == nil {
		t.Fatalf("expected accountChanged listener")
	}

	phantom.emit(EventAccountChanged, keyPtr(1))
	detector.set(nil)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if phantom.listenerCount(EventAccountChanged) != 0 || phantom.listenerCount(EventDisconnect) != 0 {
		t.Fatalf("expected listeners detached on teardown")
	}

	stale.Notify(keyPtr(2))
	assertActive(t, svc, keyPtr(1))
	if _, ok := svc.Handle(SourcePhantom); ok {
		t.Fatalf("expected no handle after teardown")
	}
}

func TestReconciler_TeardownDiscardsInFlightReconnect(t *testing.T) {
	connect, started, release := blockingConnect(keyPtr(9), nil)
	phantom := newFakeHandle(nil)
	phantom.connectFn = connect
	detector := newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)
	svc := startService(t, Config{}, WithDetectors(detector))

	phantom.emit(EventAccountChanged, nil)
	<-started
	detector.set(nil)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	close(release)
	waitIdle(t, svc)

	assertActive(t, svc, nil)
}

func TestReconciler_TeardownCancelsPendingClear(t *testing.T) {
	clock := NewManualClock(time.Time{})
	trust := newFakeHandle(nil)
	detector := newFakeDetector(SourceTrust, trust, EventAccountChanged, EventDisconnect)
	svc := startService(t, Config{}, WithClock(clock), WithDetectors(detector))

	trust.emit(EventAccountChanged, keyPtr(1))
	trust.emit(EventDisconnect, nil)
	detector.set(nil)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	clock.Advance(time.Second)

	assertActive(t, svc, keyPtr(1))
	if clock.Pending() != 0 {
		t.Fatalf("expected pending timer stopped, got %d", clock.Pending())
	}
}

func TestReconciler_FallbackAdoptsExternalKey(t *testing.T) {
	recorder := &changeRecorder{}
	phantom := newFakeHandle(nil)
	svc := startService(t, Config{},
		WithExternalKey(keyPtr(1)),
		WithChangeHook(recorder.hook()),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)
	ctx := context.Background()

	assertActive(t, svc, keyPtr(1))

	phantom.emit(EventAccountChanged, keyPtr(2))
	if err := svc.SetExternalKey(ctx, keyPtr(3)); err != nil {
		t.Fatalf("set external key: %v", err)
	}
	assertActive(t, svc, keyPtr(2))

	phantom.emit(EventDisconnect, nil)
	assertActive(t, svc, keyPtr(3))

	changes := recorder.snapshot()
	last := changes[len(changes)-1]
	if last.Reason != ChangeReasonFallback || last.Source != SourceExternalKey {
		t.Fatalf("expected fallback change, got %+v", last)
	}
}

func TestReconciler_ExternalKeyAdoptedWhenIdentityEmpty(t *testing.T) {
	svc := startService(t, Config{})
	if err := svc.SetExternalKey(context.Background(), keyPtr(4)); err != nil {
		t.Fatalf("set external key: %v", err)
	}
	assertActive(t, svc, keyPtr(4))

	if err := svc.SetExternalKey(context.Background(), nil); err != nil {
		t.Fatalf("clear external key: %v", err)
	}
	assertActive(t, svc, keyPtr(4))
}

func TestReconciler_RestoresPersistedIdentity(t *testing.T) {
	store := NewMemoryKeyValueStore()
	if err := store.Set(context.Background(), DefaultStorageKey, testKey(7).String()); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	svc := startService(t, Config{}, WithKeyValueStore(store), WithExternalKey(keyPtr(1)))
	assertActive(t, svc, keyPtr(7))
}

func TestReconciler_MalformedPersistedValueFallsBack(t *testing.T) {
	store := NewMemoryKeyValueStore()
	if err := store.Set(context.Background(), DefaultStorageKey, "not-a-key"); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	svc := startService(t, Config{}, WithKeyValueStore(store), WithExternalKey(keyPtr(2)))
	assertActive(t, svc, keyPtr(2))

	persisted, _, _ := store.Get(context.Background(), DefaultStorageKey)
	if persisted != testKey(2).String() {
		t.Fatalf("expected fallback key persisted, got %q", persisted)
	}
}

func TestReconciler_PersistenceFailureIsSwallowed(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	phantom := newFakeHandle(nil)
	svc := startService(t, Config{},
		WithMetricsRecorder(metrics),
		WithKeyValueStore(failingKeyValueStore{err: errBoom}),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)

	phantom.emit(EventAccountChanged, keyPtr(1))
	assertActive(t, svc, keyPtr(1))
	if got := metrics.count(MetricPersistFailureTotal, nil); got != 1 {
		t.Fatalf("expected one persistence failure, got %d", got)
	}
}

func TestReconciler_DuplicateKeyIsNotRecommitted(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	phantom := newFakeHandle(nil)
	svc := startService(t, Config{},
		WithMetricsRecorder(metrics),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)

	phantom.emit(EventAccountChanged, keyPtr(1))
	phantom.emit(EventAccountChanged, keyPtr(1))
	assertActive(t, svc, keyPtr(1))
	if got := metrics.count(MetricCommitTotal, nil); got != 1 {
		t.Fatalf("expected a single commit, got %d", got)
	}
}

func TestReconciler_HookCanReadIdentity(t *testing.T) {
	var svc *Service
	seen := make(chan *PublicKey, 1)
	phantom := newFakeHandle(nil)
	svc = startService(t, Config{},
		WithChangeHook(NewChangeHook("reader", func(context.Context, Change) error {
			seen <- activeKey(t, svc)
			return nil
		})),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)

	phantom.emit(EventAccountChanged, keyPtr(3))
	if got := <-seen; !KeysEqual(got, keyPtr(3)) {
		t.Fatalf("expected hook to observe committed key, got %q", KeyString(got))
	}
}

func TestReconciler_HookFailureDoesNotRollBack(t *testing.T) {
	logger := newCaptureLogger()
	phantom := newFakeHandle(nil)
	svc := startService(t, Config{},
		WithLogger(logger),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithChangeHook(NewChangeHook("failing", func(context.Context, Change) error { return errBoom })),
		WithChangeHook(NewChangeHook("panicking", func(context.Context, Change) error { panic("hook") })),
		WithDetectors(newFakeDetector(SourcePhantom, phantom, EventAccountChanged, EventDisconnect)),
	)

	phantom.emit(EventAccountChanged, keyPtr(1))
	assertActive(t, svc, keyPtr(1))
	if _, ok := logger.find("change hooks failed"); !ok {
		t.Fatalf("expected hook failure to be logged")
	}
}
