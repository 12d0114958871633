package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type IdentityService interface {
	Start(ctx context.Context) error
	Refresh(ctx context.Context) error
	ActiveIdentity() (PublicKey, bool)
	Handle(source SourceID) (Handle, bool)
	Snapshot() Snapshot
	SetExternalKey(ctx context.Context, key *PublicKey) error
	SetAdapter(ctx context.Context, descriptor *AdapterDescriptor) error
	Disconnect(ctx context.Context, source SourceID) error
	RegisterHook(hook ChangeHook)
	WaitIdle(ctx context.Context) error
	WaitReconnects(ctx context.Context) error
	Close(ctx context.Context) error
}

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	registry        Registry
	environment     Environment
	persistence     IdentityPersistence
	clock           Clock
	hooks           *ChangeHookCoordinator
	store           *ActiveIdentityStore
	subscriptions   *SubscriptionManager

	mu      sync.Mutex
	started bool
	closed  bool
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Registry        Registry
	Environment     Environment
	Persistence     IdentityPersistence
	Clock           Clock
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("wallets", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("wallets"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewDetectorRegistry()
	}
	if builder.environment == nil {
		builder.environment = EnvironmentMap{}
	}
	if builder.clock == nil {
		builder.clock = SystemClock{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	for _, detector := range builder.detectors {
		if err := builder.registry.Register(detector); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}

	persistence := builder.persistence
	if persistence == nil {
		kv := builder.keyValueStore
		if kv == nil {
			kv = NewMemoryKeyValueStore()
		}
		persistence = NewKeyValuePersistence(kv, finalConfig.StorageKey, logger)
	}

	hooks := NewChangeHookCoordinator(builder.hooks...)
	store := newActiveIdentityStore(identityStoreConfig{
		config:      finalConfig,
		persistence: persistence,
		clock:       builder.clock,
		logger:      logger,
		metrics:     builder.metricsRecorder,
		reporter:    builder.errorReporter,
		hooks:       hooks,
	})
	if builder.externalKey != nil {
		store.SetExternalKey(context.Background(), builder.externalKey)
	}

	svc := &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		registry:        builder.registry,
		environment:     builder.environment,
		persistence:     persistence,
		clock:           builder.clock,
		hooks:           hooks,
		store:           store,
		subscriptions:   newSubscriptionManager(store, logger),
	}
	if builder.adapter != nil {
		store.setAdapter(builder.adapter)
	}
	return svc, nil
}

// Setup builds the service and starts it with a background context.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	svc, err := NewService(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := svc.Start(context.Background()); err != nil {
		return nil, err
	}
	return svc, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Registry:        s.registry,
		Environment:     s.environment,
		Persistence:     s.persistence,
		Clock:           s.clock,
	}
}

// Start restores the persisted identity, applies fallback adoption, attaches
// the adapter set at construction and subscribes every detected source.
func (s *Service) Start(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "start", err, nil)
	}()

	if err = s.ensureOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.store.Initialize(ctx)

	if adapter := s.store.currentAdapter(); adapter != nil {
		if err = s.attachAdapter(ctx, adapter); err != nil {
			return err
		}
	}
	return s.refresh(ctx)
}

// Refresh re-runs every detector. Sources whose handle reference changed get
// new listeners; sources that disappeared are torn down.
func (s *Service) Refresh(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh", err, nil)
	}()
	if err = s.ensureOpen(); err != nil {
		return err
	}
	return s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) error {
	for _, detector := range s.registry.List() {
		source := NormalizeSourceID(detector.Source().String())
		handle, ok, detectErr := detect(detector, s.environment)
		if detectErr != nil {
			logWithLevel(ctx, s.logger, "warn", "detector failed", map[string]any{
				"source": source.String(),
				"error":  detectErr.Error(),
			})
		}
		if !ok {
			s.subscriptions.Detach(source)
			continue
		}
		if _, err := s.subscriptions.Sync(source, SourceKindInjected, handle, detector.Events()); err != nil {
			return s.mapError(err)
		}
	}
	return nil
}

// ActiveIdentity returns the reconciled key and whether one is set.
func (s *Service) ActiveIdentity() (PublicKey, bool) {
	if s == nil || s.store == nil {
		return PublicKey{}, false
	}
	active := s.store.Active()
	if active == nil {
		return PublicKey{}, false
	}
	return *active, true
}

func (s *Service) Handle(source SourceID) (Handle, bool) {
	if s == nil || s.store == nil {
		return nil, false
	}
	source = NormalizeSourceID(source.String())
	return s.store.handle(source)
}

func (s *Service) Snapshot() Snapshot {
	if s == nil || s.store == nil {
		return Snapshot{}
	}
	return s.store.snapshot()
}

func (s *Service) SetExternalKey(ctx context.Context, key *PublicKey) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"key": KeyString(key)}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_external_key", err, fields)
	}()
	if err = s.ensureOpen(); err != nil {
		return err
	}
	s.store.SetExternalKey(ctx, key)
	return nil
}

// SetAdapter replaces the caller supplied adapter descriptor. Untracked
// adapter names are recorded but never subscribed.
func (s *Service) SetAdapter(ctx context.Context, descriptor *AdapterDescriptor) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"source": SourceAdapter.String(), "adapter": descriptor.normalizedName()}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_adapter", err, fields)
	}()
	if err = s.ensureOpen(); err != nil {
		return err
	}
	s.store.setAdapter(descriptor)

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	return s.attachAdapter(ctx, descriptor)
}

func (s *Service) attachAdapter(ctx context.Context, descriptor *AdapterDescriptor) error {
	if descriptor == nil || descriptor.Handle == nil || !s.config.TracksAdapter(descriptor.normalizedName()) {
		s.subscriptions.Detach(SourceAdapter)
		return nil
	}
	swapped, err := s.subscriptions.Sync(SourceAdapter, SourceKindAdapter, descriptor.Handle, AdapterEvents)
	if err != nil {
		return s.mapError(err)
	}
	if swapped && !s.config.SkipAdapterAttachKey {
		s.store.commitAdapterKey(ctx)
	}
	return nil
}

// Disconnect asks the source handle to disconnect. The identity is cleared by
// the resulting provider event, not by this call.
func (s *Service) Disconnect(ctx context.Context, source SourceID) (err error) {
	startedAt := time.Now().UTC()
	source = NormalizeSourceID(source.String())
	fields := map[string]any{"source": source.String()}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()
	if err = s.ensureOpen(); err != nil {
		return err
	}
	handle, ok := s.store.handle(source)
	if !ok {
		err = s.mapError(fmt.Errorf("%w: %s", ErrSourceNotFound, source))
		return err
	}
	if disconnectErr := safeDisconnect(ctx, handle); disconnectErr != nil {
		err = s.mapError(goerrors.Wrap(disconnectErr, goerrors.CategoryExternal, "core: disconnect failed").
			WithTextCode(WalletErrorConnectFailed).
			WithMetadata(map[string]any{"source": source.String()}))
		return err
	}
	return nil
}

func (s *Service) RegisterHook(hook ChangeHook) {
	if s == nil || s.hooks == nil {
		return
	}
	s.hooks.Register(hook)
}

func (s *Service) WaitIdle(ctx context.Context) error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.WaitIdle(ctx)
}

func (s *Service) WaitReconnects(ctx context.Context) error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.WaitReconnects(ctx)
}

// Close detaches every subscription and stops the reconciler. The active
// identity and its persisted value are left as they are.
func (s *Service) Close(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "close", err, nil)
	}()
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.subscriptions.DetachAll()
	if err = s.store.Close(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) ensureOpen() error {
	if s == nil || s.store == nil {
		return fmt.Errorf("core: service is not initialized")
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return s.mapError(ErrStoreClosed)
	}
	return nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func safeDisconnect(ctx context.Context, handle Handle) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("core: disconnect panicked: %v", recovered)
		}
	}()
	return handle.Disconnect(ctx)
}
