package core

import (
	"context"
	"fmt"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	registry        Registry
	detectors       []Detector
	environment     Environment
	keyValueStore   KeyValueStore
	persistence     IdentityPersistence
	clock           Clock
	errorReporter   ErrorReporter
	hooks           []ChangeHook
	externalKey     *PublicKey
	adapter         *AdapterDescriptor
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithRegistry(registry Registry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

// WithDetectors registers detectors on the configured registry when the
// service is built. Duplicate sources fail NewService.
func WithDetectors(detectors ...Detector) Option {
	return func(b *serviceBuilder) {
		for _, detector := range detectors {
			if detector != nil {
				b.detectors = append(b.detectors, detector)
			}
		}
	}
}

func WithEnvironment(environment Environment) Option {
	return func(b *serviceBuilder) {
		b.environment = environment
	}
}

func WithKeyValueStore(store KeyValueStore) Option {
	return func(b *serviceBuilder) {
		b.keyValueStore = store
	}
}

// WithPersistence replaces the key/value persistence adapter entirely.
func WithPersistence(persistence IdentityPersistence) Option {
	return func(b *serviceBuilder) {
		b.persistence = persistence
	}
}

func WithClock(clock Clock) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func WithErrorReporter(reporter ErrorReporter) Option {
	return func(b *serviceBuilder) {
		b.errorReporter = reporter
	}
}

func WithChangeHook(hook ChangeHook) Option {
	return func(b *serviceBuilder) {
		if hook != nil {
			b.hooks = append(b.hooks, hook)
		}
	}
}

func WithExternalKey(key *PublicKey) Option {
	return func(b *serviceBuilder) {
		b.externalKey = CloneKey(key)
	}
}

func WithAdapter(descriptor *AdapterDescriptor) Option {
	return func(b *serviceBuilder) {
		b.adapter = descriptor
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("wallets", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           SystemClock{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return walletErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader returns a loader that always yields a copy of values.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

const DefaultEnvPrefix = "WALLETS_"

type envConfig struct {
	ServiceName          string   `env:"SERVICE_NAME"`
	StorageKey           string   `env:"STORAGE_KEY"`
	DebounceWindowMS     int      `env:"DEBOUNCE_WINDOW_MS"`
	DisableDebounce      bool     `env:"DISABLE_DEBOUNCE"`
	DebouncedSources     []string `env:"DEBOUNCED_SOURCES" envSeparator:","`
	TrackedAdapters      []string `env:"TRACKED_ADAPTERS" envSeparator:","`
	SkipAdapterAttachKey bool     `env:"SKIP_ADAPTER_ATTACH_KEY"`
}

// EnvConfigLoader reads WALLETS_* variables. Only variables that are present
// end up in the raw map, so unset values keep their defaults.
type EnvConfigLoader struct {
	Prefix string
	// Environ overrides the process environment when set.
	Environ map[string]string
}

func NewEnvConfigLoader() *EnvConfigLoader {
	return &EnvConfigLoader{Prefix: DefaultEnvPrefix}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := DefaultEnvPrefix
	var environ map[string]string
	if l != nil {
		if strings.TrimSpace(l.Prefix) != "" {
			prefix = l.Prefix
		}
		environ = l.Environ
	}

	var parsed envConfig
	seen := map[string]bool{}
	err := env.ParseWithOptions(&parsed, env.Options{
		Prefix:      prefix,
		Environment: environ,
		OnSet: func(tag string, value any, isDefault bool) {
			if text, ok := value.(string); ok && text != "" && !isDefault {
				seen[strings.TrimPrefix(tag, prefix)] = true
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("core: parse environment config: %w", err)
	}

	raw := map[string]any{}
	if seen["SERVICE_NAME"] {
		raw["service_name"] = parsed.ServiceName
	}
	if seen["STORAGE_KEY"] {
		raw["storage_key"] = parsed.StorageKey
	}
	if seen["DEBOUNCE_WINDOW_MS"] {
		raw["debounce_window_ms"] = parsed.DebounceWindowMS
	}
	if seen["DISABLE_DEBOUNCE"] {
		raw["disable_debounce"] = parsed.DisableDebounce
	}
	if seen["DEBOUNCED_SOURCES"] {
		raw["debounced_sources"] = trimAll(parsed.DebouncedSources)
	}
	if seen["TRACKED_ADAPTERS"] {
		raw["tracked_adapters"] = trimAll(parsed.TrackedAdapters)
	}
	if seen["SKIP_ADAPTER_ATTACH_KEY"] {
		raw["skip_adapter_attach_key"] = parsed.SkipAdapterAttachKey
	}
	return raw, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap only carries set values for non default layers, so zero
// values never override. Use DisableDebounce to turn the debounce off.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.StorageKey) != "" {
		layer["storage_key"] = cfg.StorageKey
	}
	if includeZero || cfg.DebounceWindowMS != 0 {
		layer["debounce_window_ms"] = cfg.DebounceWindowMS
	}
	if includeZero || cfg.DisableDebounce {
		layer["disable_debounce"] = cfg.DisableDebounce
	}
	if includeZero || len(cfg.DebouncedSources) > 0 {
		layer["debounced_sources"] = append([]string(nil), cfg.DebouncedSources...)
	}
	if includeZero || len(cfg.TrackedAdapters) > 0 {
		layer["tracked_adapters"] = append([]string(nil), cfg.TrackedAdapters...)
	}
	if includeZero || cfg.SkipAdapterAttachKey {
		layer["skip_adapter_attach_key"] = cfg.SkipAdapterAttachKey
	}
	return layer
}
