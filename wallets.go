// Package wallets tracks the single active wallet identity of a client session
// across injected wallet providers, an external wallet adapter and a
// caller-supplied key.
//
// Most applications only need NewService or Setup plus the detectors from
// DefaultDetectors. The core package holds the full API.
package wallets

import "github.com/goliatone/go-wallets/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type IdentityService = core.IdentityService

type PublicKey = core.PublicKey
type SourceID = core.SourceID
type EventKind = core.EventKind
type Change = core.Change
type ChangeReason = core.ChangeReason
type ChangeHook = core.ChangeHook
type Snapshot = core.Snapshot
type AdapterDescriptor = core.AdapterDescriptor
type Detector = core.Detector
type Handle = core.Handle
type Listener = core.Listener
type Environment = core.Environment
type EnvironmentMap = core.EnvironmentMap
type KeyValueStore = core.KeyValueStore
type ErrorReporter = core.ErrorReporter

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithRegistry        = core.WithRegistry
	WithDetectors       = core.WithDetectors
	WithEnvironment     = core.WithEnvironment
	WithKeyValueStore   = core.WithKeyValueStore
	WithPersistence     = core.WithPersistence
	WithClock           = core.WithClock
	WithErrorReporter   = core.WithErrorReporter
	WithChangeHook      = core.WithChangeHook
	WithExternalKey     = core.WithExternalKey
	WithAdapter         = core.WithAdapter
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// Setup builds the service and starts it.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

func ParsePublicKey(raw string) (PublicKey, error) {
	return core.ParsePublicKey(raw)
}
