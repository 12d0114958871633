package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Listener is a subscription reference. Handles must compare listeners by
// pointer so that Off removes exactly the reference passed to On.
type Listener struct {
	fn func(key *PublicKey)
}

func NewListener(fn func(key *PublicKey)) *Listener {
	return &Listener{fn: fn}
}

func (l *Listener) Notify(key *PublicKey) {
	if l == nil || l.fn == nil {
		return
	}
	l.fn(CloneKey(key))
}

// Handle is the capability view shared by injected wallets and adapters.
type Handle interface {
	// Connect resolves with the connected key, or nil when the provider
	// resolves without one.
	Connect(ctx context.Context) (*PublicKey, error)
	Disconnect(ctx context.Context) error
	On(kind EventKind, listener *Listener)
	Off(kind EventKind, listener *Listener)
	PublicKey() *PublicKey
}

// Environment replaces ambient globals: detectors look up provider objects by
// name instead of probing the host.
type Environment interface {
	Lookup(name string) (any, bool)
}

type EnvironmentMap map[string]any

func (m EnvironmentMap) Lookup(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	value, ok := m[name]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

type Detector interface {
	Source() SourceID
	Events() []EventKind
	Detect(env Environment) (Handle, bool)
}

type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

type IdentityPersistence interface {
	Load(ctx context.Context) *PublicKey
	Save(ctx context.Context, key *PublicKey) error
}

type ChangeHook interface {
	Name() string
	OnChange(ctx context.Context, change Change) error
}

// ErrorReporter receives non-fatal failures such as rejected reconnects.
type ErrorReporter func(ctx context.Context, source SourceID, err error)

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(delay time.Duration, fn func()) Timer
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
