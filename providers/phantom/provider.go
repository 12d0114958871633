package phantom

import (
	"github.com/goliatone/go-wallets/core"
	"github.com/goliatone/go-wallets/providers"
)

const (
	Source          = core.SourcePhantom
	EnvironmentPath = "phantom.solana"
)

// Marker is implemented by provider objects that announce themselves as
// Phantom.
type Marker interface {
	IsPhantom() bool
}

type Config struct {
	Path string
}

func DefaultConfig() Config {
	return Config{Path: EnvironmentPath}
}

// New builds the primary injected detector. Phantom reports account switches
// through accountChanged, with no key when the new account is not yet
// connected to the site.
func New(cfg Config) (core.Detector, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	return providers.NewInjectedDetector(providers.InjectedConfig{
		Source: Source,
		Path:   cfg.Path,
		Events: []core.EventKind{core.EventAccountChanged, core.EventDisconnect},
		Marker: func(value any) bool {
			marker, ok := value.(Marker)
			return ok && marker.IsPhantom()
		},
	})
}

func Factory() (core.Detector, error) {
	return New(DefaultConfig())
}
