package glow

import (
	"github.com/goliatone/go-wallets/core"
	"github.com/goliatone/go-wallets/providers"
)

const (
	Source          = core.SourceGlow
	EnvironmentPath = "glow"
)

type Marker interface {
	IsGlow() bool
}

type Config struct {
	Path string
}

func DefaultConfig() Config {
	return Config{Path: EnvironmentPath}
}

func New(cfg Config) (core.Detector, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	return providers.NewInjectedDetector(providers.InjectedConfig{
		Source: Source,
		Path:   cfg.Path,
		Events: []core.EventKind{core.EventAccountChanged},
		Marker: func(value any) bool {
			marker, ok := value.(Marker)
			return ok && marker.IsGlow()
		},
	})
}

func Factory() (core.Detector, error) {
	return New(DefaultConfig())
}
