package backpack

import (
	"github.com/goliatone/go-wallets/core"
	"github.com/goliatone/go-wallets/providers"
)

const (
	Source          = core.SourceBackpack
	EnvironmentPath = "backpack"
)

type Marker interface {
	IsBackpack() bool
}

type Config struct {
	Path string
}

func DefaultConfig() Config {
	return Config{Path: EnvironmentPath}
}

// New builds the Backpack detector. Backpack does not emit account switches;
// its connect event carries the key, or the key is read from the handle.
func New(cfg Config) (core.Detector, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	return providers.NewInjectedDetector(providers.InjectedConfig{
		Source: Source,
		Path:   cfg.Path,
		Events: []core.EventKind{core.EventConnect, core.EventDisconnect},
		Marker: func(value any) bool {
			marker, ok := value.(Marker)
			return ok && marker.IsBackpack()
		},
	})
}

func Factory() (core.Detector, error) {
	return New(DefaultConfig())
}
