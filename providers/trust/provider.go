package trust

import (
	"github.com/goliatone/go-wallets/core"
	"github.com/goliatone/go-wallets/providers"
)

const (
	Source          = core.SourceTrust
	EnvironmentPath = "trustwallet.solana"
)

type Marker interface {
	IsTrustWallet() bool
}

type Config struct {
	Path string
}

func DefaultConfig() Config {
	return Config{Path: EnvironmentPath}
}

// New builds the Trust Wallet detector. Trust emits a disconnect while the
// user switches accounts, so its source is debounced by default in
// core.DefaultConfig.
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
			return ok && marker.IsTrustWallet()
		},
	})
}

func Factory() (core.Detector, error) {
	return New(DefaultConfig())
}
