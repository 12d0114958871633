package wallets

import (
	"github.com/goliatone/go-wallets/core"
	"github.com/goliatone/go-wallets/providers"
	"github.com/goliatone/go-wallets/providers/backpack"
	"github.com/goliatone/go-wallets/providers/glow"
	"github.com/goliatone/go-wallets/providers/phantom"
	"github.com/goliatone/go-wallets/providers/trust"
)

func PhantomDetector(cfg phantom.Config) (core.Detector, error) {
	return phantom.New(cfg)
}

func BackpackDetector(cfg backpack.Config) (core.Detector, error) {
	return backpack.New(cfg)
}

func TrustDetector(cfg trust.Config) (core.Detector, error) {
	return trust.New(cfg)
}

func GlowDetector(cfg glow.Config) (core.Detector, error) {
	return glow.New(cfg)
}

// DefaultDetectors returns the built-in injected detectors at their default
// environment paths.
func DefaultDetectors() ([]core.Detector, error) {
	return providers.Build(phantom.Factory, backpack.Factory, trust.Factory, glow.Factory)
}

// Adapter wraps an external adapter handle for SetAdapter.
func Adapter(name string, handle core.Handle) *core.AdapterDescriptor {
	return providers.Adapter(name, handle)
}
