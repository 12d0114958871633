package providers

import (
	"strings"

	"github.com/goliatone/go-wallets/core"
)

const (
	AdapterSolflare = "Solflare"
	AdapterGlow     = "Glow"
)

// Adapter builds the descriptor for the caller selected wallet adapter.
// It returns nil when no adapter is selected.
func Adapter(name string, handle core.Handle) *core.AdapterDescriptor {
	name = strings.TrimSpace(name)
	if name == "" || handle == nil {
		return nil
	}
	return &core.AdapterDescriptor{Name: name, Handle: handle}
}
