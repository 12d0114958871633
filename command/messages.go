package command

import (
	"strings"

	"github.com/goliatone/go-wallets/core"
)

const (
	TypeSetExternalKey   = "wallets.command.external_key.set"
	TypeSetAdapter       = "wallets.command.adapter.set"
	TypeRefresh          = "wallets.command.refresh"
	TypeDisconnectSource = "wallets.command.source.disconnect"
)

// SetExternalKeyMessage carries the caller supplied fallback key. A nil Key
// or an empty Raw value clears it.
type SetExternalKeyMessage struct {
	Key *core.PublicKey
	Raw string
}

func (SetExternalKeyMessage) Type() string { return TypeSetExternalKey }

func (m SetExternalKeyMessage) Validate() error {
	if m.Key != nil && strings.TrimSpace(m.Raw) != "" {
		return commandValidationError("key", "set either key or raw, not both")
	}
	if raw := strings.TrimSpace(m.Raw); raw != "" {
		if _, err := core.ParsePublicKey(raw); err != nil {
			return commandWrapValidation(err, "command: external key is malformed")
		}
	}
	return nil
}

func (m SetExternalKeyMessage) resolve() (*core.PublicKey, error) {
	if m.Key != nil {
		return core.CloneKey(m.Key), nil
	}
	raw := strings.TrimSpace(m.Raw)
	if raw == "" {
		return nil, nil
	}
	key, err := core.ParsePublicKey(raw)
	if err != nil {
		return nil, commandWrapValidation(err, "command: external key is malformed")
	}
	return &key, nil
}

// SetAdapterMessage selects the adapter wallet. A nil Adapter clears it.
type SetAdapterMessage struct {
	Adapter *core.AdapterDescriptor
}

func (SetAdapterMessage) Type() string { return TypeSetAdapter }

func (m SetAdapterMessage) Validate() error {
	if m.Adapter == nil {
		return nil
	}
	if strings.TrimSpace(m.Adapter.Name) == "" {
		return commandValidationError("adapter.name", "adapter name is required")
	}
	if m.Adapter.Handle == nil {
		return commandValidationError("adapter.handle", "adapter handle is required")
	}
	return nil
}

type RefreshMessage struct{}

func (RefreshMessage) Type() string { return TypeRefresh }

func (RefreshMessage) Validate() error { return nil }

type DisconnectSourceMessage struct {
	Source core.SourceID
}

func (DisconnectSourceMessage) Type() string { return TypeDisconnectSource }

func (m DisconnectSourceMessage) Validate() error {
	if core.NormalizeSourceID(m.Source.String()) == "" {
		return commandValidationError("source", "source is required")
	}
	return nil
}
