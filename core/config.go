package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultStorageKey       = "activePubKey"
	DefaultDebounceWindowMS = 500
)

type Config struct {
	ServiceName          string   `koanf:"service_name" mapstructure:"service_name"`
	StorageKey           string   `koanf:"storage_key" mapstructure:"storage_key"`
	DebounceWindowMS     int      `koanf:"debounce_window_ms" mapstructure:"debounce_window_ms"`
	DisableDebounce      bool     `koanf:"disable_debounce" mapstructure:"disable_debounce"`
	DebouncedSources     []string `koanf:"debounced_sources" mapstructure:"debounced_sources"`
	TrackedAdapters      []string `koanf:"tracked_adapters" mapstructure:"tracked_adapters"`
	SkipAdapterAttachKey bool     `koanf:"skip_adapter_attach_key" mapstructure:"skip_adapter_attach_key"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:      "wallets",
		StorageKey:       DefaultStorageKey,
		DebounceWindowMS: DefaultDebounceWindowMS,
		DebouncedSources: []string{string(SourceTrust)},
		TrackedAdapters:  []string{"Solflare", "Glow"},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.StorageKey) == "" {
		return fmt.Errorf("core: storage_key is required")
	}
	if c.DebounceWindowMS < 0 {
		return fmt.Errorf("core: debounce_window_ms must not be negative")
	}
	for _, source := range c.DebouncedSources {
		if NormalizeSourceID(source) == "" {
			return fmt.Errorf("core: debounced_sources contains an empty source")
		}
	}
	return nil
}

func (c Config) DebounceWindow() time.Duration {
	if c.DisableDebounce || c.DebounceWindowMS <= 0 {
		return 0
	}
	return time.Duration(c.DebounceWindowMS) * time.Millisecond
}

func (c Config) debouncedSourceSet() map[SourceID]bool {
	out := make(map[SourceID]bool, len(c.DebouncedSources))
	for _, source := range c.DebouncedSources {
		if id := NormalizeSourceID(source); id != "" {
			out[id] = true
		}
	}
	return out
}

// TracksAdapter reports whether listeners should be attached for the named
// adapter. An empty allow-list tracks every adapter.
func (c Config) TracksAdapter(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if len(c.TrackedAdapters) == 0 {
		return true
	}
	for _, tracked := range c.TrackedAdapters {
		if strings.EqualFold(strings.TrimSpace(tracked), name) {
			return true
		}
	}
	return false
}
