package providers

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-wallets/core"
)

type InjectedConfig struct {
	Source core.SourceID
	// Path is the name the provider object is registered under in the
	// environment, e.g. "phantom.solana".
	Path   string
	Events []core.EventKind
	// Marker reports whether the looked up value carries the provider flag.
	Marker func(value any) bool
}

type InjectedDetector struct {
	source core.SourceID
	path   string
	events []core.EventKind
	marker func(value any) bool
}

func NewInjectedDetector(cfg InjectedConfig) (*InjectedDetector, error) {
	source := core.NormalizeSourceID(cfg.Source.String())
	if source == "" {
		return nil, fmt.Errorf("providers: source is required")
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("providers: environment path is required for %s", source)
	}
	if cfg.Marker == nil {
		return nil, fmt.Errorf("providers: marker check is required for %s", source)
	}
	events := make([]core.EventKind, 0, len(cfg.Events))
	for _, event := range cfg.Events {
		if !event.Valid() {
			return nil, fmt.Errorf("providers: unsupported event %q for %s", event, source)
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("providers: at least one event is required for %s", source)
	}
	return &InjectedDetector{source: source, path: path, events: events, marker: cfg.Marker}, nil
}

func (d *InjectedDetector) Source() core.SourceID { return d.source }

func (d *InjectedDetector) Path() string { return d.path }

func (d *InjectedDetector) Events() []core.EventKind {
	return append([]core.EventKind(nil), d.events...)
}

// Detect never panics. Missing objects, objects without the handle
// capabilities and objects whose marker is unset all read as absent.
func (d *InjectedDetector) Detect(env core.Environment) (handle core.Handle, ok bool) {
	defer func() {
		if recover() != nil {
			handle, ok = nil, false
		}
	}()
	if d == nil || env == nil {
		return nil, false
	}
	value, found := env.Lookup(d.path)
	if !found || value == nil {
		return nil, false
	}
	candidate, isHandle := value.(core.Handle)
	if !isHandle || !d.marker(value) {
		return nil, false
	}
	return candidate, true
}

var _ core.Detector = (*InjectedDetector)(nil)
