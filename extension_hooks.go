package wallets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-wallets/core"
)

// DetectorPack groups detectors for wallets that are not built in, so a
// host can register them in one step.
type DetectorPack struct {
	Name      string
	Detectors []core.Detector
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	detectorPacks map[string]DetectorPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		detectorPacks: map[string]DetectorPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterDetectorPack(pack DetectorPack) error {
	if h == nil {
		return fmt.Errorf("wallets: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("wallets: detector pack name is required")
	}
	if len(pack.Detectors) == 0 {
		return fmt.Errorf("wallets: detector pack %q has no detectors", name)
	}
	for _, detector := range pack.Detectors {
		if detector == nil {
			return fmt.Errorf("wallets: detector pack %q contains nil detector", name)
		}
	}

	normalized := DetectorPack{
		Name:      name,
		Detectors: append([]core.Detector(nil), pack.Detectors...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.detectorPacks[name]; exists {
		return fmt.Errorf("wallets: detector pack %q already registered", name)
	}
	h.detectorPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("wallets: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("wallets: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("wallets: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("wallets: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyDetectorPacks registers every pack in name order. Registering a
// source twice fails with the registry's conflict error.
func (h *ExtensionHooks) ApplyDetectorPacks(registry core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("wallets: registry is required")
	}

	for _, pack := range h.DetectorPacks() {
		for _, detector := range pack.Detectors {
			if err := registry.Register(detector); err != nil {
				return err
			}
		}
	}
	return nil
}

// Detectors flattens every pack in name order, for use with WithDetectors.
func (h *ExtensionHooks) Detectors() []core.Detector {
	out := []core.Detector{}
	for _, pack := range h.DetectorPacks() {
		out = append(out, pack.Detectors...)
	}
	return out
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("wallets: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		names = append(names, name)
		factories[name] = factory
	}
	h.mu.RUnlock()
	sort.Strings(names)

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, fmt.Errorf("wallets: build bundle %q: %w", name, err)
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) DetectorPacks() []DetectorPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.detectorPacks))
	for name := range h.detectorPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DetectorPack, 0, len(names))
	for _, name := range names {
		pack := h.detectorPacks[name]
		out = append(out, DetectorPack{
			Name:      pack.Name,
			Detectors: append([]core.Detector(nil), pack.Detectors...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
