package core

import (
	"fmt"
	"sort"
	"sync"
)

type Registry interface {
	Register(detector Detector) error
	Get(source SourceID) (Detector, bool)
	List() []Detector
}

type DetectorRegistry struct {
	mu        sync.RWMutex
	detectors map[SourceID]Detector
}

func NewDetectorRegistry(detectors ...Detector) *DetectorRegistry {
	registry := &DetectorRegistry{detectors: make(map[SourceID]Detector)}
	for _, detector := range detectors {
		_ = registry.Register(detector)
	}
	return registry
}

func (r *DetectorRegistry) Register(detector Detector) error {
	if detector == nil {
		return fmt.Errorf("core: detector is nil")
	}
	source := NormalizeSourceID(detector.Source().String())
	if source == "" {
		return fmt.Errorf("core: detector source is required")
	}
	switch source {
	case SourceAdapter, SourceExternalKey, SourceStorage:
		return fmt.Errorf("core: source %q is reserved and can not be detected", source)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.detectors[source]; exists {
		return fmt.Errorf("%w: %s", ErrDetectorExists, source)
	}
	r.detectors[source] = detector
	return nil
}

func (r *DetectorRegistry) Get(source SourceID) (Detector, bool) {
	id := NormalizeSourceID(source.String())
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	detector, ok := r.detectors[id]
	r.mu.RUnlock()
	return detector, ok
}

// List returns detectors ordered by source id.
func (r *DetectorRegistry) List() []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.detectors))
	for id := range r.detectors {
		keys = append(keys, id.String())
	}
	sort.Strings(keys)
	detectors := make([]Detector, 0, len(keys))
	for _, id := range keys {
		detectors = append(detectors, r.detectors[SourceID(id)])
	}
	return detectors
}

// detect runs a detector and converts a panic into absence.
func detect(detector Detector, env Environment) (handle Handle, ok bool, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			handle, ok = nil, false
			err = fmt.Errorf("core: detector %q panicked: %v", detector.Source(), recovered)
		}
	}()
	if env == nil {
		env = EnvironmentMap(nil)
	}
	handle, ok = detector.Detect(env)
	if !ok || handle == nil {
		return nil, false, nil
	}
	return handle, ok, nil
}
