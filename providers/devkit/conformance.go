package devkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-wallets/core"
)

// ValidateHandleConformance checks that a handle removes exactly the listener
// reference it was given and that Connect honors context cancellation or
// returns promptly.
func ValidateHandleConformance(ctx context.Context, handle core.Handle, event core.EventKind) error {
	if handle == nil {
		return fmt.Errorf("devkit: handle is required")
	}
	if !event.Valid() {
		return fmt.Errorf("devkit: unsupported event %q", event)
	}

	first, second := 0, 0
	firstListener := core.NewListener(func(*core.PublicKey) { first++ })
	secondListener := core.NewListener(func(*core.PublicKey) { second++ })
	handle.On(event, firstListener)
	handle.On(event, secondListener)
	handle.Off(event, firstListener)

	emitter, canEmit := handle.(interface {
		Emit(kind core.EventKind, key *core.PublicKey)
	})
	if canEmit {
		emitter.Emit(event, nil)
		if first != 0 {
			return fmt.Errorf("devkit: removed listener was notified")
		}
		if second != 1 {
			return fmt.Errorf("devkit: remaining listener notified %d times, want 1", second)
		}
	}
	handle.Off(event, secondListener)

	if _, err := handle.Connect(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("devkit: connect failed: %w", err)
	}
	return nil
}

// ValidateDetectorConformance checks that a detector has a source, declares
// valid events, ignores an empty environment, and finds handle under its
// lookup name.
func ValidateDetectorConformance(detector core.Detector, path string, handle core.Handle) error {
	if detector == nil {
		return fmt.Errorf("devkit: detector is required")
	}
	if strings.TrimSpace(detector.Source().String()) == "" {
		return fmt.Errorf("devkit: detector source is required")
	}
	events := detector.Events()
	if len(events) == 0 {
		return fmt.Errorf("devkit: detector %s declares no events", detector.Source())
	}
	for _, event := range events {
		if !event.Valid() {
			return fmt.Errorf("devkit: detector %s declares unsupported event %q", detector.Source(), event)
		}
	}
	if found, ok := detector.Detect(NewEnvironment()); ok || found != nil {
		return fmt.Errorf("devkit: detector %s reported a handle in an empty environment", detector.Source())
	}
	env := NewEnvironment()
	env.Set(path, handle)
	found, ok := detector.Detect(env)
	if !ok || found == nil {
		return fmt.Errorf("devkit: detector %s did not find handle at %q", detector.Source(), path)
	}
	return nil
}
