package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestChangeHookCoordinator_AggregatesErrors(t *testing.T) {
	calls := make([]string, 0, 3)
	coordinator := NewChangeHookCoordinator(
		NewChangeHook("one", func(context.Context, Change) error {
			calls = append(calls, "one")
			return errors.New("boom-1")
		}),
		NewChangeHook("", func(context.Context, Change) error {
			calls = append(calls, "two")
			panic("boom-2")
		}),
		NewChangeHook("three", func(context.Context, Change) error {
			calls = append(calls, "three")
			return nil
		}),
	)
	coordinator.Register(nil)

	err := coordinator.Notify(context.Background(), Change{Current: keyPtr(1), Source: SourcePhantom})
	if err == nil {
		t.Fatalf("expected aggregated hook error")
	}
	if len(calls) != 3 {
		t.Fatalf("expected all hooks to run, got %v", calls)
	}
	if !strings.Contains(err.Error(), `"one"`) || !strings.Contains(err.Error(), `"unnamed"`) {
		t.Fatalf("expected hook names in error, got %v", err)
	}
	if coordinator.Len() != 3 {
		t.Fatalf("expected nil hook to be ignored")
	}
}
