package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

type ChangeHookCoordinator struct {
	mu    sync.RWMutex
	hooks []ChangeHook
}

func NewChangeHookCoordinator(hooks ...ChangeHook) *ChangeHookCoordinator {
	coordinator := &ChangeHookCoordinator{hooks: make([]ChangeHook, 0, len(hooks))}
	for _, hook := range hooks {
		coordinator.Register(hook)
	}
	return coordinator
}

func (c *ChangeHookCoordinator) Register(hook ChangeHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Notify runs every hook in registration order after a change was committed.
// Failures and panics are aggregated; the change itself is never rolled back.
func (c *ChangeHookCoordinator) Notify(ctx context.Context, change Change) error {
	var hookErr error
	for _, hook := range c.snapshot() {
		if err := runChangeHook(ctx, hook, change); err != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("change hook %q failed: %w", hookName(hook), err))
		}
	}
	return hookErr
}

func (c *ChangeHookCoordinator) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hooks)
}

func (c *ChangeHookCoordinator) snapshot() []ChangeHook {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ChangeHook, len(c.hooks))
	copy(out, c.hooks)
	return out
}

func runChangeHook(ctx context.Context, hook ChangeHook, change Change) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return hook.OnChange(ctx, change)
}

func hookName(hook ChangeHook) string {
	if hook == nil {
		return "unknown"
	}
	name := strings.TrimSpace(hook.Name())
	if name == "" {
		return "unnamed"
	}
	return name
}

type changeHookFunc struct {
	name string
	fn   func(context.Context, Change) error
}

// NewChangeHook adapts a function to ChangeHook.
func NewChangeHook(name string, fn func(ctx context.Context, change Change) error) ChangeHook {
	return changeHookFunc{name: name, fn: fn}
}

func (h changeHookFunc) Name() string { return h.name }

func (h changeHookFunc) OnChange(ctx context.Context, change Change) error {
	if h.fn == nil {
		return nil
	}
	return h.fn(ctx, change)
}
