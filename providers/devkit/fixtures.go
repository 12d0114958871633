package devkit

import (
	"strings"
	"sync"

	"github.com/goliatone/go-wallets/core"
)

// Environment is a mutable, concurrency safe core.Environment.
type Environment struct {
	mu      sync.RWMutex
	objects map[string]any
}

func NewEnvironment() *Environment {
	return &Environment{objects: map[string]any{}}
}

func (e *Environment) Set(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.objects[strings.TrimSpace(name)] = value
}

func (e *Environment) Remove(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.objects, strings.TrimSpace(name))
}

func (e *Environment) Lookup(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	value, ok := e.objects[strings.TrimSpace(name)]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// Well known base58 keys used across tests and examples.
const (
	FixtureKeyAlice = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	FixtureKeyBob   = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	FixtureKeyCarol = "11111111111111111111111111111111"
)

func FixtureKey(raw string) *core.PublicKey {
	key := core.MustParsePublicKey(raw)
	return &key
}

var _ core.Environment = (*Environment)(nil)
