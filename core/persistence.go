package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// KeyValuePersistence stores the active identity as its canonical string
// under a single key. Load never fails: absent, unreadable and malformed
// values all read as no identity.
type KeyValuePersistence struct {
	store  KeyValueStore
	key    string
	logger Logger
}

func NewKeyValuePersistence(store KeyValueStore, key string, logger Logger) *KeyValuePersistence {
	if strings.TrimSpace(key) == "" {
		key = DefaultStorageKey
	}
	if store == nil {
		store = NewMemoryKeyValueStore()
	}
	return &KeyValuePersistence{store: store, key: key, logger: logger}
}

func (p *KeyValuePersistence) Key() string {
	if p == nil {
		return ""
	}
	return p.key
}

func (p *KeyValuePersistence) Load(ctx context.Context) *PublicKey {
	if p == nil || p.store == nil {
		return nil
	}
	value, found, err := p.store.Get(ctx, p.key)
	if err != nil {
		logWithLevel(ctx, p.logger, "warn", "persisted identity unreadable", map[string]any{
			"storage_key": p.key,
			"error":       err.Error(),
		})
		return nil
	}
	if !found {
		return nil
	}
	key, err := ParsePublicKey(value)
	if err != nil {
		logWithLevel(ctx, p.logger, "warn", "persisted identity malformed, treating as absent", map[string]any{
			"storage_key": p.key,
			"error":       err.Error(),
		})
		return nil
	}
	return &key
}

func (p *KeyValuePersistence) Save(ctx context.Context, key *PublicKey) error {
	if p == nil || p.store == nil {
		return nil
	}
	if key == nil {
		if err := p.store.Delete(ctx, p.key); err != nil {
			return persistenceFailure("delete", err)
		}
		return nil
	}
	if err := p.store.Set(ctx, p.key, key.String()); err != nil {
		return persistenceFailure("save", err)
	}
	return nil
}

type MemoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{values: map[string]string{}}
}

func (s *MemoryKeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("core: memory store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *MemoryKeyValueStore) Set(_ context.Context, key string, value string) error {
	if s == nil {
		return fmt.Errorf("core: memory store is nil")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("core: storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryKeyValueStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: memory store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
