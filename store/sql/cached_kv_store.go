package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-wallets/core"
)

const keyValueCacheKeyPrefix = "go-wallets::kv::v1"

type cachedValue struct {
	Value string
	Found bool
}

// CachedKeyValueStore reads through a cache and invalidates on every write.
type CachedKeyValueStore struct {
	base  core.KeyValueStore
	cache repositorycache.CacheService
}

func NewCachedKeyValueStore(base core.KeyValueStore, cacheService repositorycache.CacheService) (*CachedKeyValueStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base key/value store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: key/value cache service is required")
	}
	return &CachedKeyValueStore{base: base, cache: cacheService}, nil
}

// KeyValueCacheKey returns go-wallets::kv::v1::<key> with the key URL path
// escaped.
func KeyValueCacheKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: storage key is required")
	}
	return keyValueCacheKeyPrefix + "::" + url.PathEscape(key), nil
}

func (s *CachedKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", false, fmt.Errorf("sqlstore: cached key/value store is not configured")
	}
	cacheKey, err := KeyValueCacheKey(key)
	if err != nil {
		return "", false, err
	}
	cached, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedValue, error) {
		value, found, fetchErr := s.base.Get(ctx, key)
		if fetchErr != nil {
			return cachedValue{}, fetchErr
		}
		return cachedValue{Value: value, Found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	return cached.Value, cached.Found, nil
}

func (s *CachedKeyValueStore) Set(ctx context.Context, key string, value string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached key/value store is not configured")
	}
	if err := s.base.Set(ctx, key, value); err != nil {
		return err
	}
	return s.invalidate(ctx, key)
}

func (s *CachedKeyValueStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached key/value store is not configured")
	}
	if err := s.base.Delete(ctx, key); err != nil {
		return err
	}
	return s.invalidate(ctx, key)
}

func (s *CachedKeyValueStore) invalidate(ctx context.Context, key string) error {
	cacheKey, err := KeyValueCacheKey(key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
