package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-wallets/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	keyValueStore *KeyValueStore
	journalStore  *JournalStore
	cache         repositorycache.CacheService
}

type FactoryOption func(*RepositoryFactory)

// WithCacheService puts a read-through cache in front of the key/value store.
func WithCacheService(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.keyValueStore != nil && f.journalStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// KeyValueStore returns the store used for the persisted identity, cached
// when a cache service was configured.
func (f *RepositoryFactory) KeyValueStore() core.KeyValueStore {
	if f == nil || f.keyValueStore == nil {
		return nil
	}
	if f.cache != nil {
		cached, err := NewCachedKeyValueStore(f.keyValueStore, f.cache)
		if err == nil {
			return cached
		}
	}
	return f.keyValueStore
}

func (f *RepositoryFactory) JournalStore() *JournalStore {
	if f == nil {
		return nil
	}
	return f.journalStore
}

func (f *RepositoryFactory) initStores() error {
	keyValueStore, err := NewKeyValueStore(f.db)
	if err != nil {
		return err
	}
	f.keyValueStore = keyValueStore

	journalStore, err := NewJournalStore(f.db)
	if err != nil {
		return err
	}
	f.journalStore = journalStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
