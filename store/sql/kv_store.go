package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// KeyValueStore keeps string values in the wallet_kv table. It backs the
// persisted active identity.
type KeyValueStore struct {
	db *bun.DB
}

func NewKeyValueStore(db *bun.DB) (*KeyValueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &KeyValueStore{db: db}, nil
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: key/value store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("sqlstore: storage key is required")
	}
	record, err := findKeyValue(ctx, s.db, key)
	if err != nil {
		return "", false, err
	}
	if record == nil {
		return "", false, nil
	}
	return record.Value, true, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key string, value string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: key/value store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: storage key is required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findKeyValue(ctx, tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			_, err = tx.NewInsert().Model(&keyValueRecord{
				StorageKey: key,
				Value:      value,
				CreatedAt:  now,
				UpdatedAt:  now,
			}).Exec(ctx)
			return err
		}
		record.Value = value
		record.UpdatedAt = now
		_, err = tx.NewUpdate().
			Model(record).
			Column("value", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
}

func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: key/value store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*keyValueRecord)(nil)).
		Where("storage_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	return err
}

func findKeyValue(ctx context.Context, db bun.IDB, key string) (*keyValueRecord, error) {
	record := &keyValueRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.storage_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
