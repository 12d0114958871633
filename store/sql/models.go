package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type keyValueRecord struct {
	bun.BaseModel `bun:"table:wallet_kv,alias:wkv"`

	StorageKey string    `bun:"storage_key,pk"`
	Value      string    `bun:"value,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type identityChangeRecord struct {
	bun.BaseModel `bun:"table:wallet_identity_changes,alias:wic"`

	ID          string    `bun:"id,pk"`
	Source      string    `bun:"source,notnull"`
	Reason      string    `bun:"reason,notnull"`
	PreviousKey *string   `bun:"previous_key"`
	CurrentKey  *string   `bun:"current_key"`
	OccurredAt  time.Time `bun:"occurred_at,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
