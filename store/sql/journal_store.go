package sqlstore

import (
	"context"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-wallets/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const JournalHookName = "sql_identity_journal"

// JournalEntry is one committed change of the active identity.
type JournalEntry struct {
	ID         string
	Source     core.SourceID
	Reason     core.ChangeReason
	Previous   *core.PublicKey
	Current    *core.PublicKey
	OccurredAt time.Time
}

// JournalStore appends every committed change to wallet_identity_changes.
// Registered as a change hook it gives an audit trail of identity switches.
type JournalStore struct {
	db   *bun.DB
	repo repository.Repository[*identityChangeRecord]
}

func NewJournalStore(db *bun.DB) (*JournalStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*identityChangeRecord](db, identityChangeHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid identity journal repository wiring: %w", err)
		}
	}
	return &JournalStore{db: db, repo: repo}, nil
}

func (s *JournalStore) Name() string { return JournalHookName }

func (s *JournalStore) OnChange(ctx context.Context, change core.Change) error {
	_, err := s.Append(ctx, change)
	return err
}

func (s *JournalStore) Append(ctx context.Context, change core.Change) (JournalEntry, error) {
	if s == nil || s.repo == nil {
		return JournalEntry{}, fmt.Errorf("sqlstore: identity journal store is not configured")
	}
	occurredAt := change.At
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	record := &identityChangeRecord{
		ID:          uuid.NewString(),
		Source:      change.Source.String(),
		Reason:      string(change.Reason),
		PreviousKey: keyColumn(change.Previous),
		CurrentKey:  keyColumn(change.Current),
		OccurredAt:  occurredAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return JournalEntry{}, err
	}
	return created.toEntry(), nil
}

// Recent returns up to limit entries, newest first.
func (s *JournalStore) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: identity journal store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("occurred_at DESC"),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	entries := make([]JournalEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toEntry())
	}
	return entries, nil
}

func (s *JournalStore) BySource(ctx context.Context, source core.SourceID) ([]JournalEntry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: identity journal store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("source", "=", core.NormalizeSourceID(source.String()).String()),
		repository.OrderBy("occurred_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	entries := make([]JournalEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toEntry())
	}
	return entries, nil
}

func (r *identityChangeRecord) toEntry() JournalEntry {
	if r == nil {
		return JournalEntry{}
	}
	return JournalEntry{
		ID:         r.ID,
		Source:     core.SourceID(r.Source),
		Reason:     core.ChangeReason(r.Reason),
		Previous:   keyFromColumn(r.PreviousKey),
		Current:    keyFromColumn(r.CurrentKey),
		OccurredAt: r.OccurredAt.UTC(),
	}
}

func keyColumn(key *core.PublicKey) *string {
	if key == nil {
		return nil
	}
	value := key.String()
	return &value
}

// keyFromColumn drops values that no longer parse instead of failing the read.
func keyFromColumn(value *string) *core.PublicKey {
	if value == nil {
		return nil
	}
	key, err := core.ParsePublicKey(*value)
	if err != nil {
		return nil
	}
	return &key
}
