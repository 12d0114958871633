package query

import (
	"context"

	"github.com/goliatone/go-wallets/core"
	sqlstore "github.com/goliatone/go-wallets/store/sql"
)

type IdentityReader interface {
	ActiveIdentity() (core.PublicKey, bool)
	Snapshot() core.Snapshot
}

// JournalReader is implemented by sqlstore.JournalStore.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]sqlstore.JournalEntry, error)
	BySource(ctx context.Context, source core.SourceID) ([]sqlstore.JournalEntry, error)
}

// ActiveIdentity is the query result. Present is false while the identity
// is null.
type ActiveIdentity struct {
	Key     core.PublicKey
	Present bool
}

func (a ActiveIdentity) String() string {
	if !a.Present {
		return ""
	}
	return a.Key.String()
}

type ActiveIdentityQuery struct {
	reader IdentityReader
}

func NewActiveIdentityQuery(reader IdentityReader) *ActiveIdentityQuery {
	return &ActiveIdentityQuery{reader: reader}
}

func (q *ActiveIdentityQuery) Query(_ context.Context, _ ActiveIdentityMessage) (ActiveIdentity, error) {
	if q == nil || q.reader == nil {
		return ActiveIdentity{}, queryDependencyError("query: identity reader is required")
	}
	key, ok := q.reader.ActiveIdentity()
	return ActiveIdentity{Key: key, Present: ok}, nil
}

type SnapshotQuery struct {
	reader IdentityReader
}

func NewSnapshotQuery(reader IdentityReader) *SnapshotQuery {
	return &SnapshotQuery{reader: reader}
}

func (q *SnapshotQuery) Query(_ context.Context, _ SnapshotMessage) (core.Snapshot, error) {
	if q == nil || q.reader == nil {
		return core.Snapshot{}, queryDependencyError("query: identity reader is required")
	}
	return q.reader.Snapshot(), nil
}

type RecentChangesQuery struct {
	reader JournalReader
}

func NewRecentChangesQuery(reader JournalReader) *RecentChangesQuery {
	return &RecentChangesQuery{reader: reader}
}

func (q *RecentChangesQuery) Query(ctx context.Context, msg RecentChangesMessage) ([]sqlstore.JournalEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: journal reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.Recent(ctx, msg.Limit)
}

type SourceChangesQuery struct {
	reader JournalReader
}

func NewSourceChangesQuery(reader JournalReader) *SourceChangesQuery {
	return &SourceChangesQuery{reader: reader}
}

func (q *SourceChangesQuery) Query(ctx context.Context, msg SourceChangesMessage) ([]sqlstore.JournalEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: journal reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.BySource(ctx, msg.Source)
}
