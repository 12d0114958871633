package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-wallets/core"
	sqlstore "github.com/goliatone/go-wallets/store/sql"
)

var (
	_ gocmd.Querier[ActiveIdentityMessage, ActiveIdentity]         = (*ActiveIdentityQuery)(nil)
	_ gocmd.Querier[SnapshotMessage, core.Snapshot]                = (*SnapshotQuery)(nil)
	_ gocmd.Querier[RecentChangesMessage, []sqlstore.JournalEntry] = (*RecentChangesQuery)(nil)
	_ gocmd.Querier[SourceChangesMessage, []sqlstore.JournalEntry] = (*SourceChangesQuery)(nil)

	_ IdentityReader = (*core.Service)(nil)
	_ JournalReader  = (*sqlstore.JournalStore)(nil)
)
