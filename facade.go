package wallets

import (
	"fmt"

	walletcommand "github.com/goliatone/go-wallets/command"
	walletquery "github.com/goliatone/go-wallets/query"
)

type CommandQueryService interface {
	walletcommand.MutatingService
	walletquery.IdentityReader
}

type Commands struct {
	SetExternalKey   *walletcommand.SetExternalKeyCommand
	SetAdapter       *walletcommand.SetAdapterCommand
	Refresh          *walletcommand.RefreshCommand
	DisconnectSource *walletcommand.DisconnectSourceCommand
}

// Queries holds the read handlers. The journal queries are nil unless a
// journal reader was supplied or the service itself reads the journal.
type Queries struct {
	ActiveIdentity *walletquery.ActiveIdentityQuery
	Snapshot       *walletquery.SnapshotQuery
	RecentChanges  *walletquery.RecentChangesQuery
	SourceChanges  *walletquery.SourceChangesQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	journal walletquery.JournalReader
}

func WithJournalReader(reader walletquery.JournalReader) FacadeOption {
	return func(options *facadeOptions) {
		options.journal = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("wallets: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	journal := cfg.journal
	if journal == nil {
		if reader, ok := service.(walletquery.JournalReader); ok {
			journal = reader
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SetExternalKey:   walletcommand.NewSetExternalKeyCommand(service),
		SetAdapter:       walletcommand.NewSetAdapterCommand(service),
		Refresh:          walletcommand.NewRefreshCommand(service),
		DisconnectSource: walletcommand.NewDisconnectSourceCommand(service),
	}
	facade.queries = Queries{
		ActiveIdentity: walletquery.NewActiveIdentityQuery(service),
		Snapshot:       walletquery.NewSnapshotQuery(service),
	}
	if journal != nil {
		facade.queries.RecentChanges = walletquery.NewRecentChangesQuery(journal)
		facade.queries.SourceChanges = walletquery.NewSourceChangesQuery(journal)
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
