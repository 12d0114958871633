package query

import (
	"strings"

	"github.com/goliatone/go-wallets/core"
)

const (
	TypeActiveIdentity = "wallets.query.active_identity"
	TypeSnapshot       = "wallets.query.snapshot"
	TypeRecentChanges  = "wallets.query.changes.recent"
	TypeSourceChanges  = "wallets.query.changes.by_source"
)

type ActiveIdentityMessage struct{}

func (ActiveIdentityMessage) Type() string { return TypeActiveIdentity }

func (ActiveIdentityMessage) Validate() error { return nil }

type SnapshotMessage struct{}

func (SnapshotMessage) Type() string { return TypeSnapshot }

func (SnapshotMessage) Validate() error { return nil }

type RecentChangesMessage struct {
	Limit int
}

func (RecentChangesMessage) Type() string { return TypeRecentChanges }

func (m RecentChangesMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must not be negative")
	}
	return nil
}

type SourceChangesMessage struct {
	Source core.SourceID
}

func (SourceChangesMessage) Type() string { return TypeSourceChanges }

func (m SourceChangesMessage) Validate() error {
	if strings.TrimSpace(m.Source.String()) == "" {
		return queryValidationError("source", "source is required")
	}
	return nil
}
