package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-wallets/core"
)

// MutatingService is the write side of core.IdentityService.
type MutatingService interface {
	SetExternalKey(ctx context.Context, key *core.PublicKey) error
	SetAdapter(ctx context.Context, descriptor *core.AdapterDescriptor) error
	Refresh(ctx context.Context) error
	Disconnect(ctx context.Context, source core.SourceID) error
	Snapshot() core.Snapshot
}

type SetExternalKeyCommand struct {
	service MutatingService
}

func NewSetExternalKeyCommand(service MutatingService) *SetExternalKeyCommand {
	return &SetExternalKeyCommand{service: service}
}

func (c *SetExternalKeyCommand) Execute(ctx context.Context, msg SetExternalKeyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: identity service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	key, err := msg.resolve()
	if err != nil {
		return err
	}
	if err := c.service.SetExternalKey(ctx, key); err != nil {
		return err
	}
	storeResult(ctx, c.service.Snapshot())
	return nil
}

type SetAdapterCommand struct {
	service MutatingService
}

func NewSetAdapterCommand(service MutatingService) *SetAdapterCommand {
	return &SetAdapterCommand{service: service}
}

func (c *SetAdapterCommand) Execute(ctx context.Context, msg SetAdapterMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: identity service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := c.service.SetAdapter(ctx, msg.Adapter); err != nil {
		return err
	}
	storeResult(ctx, c.service.Snapshot())
	return nil
}

// RefreshCommand re-runs detection. Hosts dispatch it when provider objects
// may have appeared or been replaced.
type RefreshCommand struct {
	service MutatingService
}

func NewRefreshCommand(service MutatingService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, _ RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: identity service is required")
	}
	if err := c.service.Refresh(ctx); err != nil {
		return err
	}
	storeResult(ctx, c.service.Snapshot())
	return nil
}

type DisconnectSourceCommand struct {
	service MutatingService
}

func NewDisconnectSourceCommand(service MutatingService) *DisconnectSourceCommand {
	return &DisconnectSourceCommand{service: service}
}

func (c *DisconnectSourceCommand) Execute(ctx context.Context, msg DisconnectSourceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: identity service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Disconnect(ctx, msg.Source)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
