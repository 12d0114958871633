package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-wallets/core"
)

var (
	_ gocmd.Commander[SetExternalKeyMessage]   = (*SetExternalKeyCommand)(nil)
	_ gocmd.Commander[SetAdapterMessage]       = (*SetAdapterCommand)(nil)
	_ gocmd.Commander[RefreshMessage]          = (*RefreshCommand)(nil)
	_ gocmd.Commander[DisconnectSourceMessage] = (*DisconnectSourceCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
