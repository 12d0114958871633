package sqlstore

import "github.com/goliatone/go-wallets/core"

var (
	_ core.KeyValueStore = (*KeyValueStore)(nil)
	_ core.KeyValueStore = (*CachedKeyValueStore)(nil)
	_ core.ChangeHook    = (*JournalStore)(nil)
)
