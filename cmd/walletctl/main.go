package main

import (
	"os"

	"github.com/goliatone/go-wallets/cmd/walletctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
