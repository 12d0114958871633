package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the persisted active identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := appCtx.Persistence().Load(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", appCtx.Config.StorageKey, displayKey(key))
			return nil
		},
	}
}
