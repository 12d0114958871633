package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the persisted active identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Persistence().Save(cmd.Context(), nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", appCtx.Config.StorageKey)
			return nil
		},
	}
}
