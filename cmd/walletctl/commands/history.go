package commands

import (
	"errors"
	"time"

	"github.com/goliatone/go-wallets/core"
	sqlstore "github.com/goliatone/go-wallets/store/sql"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historySource string
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List committed identity changes from the sql journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Journal == nil {
				return errors.New("history needs --store sqlite or --store postgres")
			}
			var (
				entries []sqlstore.JournalEntry
				err     error
			)
			if historySource != "" {
				entries, err = appCtx.Journal.BySource(cmd.Context(), core.NormalizeSourceID(historySource))
			} else {
				entries, err = appCtx.Journal.Recent(cmd.Context(), historyLimit)
			}
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"At", "Source", "Reason", "Previous", "Current"})
			for _, entry := range entries {
				t.AppendRow(table.Row{
					entry.OccurredAt.UTC().Format(time.RFC3339),
					entry.Source, entry.Reason,
					displayKey(entry.Previous), displayKey(entry.Current),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries")
	cmd.Flags().StringVar(&historySource, "source", "", "only list changes committed by this source")
	return cmd
}
