package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	home      string
	storeKind string
	dsn       string
	logLevel  string
	useCache  bool
	appCtx    *App
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "walletctl",
		Short:        "Inspect and exercise the wallet identity reconciler",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".walletctl")
			}
			app, err := OpenApp(cmd.Context(), AppOptions{
				Home:     home,
				Store:    storeKind,
				DSN:      dsn,
				LogLevel: logLevel,
				Cache:    useCache,
				LogOut:   cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			appCtx = app
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			err := appCtx.Close()
			appCtx = nil
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.walletctl)")
	root.PersistentFlags().StringVar(&storeKind, "store", StoreFile, "identity store: memory|file|sqlite|postgres")
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "database DSN for sqlite/postgres (sqlite defaults to <home>/wallets.db)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: trace|debug|info|warn|error")
	root.PersistentFlags().BoolVar(&useCache, "cache", false, "read the sql store through a repository cache")

	root.AddCommand(replayCmd(), showCmd(), clearCmd(), historyCmd())
	return root
}
