package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-wallets/adapters/gologger"
	"github.com/goliatone/go-wallets/core"
	walletmigrations "github.com/goliatone/go-wallets/migrations"
	filestore "github.com/goliatone/go-wallets/store/file"
	sqlstore "github.com/goliatone/go-wallets/store/sql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type AppOptions struct {
	Home     string
	Store    string
	DSN      string
	LogLevel string
	Cache    bool
	LogOut   io.Writer
	// Environ replaces the process environment for WALLETS_* config.
	Environ map[string]string
}

// App is the dependency graph shared by subcommands.
type App struct {
	Config  core.Config
	Store   core.KeyValueStore
	Journal *sqlstore.JournalStore
	Loggers core.LoggerProvider
	Logger  core.Logger

	closers []func() error
}

func OpenApp(ctx context.Context, opts AppOptions) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	level, err := gologger.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	out := opts.LogOut
	if out == nil {
		out = os.Stderr
	}
	loggers := gologger.NewConsoleLogger(out, "", level)

	loader := core.NewEnvConfigLoader()
	loader.Environ = opts.Environ
	cfg, err := core.NewCfgxConfigProvider(loader).Load(ctx, core.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("walletctl: load config: %w", err)
	}

	app := &App{
		Config:  cfg,
		Loggers: loggers,
		Logger:  loggers.GetLogger("walletctl"),
	}

	switch strings.ToLower(strings.TrimSpace(opts.Store)) {
	case StoreMemory:
		app.Store = core.NewMemoryKeyValueStore()
	case StoreFile, "":
		if strings.TrimSpace(opts.Home) == "" {
			return nil, errors.New("walletctl: --home is required for the file store")
		}
		store, err := filestore.InDir(opts.Home)
		if err != nil {
			return nil, err
		}
		app.Store = store
	case StoreSQLite:
		target := strings.TrimSpace(opts.DSN)
		if target == "" {
			if strings.TrimSpace(opts.Home) == "" {
				return nil, errors.New("walletctl: --home or --dsn is required for the sqlite store")
			}
			if err := os.MkdirAll(opts.Home, 0o700); err != nil {
				return nil, err
			}
			target = "file:" + filepath.Join(opts.Home, "wallets.db") + "?_foreign_keys=on"
		}
		dbCfg := dbConfig{driver: "sqlite3", server: target}
		open := func(sqlDB *sql.DB) (*persistence.Client, error) {
			sqlDB.SetMaxOpenConns(1)
			return persistence.New(dbCfg, sqlDB, sqlitedialect.New())
		}
		if err := app.openSQL(ctx, dbCfg, open, walletmigrations.DialectSQLite, opts.Cache); err != nil {
			return nil, err
		}
	case StorePostgres:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, errors.New("walletctl: --dsn is required for the postgres store")
		}
		dbCfg := dbConfig{driver: "postgres", server: opts.DSN}
		open := func(sqlDB *sql.DB) (*persistence.Client, error) {
			return persistence.New(dbCfg, sqlDB, pgdialect.New())
		}
		if err := app.openSQL(ctx, dbCfg, open, walletmigrations.DialectPostgres, opts.Cache); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("walletctl: unknown store %q", opts.Store)
	}
	return app, nil
}

func (a *App) openSQL(
	ctx context.Context,
	cfg dbConfig,
	open func(*sql.DB) (*persistence.Client, error),
	migrationDialect string,
	cached bool,
) error {
	sqlDB, err := sql.Open(cfg.driver, cfg.server)
	if err != nil {
		return fmt.Errorf("walletctl: open %s: %w", cfg.driver, err)
	}
	client, err := open(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("walletctl: persistence client: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	if err := walletmigrations.Apply(ctx, client, migrationDialect); err != nil {
		_ = a.Close()
		return err
	}

	var factoryOpts []sqlstore.FactoryOption
	if cached {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = time.Minute
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			_ = a.Close()
			return fmt.Errorf("walletctl: cache service: %w", err)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithCacheService(cacheService))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		_ = a.Close()
		return err
	}
	a.Store = factory.KeyValueStore()
	a.Journal = factory.JournalStore()
	a.Logger.Debug("sql store ready", "driver", cfg.driver, "cached", cached)
	return nil
}

// Persistence returns the identity persistence bound to the configured
// storage key.
func (a *App) Persistence() *core.KeyValuePersistence {
	return core.NewKeyValuePersistence(a.Store, a.Config.StorageKey, a.Logger)
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for index := len(a.closers) - 1; index >= 0; index-- {
		if err := a.closers[index](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type dbConfig struct {
	driver string
	server string
}

func (c dbConfig) GetDebug() bool                { return false }
func (c dbConfig) GetDriver() string             { return c.driver }
func (c dbConfig) GetServer() string             { return c.server }
func (c dbConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c dbConfig) GetOtelIdentifier() string     { return "walletctl" }
