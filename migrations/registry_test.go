package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	wallets "github.com/goliatone/go-wallets"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}
	found := map[string]bool{}
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		found[entry.Dialect] = true
	}
	if !found[DialectPostgres] || !found[DialectSQLite] {
		t.Fatalf("expected postgres and sqlite filesystems, got %v", found)
	}
}

func TestFilesystems_AcceptsFlatTree(t *testing.T) {
	flat := fstest.MapFS{
		"00001_x.up.sql":        {Data: []byte("SELECT 1;")},
		"sqlite/00001_x.up.sql": {Data: []byte("SELECT 1;")},
	}
	filesystems, err := Filesystems(flat)
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if filesystems[0].Path != "." || filesystems[1].Path != "sqlite" {
		t.Fatalf("unexpected paths %q %q", filesystems[0].Path, filesystems[1].Path)
	}
}

func TestRegister_UsesValidationTargetsAndLabel(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		calls = append(calls, dialect+"@"+label)
		return nil
	}, WithValidationTargets(" SQLite "), WithSourceLabel("wallets-app"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != "sqlite@wallets-app" {
		t.Fatalf("unexpected registration calls %v", calls)
	}
	if reg.SourceLabel != "wallets-app" {
		t.Fatalf("expected custom label, got %q", reg.SourceLabel)
	}
}

func TestRegister_RequiresFunction(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for missing register function")
	}
}

func TestCoreSchemaMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := wallets.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_wallets_core_schema.up.sql",
		"data/sql/migrations/00001_wallets_core_schema.down.sql",
		"data/sql/migrations/sqlite/00001_wallets_core_schema.up.sql",
		"data/sql/migrations/sqlite/00001_wallets_core_schema.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCoreSchema_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-core-schema?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(wallets.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_wallets_core_schema.up.sql"); err != nil {
		t.Fatalf("apply core schema: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO wallet_kv (storage_key, value) VALUES (?, ?)`, "activePubKey", "11111111111111111111111111111111",
	); err != nil {
		t.Fatalf("insert kv row: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO wallet_kv (storage_key, value) VALUES (?, ?)`, "activePubKey", "other",
	); err == nil {
		t.Fatalf("expected primary key violation for duplicate storage key")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_wallets_core_schema.down.sql"); err != nil {
		t.Fatalf("rollback core schema: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'wallet_%'`,
	).Scan(&count); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected wallet tables dropped, got %d", count)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
