package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-wallets/core"
	"github.com/goliatone/go-wallets/providers/devkit"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func writeScript(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "script.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCLI_FileStoreReplayShowClear(t *testing.T) {
	home := t.TempDir()
	script := writeScript(t, t.TempDir(),
		fmt.Sprintf(`{"source":"backpack","event":"connect","key":%q}`, devkit.FixtureKeyAlice),
	)

	out, err := runCLI(t, "--home", home, "--store", "file", "replay", script)
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	if !strings.Contains(out, "active: "+devkit.FixtureKeyAlice) {
		t.Fatalf("expected final identity in output:\n%s", out)
	}

	out, err = runCLI(t, "--home", home, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if strings.TrimSpace(out) != core.DefaultStorageKey+": "+devkit.FixtureKeyAlice {
		t.Fatalf("unexpected show output %q", out)
	}

	if _, err := runCLI(t, "--home", home, "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err = runCLI(t, "--home", home, "show")
	if err != nil {
		t.Fatalf("show after clear: %v", err)
	}
	if !strings.Contains(out, ": none") {
		t.Fatalf("expected empty identity after clear, got %q", out)
	}
}

func TestCLI_SQLiteHistory(t *testing.T) {
	home := t.TempDir()
	script := writeScript(t, t.TempDir(),
		fmt.Sprintf(`{"source":"phantom","event":"accountChanged","key":%q}`, devkit.FixtureKeyAlice),
		fmt.Sprintf(`{"source":"trust","event":"accountChanged","key":%q}`, devkit.FixtureKeyBob),
	)

	if out, err := runCLI(t, "--home", home, "--store", "sqlite", "--cache", "replay", script); err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}

	out, err := runCLI(t, "--home", home, "--store", "sqlite", "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if rows := historyRows(out); rows != 2 {
		t.Fatalf("expected two entries, got %d:\n%s", rows, out)
	}
	if !strings.Contains(out, "SOURCE") {
		t.Fatalf("expected table header:\n%s", out)
	}
	if !strings.Contains(out, devkit.FixtureKeyBob) || !strings.Contains(out, "account_changed") {
		t.Fatalf("expected journaled changes:\n%s", out)
	}

	out, err = runCLI(t, "--home", home, "--store", "sqlite", "history", "--source", "trust")
	if err != nil {
		t.Fatalf("history by source: %v", err)
	}
	if rows := historyRows(out); rows != 1 {
		t.Fatalf("expected one trust entry, got %d:\n%s", rows, out)
	}
}

func TestCLI_HistoryRequiresSQLStore(t *testing.T) {
	_, err := runCLI(t, "--home", t.TempDir(), "--store", "memory", "history")
	if err == nil || !strings.Contains(err.Error(), "history needs") {
		t.Fatalf("expected sql store error, got %v", err)
	}
}

func TestOpenApp_RejectsBadOptions(t *testing.T) {
	cases := map[string]AppOptions{
		"unknown store":     {Store: "redis"},
		"postgres dsn":      {Store: StorePostgres},
		"file needs home":   {Store: StoreFile},
		"sqlite needs home": {Store: StoreSQLite},
		"bad log level":     {Store: StoreMemory, LogLevel: "loud"},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			opts.LogOut = &bytes.Buffer{}
			if _, err := OpenApp(context.Background(), opts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestOpenApp_StorageKeyFromEnvironment(t *testing.T) {
	app, err := OpenApp(context.Background(), AppOptions{
		Store:   StoreMemory,
		LogOut:  &bytes.Buffer{},
		Environ: map[string]string{"WALLETS_STORAGE_KEY": "walletctl-key"},
	})
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	defer app.Close()
	if app.Config.StorageKey != "walletctl-key" {
		t.Fatalf("expected storage key from env, got %q", app.Config.StorageKey)
	}
	if app.Persistence().Key() != "walletctl-key" {
		t.Fatalf("expected persistence bound to env key")
	}
}

// historyRows counts rendered table rows, skipping borders and the header.
func historyRows(out string) int {
	rows := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") || strings.Contains(line, "SOURCE") {
			continue
		}
		rows++
	}
	return rows
}
