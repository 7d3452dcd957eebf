package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hist-go/internal/config"
	"hist-go/internal/core"
	"hist-go/internal/hist"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig(dir)
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Buffer = config.BufferConfig{Type: "memory"}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *HistApp {
	t.Helper()
	a, err := NewHistApp(context.Background(), cfg, Options{Operation: operation, Console: io.Discard})
	if err != nil {
		t.Fatalf("NewHistApp() error = %v", err)
	}
	return a
}

const changesJSON = `[
	{"operations": [{"pathname": "main.tex", "file": {"content": "hello"}}], "timestamp": "2024-01-15T10:31:00.000Z", "authors": []},
	{"operations": [{"pathname": "main.tex", "textOperation": [5, " world"]}], "timestamp": "2024-01-15T10:32:00.000Z", "authors": []}
]`

func TestHistApp_Workflow(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg, "ApplyChanges")

	projectID, err := a.InitProject(ctx)
	if err != nil {
		t.Fatalf("InitProject() error = %v", err)
	}

	end, err := a.ApplyChanges(ctx, projectID, strings.NewReader(changesJSON), 0, false)
	if err != nil {
		t.Fatalf("ApplyChanges() error = %v", err)
	}
	if end != 2 {
		t.Errorf("ApplyChanges() = %d, want 2", end)
	}

	content, err := a.FileContent(ctx, projectID, -1, "main.tex")
	if err != nil {
		t.Fatalf("FileContent() error = %v", err)
	}
	if content != "hello world" {
		t.Errorf("FileContent() = %q, want %q", content, "hello world")
	}

	snap, err := a.Snapshot(ctx, projectID, 1)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if n, ok := snap.GetFile("main.tex").StringLength(); !ok || n != 5 {
		t.Errorf("StringLength() at version 1 = %d, %v, want 5, true", n, ok)
	}

	changes, err := a.Changes(ctx, projectID, 0)
	if err != nil {
		t.Fatalf("Changes() error = %v", err)
	}
	if len(changes) != 2 {
		t.Errorf("len(Changes()) = %d, want 2", len(changes))
	}

	ops, err := a.Operations(ctx, 10)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != "ApplyChanges" || ops[0].Status != "running" {
		t.Errorf("Operations() = %+v, want one running ApplyChanges", ops)
	}

	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	backup := filepath.Join(cfg.Vault.FSVaultRoot, filepath.FromSlash(hist.MetadataKey(DatabaseBackupName)))
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("database backup not uploaded: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("HISTENC\x00")) {
		t.Error("database backup is not sealed by the encryptor")
	}

	logData, err := os.ReadFile(filepath.Join(cfg.LogDir, LogFileName))
	if err != nil {
		t.Fatalf("ReadFile(log) error = %v", err)
	}
	for _, want := range []string{"project initialized", "changes persisted", "database backed up"} {
		if !strings.Contains(string(logData), want) {
			t.Errorf("log missing %q", want)
		}
	}
}

func TestHistApp_QueueAndFlush(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "Flush")
	defer a.Close(ctx)

	projectID, err := a.InitProject(ctx)
	if err != nil {
		t.Fatalf("InitProject() error = %v", err)
	}
	head, err := a.ApplyChanges(ctx, projectID, strings.NewReader(changesJSON), 0, true)
	if err != nil {
		t.Fatalf("ApplyChanges(queue) error = %v", err)
	}
	if head != 2 {
		t.Errorf("ApplyChanges(queue) = %d, want 2", head)
	}

	status, err := a.Status(ctx, projectID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.PersistedVersion != 0 || status.QueuedChanges != 2 {
		t.Errorf("Status() = %+v, want persisted 0 queued 2", status)
	}

	n, err := a.Flush(ctx, "")
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Flush() = %d, want 2", n)
	}
	chunks, err := a.Chunks(ctx, projectID)
	if err != nil {
		t.Fatalf("Chunks() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].EndVersion != 2 {
		t.Errorf("Chunks() = %+v, want one chunk ending at 2", chunks)
	}
}

func TestHistApp_FailedOperationIsRecorded(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}
	if err := Migrate(cfg); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	a := newTestApp(t, cfg, "ApplyChanges")
	projectID, err := a.InitProject(ctx)
	if err != nil {
		t.Fatalf("InitProject() error = %v", err)
	}
	_, err = a.ApplyChanges(ctx, projectID, strings.NewReader(changesJSON), 7, false)
	if !errors.Is(err, hist.ErrConflict) {
		t.Fatalf("ApplyChanges(end=7) error = %v, want conflict", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b := newTestApp(t, cfg, "ListOperations")
	defer b.Close(ctx)
	ops, err := b.Operations(ctx, 10)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Status != StatusError || ops[0].FinishedAt == nil {
		t.Errorf("Operations() = %+v, want one finished failed operation", ops)
	}
	projects, err := b.Projects(ctx)
	if err != nil {
		t.Fatalf("Projects() error = %v", err)
	}
	if len(projects) != 1 || projects[0].ID != projectID {
		t.Errorf("Projects() = %+v, want [%s]", projects, projectID)
	}
}

func TestHistApp_Ranges(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "ApplyChanges")
	defer a.Close(ctx)

	projectID, err := a.InitProject(ctx)
	if err != nil {
		t.Fatalf("InitProject() error = %v", err)
	}
	input := `[{"operations": [{"pathname": "a.tex", "file": {"content": "abc", "comments": [{"id": "c1", "ranges": [{"pos": 0, "length": 2}]}]}}], "timestamp": "2024-01-15T10:31:00.000Z", "authors": []}]`
	if _, err := a.ApplyChanges(ctx, projectID, strings.NewReader(input), 0, false); err != nil {
		t.Fatalf("ApplyChanges() error = %v", err)
	}
	ranges, err := a.Ranges(ctx, projectID, -1, "a.tex")
	if err != nil {
		t.Fatalf("Ranges() error = %v", err)
	}
	if len(ranges.Comments) != 1 || ranges.Comments[0].Op.C != "ab" {
		t.Errorf("Ranges().Comments = %+v, want one comment over %q", ranges.Comments, "ab")
	}
}

func TestHistApp_ApplyRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "ApplyChanges")
	defer a.Close(ctx)

	projectID, err := a.InitProject(ctx)
	if err != nil {
		t.Fatalf("InitProject() error = %v", err)
	}
	if _, err := a.ApplyChanges(ctx, projectID, strings.NewReader(`{"not": "a list"}`), 0, false); err == nil {
		t.Error("ApplyChanges(object) error = nil, want error")
	}
	_, err = a.ApplyChanges(ctx, projectID, strings.NewReader(
		`[{"operations": [{"pathname": "gone.tex", "textOperation": ["x"]}], "timestamp": "2024-01-15T10:31:00.000Z", "authors": []}]`), 0, false)
	if err == nil {
		t.Error("ApplyChanges(edit of missing file) error = nil, want error")
	}
	if _, err := a.FileContent(ctx, projectID, -1, "gone.tex"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FileContent() error = %v, want not found", err)
	}
}

func TestNewHistApp_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unmigrated sqlite database", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}
		if _, err := NewHistApp(ctx, cfg, Options{Console: io.Discard}); err == nil {
			t.Fatal("NewHistApp() error = nil, want migration error")
		}
	})

	t.Run("age keys missing", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Encryption = config.NewConfig(cfg.BaseDir).Encryption
		cfg.Encryption.Type = "age"
		if _, err := NewHistApp(ctx, cfg, Options{Console: io.Discard}); err == nil {
			t.Fatal("NewHistApp() error = nil, want missing keys error")
		}
	})

	t.Run("age without passphrase source", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Encryption = config.NewConfig(cfg.BaseDir).Encryption
		cfg.Encryption.Type = "age"
		if err := SetupKeys(cfg, func() (string, error) { return "secret", nil }); err != nil {
			t.Fatalf("SetupKeys() error = %v", err)
		}
		if _, err := NewHistApp(ctx, cfg, Options{Console: io.Discard}); err == nil {
			t.Fatal("NewHistApp() error = nil, want passphrase error")
		}
		a, err := NewHistApp(ctx, cfg, Options{
			Console:    io.Discard,
			Passphrase: func() (string, error) { return "secret", nil },
		})
		if err != nil {
			t.Fatalf("NewHistApp() with passphrase error = %v", err)
		}
		a.Close(ctx)
	})
}

func TestReadPassphrase_FromEnv(t *testing.T) {
	t.Setenv(PassphraseEnv, "from-env")
	got, err := ReadPassphrase("Passphrase: ")
	if err != nil {
		t.Fatalf("ReadPassphrase() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("ReadPassphrase() = %q, want %q", got, "from-env")
	}
	if got, err := ReadNewPassphrase(); err != nil || got != "from-env" {
		t.Errorf("ReadNewPassphrase() = %q, %v, want %q, nil", got, err, "from-env")
	}
}
