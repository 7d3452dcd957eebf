package testutil

import (
	"context"
	"testing"

	"hist-go/internal/hist"
)

// Env bundles a HistoryService with the fakes behind it so tests can
// inspect and steer them.
type Env struct {
	Service  *hist.HistoryService
	Database hist.Database
	Vault    hist.Vault
	Buffer   hist.ChangeBuffer
	FS       *MockFilesystemManager
	Clock    *StubClock
	IDs      *StubIDGenerator
}

// EnvOption customizes NewEnv.
type EnvOption func(*envConfig)

type envConfig struct {
	vault hist.Vault
	opts  hist.Options
}

// WithVault replaces the in-memory vault.
func WithVault(v hist.Vault) EnvOption {
	return func(c *envConfig) { c.vault = v }
}

// WithMaxChunkChanges sets the chunk size limit.
func WithMaxChunkChanges(n int) EnvOption {
	return func(c *envConfig) { c.opts.MaxChunkChanges = n }
}

// NewEnv builds a HistoryService over an in-memory database, vault and
// buffer, using the test encryptor.
func NewEnv(t *testing.T, options ...EnvOption) *Env {
	t.Helper()
	cfg := envConfig{vault: NewTestVault(), opts: hist.Options{Concurrency: 2}}
	for _, o := range options {
		o(&cfg)
	}

	env := &Env{
		Database: NewTestDatabase(t),
		Vault:    cfg.vault,
		Buffer:   NewTestBuffer(),
		FS:       NewMockFilesystemManager(),
		Clock:    FixedClock(),
		IDs:      NewStubIDGenerator(),
	}
	env.Service = hist.NewHistoryService(env.Database, env.Buffer, env.Vault, NewTestEncryptor(),
		env.FS, hist.NewNopLogger(), env.Clock, env.IDs, cfg.opts)
	if err := env.Service.Unlock(""); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	return env
}

// InitProject creates a project and returns its id.
func (e *Env) InitProject(t *testing.T) string {
	t.Helper()
	id, err := e.Service.InitializeProject(context.Background())
	if err != nil {
		t.Fatalf("InitializeProject() error = %v", err)
	}
	return id
}
