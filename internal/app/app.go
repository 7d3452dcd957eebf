package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"hist-go/internal/buffer"
	"hist-go/internal/config"
	"hist-go/internal/core"
	"hist-go/internal/database"
	"hist-go/internal/docupdater"
	"hist-go/internal/encryption"
	"hist-go/internal/fs"
	"hist-go/internal/hist"
	"hist-go/internal/model"
	"hist-go/internal/vault"
)

// DatabaseBackupName is the metadata key the database copy is uploaded to
// after every mutating command.
const DatabaseBackupName = "hist.db"

// Options describe the command a HistApp is created for.
type Options struct {
	// Operation names the CLI command, e.g. "ImportDirectory".
	Operation  string
	Parameters string
	ProjectID  string
	// Passphrase is called when the encryptor needs one to unlock.
	Passphrase PassphraseFunc
	// Console receives log records at ConsoleLevel and above. Defaults to
	// stderr.
	Console      io.Writer
	ConsoleLevel slog.Level
}

// HistApp is the application layer between the CLI and HistoryService.
// It constructs all dependencies from config, records mutating commands in
// the operation log and backs up the database on Close.
type HistApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	vault     hist.Vault
	buffer    *buffer.Buffer
	encryptor hist.Encryptor
	service   *hist.HistoryService
	logger    hist.Logger
	clock     hist.Clock
	op        *Operation
	logFile   *os.File
}

// NewHistApp creates a fully wired HistApp from cfg. The caller must call
// Close when done.
func NewHistApp(ctx context.Context, cfg *config.Config, opts Options) (a *HistApp, err error) {
	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i].Close()
			}
		}
	}()

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys are missing: run 'hist config keys init'")
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if c, ok := v.(io.Closer); ok {
		closers = append(closers, c)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	closers = append(closers, db)
	if err := db.CheckMigrations(); err != nil {
		return nil, fmt.Errorf("database schema out of date (run 'hist db migrate'): %w", err)
	}

	buf, err := buffer.NewChangeBufferFromConfig(ctx, cfg.Buffer)
	if err != nil {
		return nil, fmt.Errorf("creating change buffer: %w", err)
	}
	closers = append(closers, buf)

	clock := hist.RealClock{}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	opID := clock.Now().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, console, opts.ConsoleLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	closers = append(closers, logFile)
	log := &slogAdapter{l: logger}

	fsmgr := fs.NewOSFilesystemManager(cfg.Import.Ignore)
	svc := hist.NewHistoryService(db, buf, v, enc, fsmgr, log, clock, hist.UUIDGenerator{}, hist.Options{
		MaxChunkChanges: cfg.MaxChunkChanges(),
		Concurrency:     cfg.Concurrency(),
	})

	passphrase := ""
	if enc.NeedsPassphrase() {
		if opts.Passphrase == nil {
			return nil, fmt.Errorf("a passphrase is required to unlock the private key")
		}
		if passphrase, err = opts.Passphrase(); err != nil {
			return nil, err
		}
	}
	if err := svc.Unlock(passphrase); err != nil {
		return nil, err
	}

	return &HistApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		buffer:    buf,
		encryptor: enc,
		service:   svc,
		logger:    log,
		clock:     clock,
		op:        NewOperation(opts.Operation, opts.Parameters, opts.ProjectID),
		logFile:   logFile,
	}, nil
}

// Service exposes the underlying history service.
func (a *HistApp) Service() *hist.HistoryService { return a.service }

// Fail marks the running operation as failed and returns err.
func (a *HistApp) Fail(err error) error {
	if err != nil {
		a.op.Status = StatusError
	}
	return err
}

// persistOperation records the operation in the operation log. It is only
// called by commands that mutate the database.
func (a *HistApp) persistOperation(ctx context.Context) error {
	if a.op.Persisted() {
		return nil
	}
	row, err := a.db.CreateOperation(ctx, a.op.Name, a.op.Parameters, a.op.ProjectID, a.clock.Now())
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	a.op.ID = row.ID
	return nil
}

// InitProject creates a project with an empty history.
func (a *HistApp) InitProject(ctx context.Context) (string, error) {
	if err := a.persistOperation(ctx); err != nil {
		return "", err
	}
	id, err := a.service.InitializeProject(ctx)
	if err != nil {
		return "", a.Fail(err)
	}
	a.op.ProjectID = id
	return id, nil
}

// ImportDirectory adds the files below dir to the project.
func (a *HistApp) ImportDirectory(ctx context.Context, projectID, dir string) (int, error) {
	if err := a.persistOperation(ctx); err != nil {
		return 0, err
	}
	n, err := a.service.ImportDirectory(ctx, projectID, dir)
	return n, a.Fail(err)
}

// ApplyChanges reads a JSON array of changes from r and persists them
// against endVersion, or queues them when queue is set. It returns the new
// end (or head) version.
func (a *HistApp) ApplyChanges(ctx context.Context, projectID string, r io.Reader, endVersion int, queue bool) (int, error) {
	var changes []*core.Change
	if err := json.NewDecoder(r).Decode(&changes); err != nil {
		return 0, fmt.Errorf("decoding changes: %w", err)
	}
	if err := a.persistOperation(ctx); err != nil {
		return 0, err
	}
	if queue {
		head, err := a.service.QueueChanges(ctx, projectID, endVersion, changes)
		return head, a.Fail(err)
	}
	res, err := a.service.PersistChanges(ctx, projectID, endVersion, changes)
	if err != nil {
		return 0, a.Fail(err)
	}
	return res.EndVersion, nil
}

// Flush persists buffered changes of one project, or of every project
// when projectID is empty.
func (a *HistApp) Flush(ctx context.Context, projectID string) (int, error) {
	if err := a.persistOperation(ctx); err != nil {
		return 0, err
	}
	if projectID == "" {
		n, err := a.service.FlushAll(ctx)
		return n, a.Fail(err)
	}
	n, err := a.service.FlushChanges(ctx, projectID)
	return n, a.Fail(err)
}

// Snapshot returns the project at version; a negative version means the
// latest.
func (a *HistApp) Snapshot(ctx context.Context, projectID string, version int) (*core.Snapshot, error) {
	return a.service.GetSnapshot(ctx, projectID, version, core.LoadHollow)
}

// FileContent returns one file at version; a negative version means the
// latest.
func (a *HistApp) FileContent(ctx context.Context, projectID string, version int, pathname string) (string, error) {
	version, err := a.resolveVersion(ctx, projectID, version)
	if err != nil {
		return "", err
	}
	return a.service.GetFileContent(ctx, projectID, version, pathname)
}

func (a *HistApp) Ranges(ctx context.Context, projectID string, version int, pathname string) (*docupdater.Ranges, error) {
	version, err := a.resolveVersion(ctx, projectID, version)
	if err != nil {
		return nil, err
	}
	return a.service.GetRangesSnapshot(ctx, projectID, version, pathname)
}

func (a *HistApp) resolveVersion(ctx context.Context, projectID string, version int) (int, error) {
	if version >= 0 {
		return version, nil
	}
	status, err := a.service.GetStatus(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return status.PersistedVersion, nil
}

func (a *HistApp) Changes(ctx context.Context, projectID string, since int) ([]*core.Change, error) {
	return a.service.GetChanges(ctx, projectID, since)
}

func (a *HistApp) Chunks(ctx context.Context, projectID string) ([]*model.Chunk, error) {
	return a.service.ListChunks(ctx, projectID)
}

func (a *HistApp) Status(ctx context.Context, projectID string) (*hist.ProjectStatus, error) {
	return a.service.GetStatus(ctx, projectID)
}

func (a *HistApp) Projects(ctx context.Context) ([]*model.Project, error) {
	return a.service.ListProjects(ctx)
}

// Operations returns the most recent entries of the operation log.
func (a *HistApp) Operations(ctx context.Context, limit int) ([]*model.Operation, error) {
	return a.service.GetOperations(ctx, limit)
}

// Close finalizes the operation and closes all resources. For persisted
// operations it also finishes the operation record and uploads an
// encrypted copy of the database to the vault.
func (a *HistApp) Close(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	var backup string
	if a.op.Persisted() {
		if err := a.db.FinishOperation(ctx, a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			keep(fmt.Errorf("finishing operation: %w", err))
		}
		path, err := a.snapshotDatabase()
		keep(err)
		backup = path
	}

	if err := a.db.Close(); err != nil {
		keep(fmt.Errorf("closing database: %w", err))
	}
	if backup != "" {
		keep(a.uploadDatabase(ctx, backup))
		os.RemoveAll(filepath.Dir(backup))
	}
	if err := a.buffer.Close(); err != nil {
		keep(fmt.Errorf("closing change buffer: %w", err))
	}
	if c, ok := a.vault.(io.Closer); ok {
		keep(c.Close())
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// snapshotDatabase writes a consistent copy of the database to a temp file.
func (a *HistApp) snapshotDatabase() (string, error) {
	dir, err := os.MkdirTemp("", "hist-db-backup-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for db backup: %w", err)
	}
	// VACUUM INTO refuses to overwrite, so the target must not exist yet.
	path := filepath.Join(dir, DatabaseBackupName)
	if err := a.db.BackupTo(path); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("backing up database: %w", err)
	}
	return path, nil
}

func (a *HistApp) uploadDatabase(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()

	var sealed bytes.Buffer
	if err := a.encryptor.Encrypt(f, &sealed); err != nil {
		return fmt.Errorf("encrypting db backup: %w", err)
	}
	if err := a.vault.PutObject(ctx, hist.MetadataKey(DatabaseBackupName), &sealed, int64(sealed.Len())); err != nil {
		return fmt.Errorf("uploading db backup: %w", err)
	}
	a.logger.Info("database backed up", "key", hist.MetadataKey(DatabaseBackupName), "operation", a.op.ID)
	return nil
}

// SetupKeys generates the key pair of the configured encryptor.
func SetupKeys(cfg *config.Config, passphrase PassphraseFunc) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.NeedsPassphrase() && enc.IsConfigured() {
		return nil
	}
	p, err := passphrase()
	if err != nil {
		return err
	}
	return enc.Setup(p)
}

// Migrate brings the configured database to the latest schema version.
func Migrate(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}
