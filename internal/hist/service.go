package hist

import (
	"context"
	"fmt"
	"time"

	"hist-go/internal/core"
	"hist-go/internal/model"
)

// DefaultMaxChunkChanges is used when Options leaves MaxChunkChanges unset.
const DefaultMaxChunkChanges = 1000

// Options tunes the history service.
type Options struct {
	// MaxChunkChanges is the most changes a chunk holds before a new one
	// is started.
	MaxChunkChanges int
	// Concurrency bounds parallel blob uploads and loads.
	Concurrency int
}

// HistoryService is the orchestration layer the CLI talks to. It validates
// changes against the head of a project's history, stores them in chunks
// and answers version and timestamp queries.
type HistoryService struct {
	database Database
	buffer   ChangeBuffer
	objects  *objectStore
	chunks   *ChunkStore
	fsmgr    FilesystemManager
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	opts     Options
}

// NewHistoryService creates a HistoryService with the provided dependencies.
// Sealed content cannot be read until Unlock is called.
func NewHistoryService(database Database, buffer ChangeBuffer, vault Vault, encryptor Encryptor, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator, opts Options) *HistoryService {
	if opts.MaxChunkChanges <= 0 {
		opts.MaxChunkChanges = DefaultMaxChunkChanges
	}
	opts.Concurrency = max(opts.Concurrency, 1)

	s := &HistoryService{
		database: database,
		buffer:   buffer,
		objects:  &objectStore{vault: vault, enc: encryptor},
		fsmgr:    fsmgr,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		opts:     opts,
	}
	s.chunks = &ChunkStore{
		objects:     s.objects,
		database:    database,
		clock:       clock,
		idgen:       idgen,
		logger:      logger,
		concurrency: opts.Concurrency,
		blobStore:   s.BlobStore,
	}
	return s
}

// Unlock recovers the private key so sealed objects can be read.
func (s *HistoryService) Unlock(passphrase string) error {
	dec, err := s.objects.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking encryption key: %w", err)
	}
	s.objects.dec = dec
	return nil
}

// BlobStore returns the blob store of a project.
func (s *HistoryService) BlobStore(projectID string) *ProjectBlobStore {
	return &ProjectBlobStore{
		projectID: projectID,
		objects:   s.objects,
		database:  s.database,
		clock:     s.clock,
		logger:    s.logger,
	}
}

// Chunks exposes the chunk store.
func (s *HistoryService) Chunks() *ChunkStore { return s.chunks }

// InitializeProject creates a project with an empty history and returns its
// id.
func (s *HistoryService) InitializeProject(ctx context.Context) (string, error) {
	projectID := s.idgen.New()
	if err := s.chunks.InitializeProject(ctx, projectID); err != nil {
		return "", fmt.Errorf("initializing project: %w", err)
	}
	s.logger.Info("project initialized", "project", projectID)
	return projectID, nil
}

// ListProjects returns every project, oldest first.
func (s *HistoryService) ListProjects(ctx context.Context) ([]*model.Project, error) {
	projects, err := s.database.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

func (s *HistoryService) ensureProject(ctx context.Context, projectID string) error {
	p, err := s.database.FindProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("finding project: %w", err)
	}
	if p == nil {
		return &ProjectNotFoundError{ProjectID: projectID}
	}
	return nil
}

func (s *HistoryService) GetLatestChunk(ctx context.Context, projectID string) (*core.Chunk, error) {
	return s.chunks.LoadLatest(ctx, projectID)
}

func (s *HistoryService) GetChunkAtVersion(ctx context.Context, projectID string, version int) (*core.Chunk, error) {
	return s.chunks.LoadAtVersion(ctx, projectID, version)
}

func (s *HistoryService) GetChunkAtTimestamp(ctx context.Context, projectID string, ts time.Time) (*core.Chunk, error) {
	return s.chunks.LoadAtTimestamp(ctx, projectID, ts)
}

func (s *HistoryService) GetChunkBeforeTimestamp(ctx context.Context, projectID string, ts time.Time) (*core.Chunk, error) {
	return s.chunks.LoadBeforeTimestamp(ctx, projectID, ts)
}

func (s *HistoryService) ListChunks(ctx context.Context, projectID string) ([]*model.Chunk, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.chunks.ListChunks(ctx, projectID)
}

// GetOperations returns the most recent recorded operations, newest first.
func (s *HistoryService) GetOperations(ctx context.Context, limit int) ([]*model.Operation, error) {
	ops, err := s.database.ListOperations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
