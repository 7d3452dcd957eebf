package hist

import (
	"context"
	"time"

	"hist-go/internal/model"
)

// Database stores project, blob and chunk metadata and the operation log.
// Lookups return nil and no error when the row does not exist.
type Database interface {
	// Project operations

	CreateProject(ctx context.Context, id string, createdAt time.Time) (*model.Project, error)
	FindProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)

	// Blob operations

	// InsertBlob records uploaded content. Recording the same hash twice
	// is a no-op.
	InsertBlob(ctx context.Context, blob *model.Blob) error
	FindBlob(ctx context.Context, projectID, hash string) (*model.Blob, error)
	// FindBlobs returns the rows of the known hashes in no particular order.
	FindBlobs(ctx context.Context, projectID string, hashes []string) ([]*model.Blob, error)

	// Chunk operations

	// FindLatestChunk returns the chunk with the highest end version.
	FindLatestChunk(ctx context.Context, projectID string) (*model.Chunk, error)
	// FindChunkForVersion returns the first chunk, by end version, whose
	// range start..end contains version.
	FindChunkForVersion(ctx context.Context, projectID string, version int) (*model.Chunk, error)
	// FindChunkForTimestamp returns the first chunk, by end version, that
	// ends at or after ts.
	FindChunkForTimestamp(ctx context.Context, projectID string, ts time.Time) (*model.Chunk, error)
	// FindLastChunkBeforeTimestamp returns the last chunk, by end version,
	// that ends strictly before ts.
	FindLastChunkBeforeTimestamp(ctx context.Context, projectID string, ts time.Time) (*model.Chunk, error)
	FindChunkByID(ctx context.Context, projectID, chunkID string) (*model.Chunk, error)
	// ListChunks returns every chunk ordered by start version.
	ListChunks(ctx context.Context, projectID string) ([]*model.Chunk, error)
	// InsertChunk records a new chunk. It returns false when a chunk with
	// the same start version already exists.
	InsertChunk(ctx context.Context, chunk *model.Chunk) (bool, error)
	// ReplaceChunk swaps the chunk with the given start version for chunk,
	// provided its end version is still oldEndVersion. It returns false when
	// no row matched.
	ReplaceChunk(ctx context.Context, chunk *model.Chunk, oldEndVersion int) (bool, error)

	// Operation log

	CreateOperation(ctx context.Context, operation, parameters, projectID string, startedAt time.Time) (*model.Operation, error)
	FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error
	// ListOperations returns the most recent operations, newest first.
	ListOperations(ctx context.Context, limit int) ([]*model.Operation, error)

	// CheckMigrations returns an error unless the schema is at the latest
	// version.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(destPath string) error

	Close() error
}
