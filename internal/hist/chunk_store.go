package hist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hist-go/internal/core"
	"hist-go/internal/model"
)

// ChunkStore persists chunks of project history. Chunk bodies are written
// to the vault under a fresh id before the metadata row is touched, so a
// failed upload leaves the recorded history unchanged.
type ChunkStore struct {
	objects     *objectStore
	database    Database
	clock       Clock
	idgen       IDGenerator
	logger      Logger
	concurrency int
	blobStore   func(projectID string) *ProjectBlobStore
}

// InitializeProject records a project and its first, empty chunk.
func (s *ChunkStore) InitializeProject(ctx context.Context, projectID string) error {
	existing, err := s.database.FindProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("checking for existing project: %w", err)
	}
	if existing == nil {
		if _, err := s.database.CreateProject(ctx, projectID, s.clock.Now()); err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
	} else {
		// A previous attempt may have failed before its first chunk was stored.
		latest, err := s.database.FindLatestChunk(ctx, projectID)
		if err != nil {
			return fmt.Errorf("finding latest chunk: %w", err)
		}
		if latest != nil {
			return nil
		}
	}
	chunk, err := core.NewChunk(core.NewHistory(core.NewSnapshot(), nil), 0)
	if err != nil {
		return err
	}
	return s.Create(ctx, projectID, chunk)
}

// LoadLatest returns the chunk with the highest end version. File content is
// not loaded.
func (s *ChunkStore) LoadLatest(ctx context.Context, projectID string) (*core.Chunk, error) {
	row, err := s.LoadLatestRaw(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, row)
}

// LoadLatestRaw returns the metadata of the latest chunk without reading
// the vault.
func (s *ChunkStore) LoadLatestRaw(ctx context.Context, projectID string) (*model.Chunk, error) {
	row, err := s.database.FindLatestChunk(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("finding latest chunk: %w", err)
	}
	if row == nil {
		return nil, &ChunkNotFoundError{ProjectID: projectID}
	}
	return row, nil
}

// LoadAtVersion returns the chunk containing version. A version equal to a
// chunk boundary resolves to the earlier chunk.
func (s *ChunkStore) LoadAtVersion(ctx context.Context, projectID string, version int) (*core.Chunk, error) {
	row, err := s.database.FindChunkForVersion(ctx, projectID, version)
	if err != nil {
		return nil, fmt.Errorf("finding chunk for version %d: %w", version, err)
	}
	if row == nil {
		return nil, &VersionNotFoundError{ProjectID: projectID, Version: version}
	}
	return s.load(ctx, row)
}

// LoadAtTimestamp returns the first chunk that ends at or after ts, or the
// latest chunk when every chunk ends earlier.
func (s *ChunkStore) LoadAtTimestamp(ctx context.Context, projectID string, ts time.Time) (*core.Chunk, error) {
	row, err := s.database.FindChunkForTimestamp(ctx, projectID, ts)
	if err != nil {
		return nil, fmt.Errorf("finding chunk for timestamp: %w", err)
	}
	if row == nil {
		return s.LoadLatest(ctx, projectID)
	}
	return s.load(ctx, row)
}

// LoadBeforeTimestamp returns the last chunk that ends before ts.
func (s *ChunkStore) LoadBeforeTimestamp(ctx context.Context, projectID string, ts time.Time) (*core.Chunk, error) {
	row, err := s.database.FindLastChunkBeforeTimestamp(ctx, projectID, ts)
	if err != nil {
		return nil, fmt.Errorf("finding chunk before timestamp: %w", err)
	}
	if row == nil {
		return nil, &BeforeTimestampNotFoundError{ProjectID: projectID, Timestamp: ts}
	}
	return s.load(ctx, row)
}

// LoadByChunkID returns a chunk by id.
func (s *ChunkStore) LoadByChunkID(ctx context.Context, projectID, chunkID string) (*core.Chunk, error) {
	row, err := s.database.FindChunkByID(ctx, projectID, chunkID)
	if err != nil {
		return nil, fmt.Errorf("finding chunk %s: %w", chunkID, err)
	}
	if row == nil {
		return nil, &ChunkNotFoundError{ProjectID: projectID}
	}
	return s.load(ctx, row)
}

// ListChunks returns the metadata of every chunk, ordered by start version.
func (s *ChunkStore) ListChunks(ctx context.Context, projectID string) ([]*model.Chunk, error) {
	rows, err := s.database.ListChunks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	return rows, nil
}

// Create stores a chunk that starts a new segment of history.
func (s *ChunkStore) Create(ctx context.Context, projectID string, chunk *core.Chunk) error {
	row, err := s.upload(ctx, projectID, chunk)
	if err != nil {
		return err
	}
	ok, err := s.database.InsertChunk(ctx, row)
	if err != nil {
		return fmt.Errorf("recording chunk: %w", err)
	}
	if !ok {
		s.logger.Warn("chunk version conflict", "project", projectID, "start_version", row.StartVersion)
		return &ChunkVersionConflictError{ProjectID: projectID, StartVersion: row.StartVersion}
	}
	s.logger.Info("chunk created", "project", projectID, "chunk", row.ID,
		"start_version", row.StartVersion, "end_version", row.EndVersion)
	return nil
}

// Update replaces the chunk with the same start version, which must still
// end at oldEndVersion.
func (s *ChunkStore) Update(ctx context.Context, projectID string, oldEndVersion int, chunk *core.Chunk) error {
	row, err := s.upload(ctx, projectID, chunk)
	if err != nil {
		return err
	}
	ok, err := s.database.ReplaceChunk(ctx, row, oldEndVersion)
	if err != nil {
		return fmt.Errorf("recording chunk: %w", err)
	}
	if !ok {
		latest := -1
		if current, err := s.database.FindLatestChunk(ctx, projectID); err == nil && current != nil {
			latest = current.EndVersion
		}
		s.logger.Warn("chunk end version conflict", "project", projectID, "client", oldEndVersion, "latest", latest)
		return &ConflictingEndVersionError{Client: oldEndVersion, Latest: latest}
	}
	s.logger.Info("chunk updated", "project", projectID, "chunk", row.ID,
		"start_version", row.StartVersion, "end_version", row.EndVersion)
	return nil
}

// upload stores the chunk's file content and body and returns the metadata
// row describing it.
func (s *ChunkStore) upload(ctx context.Context, projectID string, chunk *core.Chunk) (*model.Chunk, error) {
	raw, err := chunk.Store(ctx, s.blobStore(projectID), s.concurrency)
	if err != nil {
		return nil, fmt.Errorf("storing chunk content: %w", err)
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding chunk: %w", err)
	}
	row := &model.Chunk{
		ID:           s.idgen.New(),
		ProjectID:    projectID,
		StartVersion: chunk.StartVersion(),
		EndVersion:   chunk.EndVersion(),
		CreatedAt:    s.clock.Now(),
	}
	if ts, ok := chunk.EndTimestamp(); ok {
		row.EndTimestamp = &ts
	}
	if err := s.objects.put(ctx, ChunkKey(projectID, row.ID), body); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *ChunkStore) load(ctx context.Context, row *model.Chunk) (*core.Chunk, error) {
	body, err := s.objects.get(ctx, ChunkKey(row.ProjectID, row.ID))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, &ChunkNotFoundError{ProjectID: row.ProjectID}
		}
		return nil, fmt.Errorf("reading chunk %s: %w", row.ID, err)
	}
	var chunk core.Chunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		return nil, fmt.Errorf("decoding chunk %s: %w", row.ID, err)
	}
	return &chunk, nil
}
