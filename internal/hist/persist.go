package hist

import (
	"context"
	"fmt"

	"hist-go/internal/core"
)

// PersistResult describes a successful persist.
type PersistResult struct {
	StartVersion  int
	EndVersion    int
	ChunksCreated int
}

// PersistChanges validates changes by applying them strictly to the head of
// the project's history and appends them to the latest chunk. A new chunk is
// started whenever the current one reaches MaxChunkChanges. endVersion must
// equal the persisted end version. No change is stored if any of them fails
// to apply.
func (s *HistoryService) PersistChanges(ctx context.Context, projectID string, endVersion int, changes []*core.Change) (*PersistResult, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	chunk, err := s.chunks.LoadLatest(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if chunk.EndVersion() != endVersion {
		return nil, &ConflictingEndVersionError{Client: endVersion, Latest: chunk.EndVersion()}
	}
	result := &PersistResult{StartVersion: endVersion, EndVersion: endVersion}
	if len(changes) == 0 {
		return result, nil
	}

	store := s.BlobStore(projectID)
	if err := chunk.LoadFiles(ctx, core.LoadLazy, store, s.opts.Concurrency); err != nil {
		return nil, fmt.Errorf("loading latest chunk: %w", err)
	}
	head, err := replay(chunk.Snapshot().Clone(), chunk.Changes())
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, store, head.Clone(), endVersion, changes); err != nil {
		return nil, err
	}

	current, oldEnd, isNew, pending := chunk, endVersion, false, 0
	save := func() error {
		if pending == 0 {
			return nil
		}
		if isNew {
			result.ChunksCreated++
			return s.chunks.Create(ctx, projectID, current)
		}
		return s.chunks.Update(ctx, projectID, oldEnd, current)
	}
	for _, change := range changes {
		if current.History().CountChanges() >= s.opts.MaxChunkChanges {
			if err := save(); err != nil {
				return nil, err
			}
			next, err := core.NewChunk(core.NewHistory(head.Clone(), nil), current.EndVersion())
			if err != nil {
				return nil, err
			}
			current, isNew, pending = next, true, 0
		}
		if err := change.ApplyTo(head, core.ApplyOptions{Strict: true}); err != nil {
			return nil, err
		}
		current.PushChanges(change)
		pending++
	}
	if err := save(); err != nil {
		return nil, err
	}

	result.EndVersion = current.EndVersion()
	s.logger.Info("changes persisted", "project", projectID, "count", len(changes),
		"start_version", result.StartVersion, "end_version", result.EndVersion)
	return result, nil
}

// QueueChanges validates changes against the head of the project, which
// includes changes already in the buffer, and queues them. It returns the new
// head version.
func (s *HistoryService) QueueChanges(ctx context.Context, projectID string, endVersion int, changes []*core.Change) (int, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return 0, err
	}
	chunk, err := s.chunks.LoadLatest(ctx, projectID)
	if err != nil {
		return 0, err
	}
	queued, err := s.buffer.Changes(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("reading buffered changes: %w", err)
	}
	headVersion := chunk.EndVersion() + len(queued)
	if endVersion != headVersion {
		return 0, &ConflictingEndVersionError{Client: endVersion, Latest: headVersion}
	}

	store := s.BlobStore(projectID)
	if err := chunk.LoadFiles(ctx, core.LoadLazy, store, s.opts.Concurrency); err != nil {
		return 0, fmt.Errorf("loading latest chunk: %w", err)
	}
	for _, c := range queued {
		if err := c.LoadFiles(ctx, core.LoadLazy, store, s.opts.Concurrency); err != nil {
			return 0, fmt.Errorf("loading buffered changes: %w", err)
		}
	}
	head, err := replay(chunk.Snapshot().Clone(), append(chunk.Changes(), queued...))
	if err != nil {
		return 0, err
	}
	if err := s.validate(ctx, store, head, headVersion, changes); err != nil {
		return 0, err
	}

	if err := s.buffer.Queue(ctx, projectID, changes); err != nil {
		return 0, fmt.Errorf("queueing changes: %w", err)
	}
	s.logger.Info("changes queued", "project", projectID, "count", len(changes), "head_version", headVersion+len(changes))
	return headVersion + len(changes), nil
}

// FlushChanges persists every buffered change of a project. The buffer is
// only emptied if the changes were stored.
func (s *HistoryService) FlushChanges(ctx context.Context, projectID string) (int, error) {
	n, err := s.buffer.Flush(ctx, projectID, func(changes []*core.Change) error {
		latest, err := s.chunks.LoadLatestRaw(ctx, projectID)
		if err != nil {
			return err
		}
		_, err = s.PersistChanges(ctx, projectID, latest.EndVersion, changes)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("flushing changes: %w", err)
	}
	return n, nil
}

// FlushAll flushes every project with buffered changes and returns the
// number of changes persisted.
func (s *HistoryService) FlushAll(ctx context.Context) (int, error) {
	projects, err := s.buffer.Projects(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing buffered projects: %w", err)
	}
	total := 0
	for _, projectID := range projects {
		n, err := s.FlushChanges(ctx, projectID)
		total += n
		if err != nil {
			return total, fmt.Errorf("project %s: %w", projectID, err)
		}
	}
	return total, nil
}

// validate applies changes strictly to snapshot. Version numbers in errors
// are those the failing change would have produced.
func (s *HistoryService) validate(ctx context.Context, store core.BlobStore, snapshot *core.Snapshot, baseVersion int, changes []*core.Change) error {
	for i, c := range changes {
		if err := c.LoadFiles(ctx, core.LoadLazy, store, s.opts.Concurrency); err != nil {
			return fmt.Errorf("loading files of change %d: %w", baseVersion+i+1, err)
		}
		if err := c.ApplyTo(snapshot, core.ApplyOptions{Strict: true}); err != nil {
			return fmt.Errorf("invalid change %d: %w", baseVersion+i+1, err)
		}
	}
	return nil
}

// replay applies already accepted changes to snapshot. Missing files are
// skipped as they were when the changes were first applied.
func replay(snapshot *core.Snapshot, changes []*core.Change) (*core.Snapshot, error) {
	for _, c := range changes {
		if err := c.ApplyTo(snapshot, core.ApplyOptions{}); err != nil {
			return nil, fmt.Errorf("replaying history: %w", err)
		}
	}
	return snapshot, nil
}
