package hist

import (
	"context"
	"fmt"

	"hist-go/internal/core"
	"hist-go/internal/docupdater"
)

// GetChanges returns every persisted change after version since, oldest
// first.
func (s *HistoryService) GetChanges(ctx context.Context, projectID string, since int) ([]*core.Change, error) {
	latest, err := s.chunks.LoadLatestRaw(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if since < 0 {
		return nil, &VersionNotFoundError{ProjectID: projectID, Version: since}
	}
	if since > latest.EndVersion {
		return nil, &NotPersistedError{ProjectID: projectID, Version: since}
	}

	var changes []*core.Change
	for version := since; version < latest.EndVersion; {
		chunk, err := s.chunks.LoadAtVersion(ctx, projectID, version+1)
		if err != nil {
			return nil, err
		}
		changes = append(changes, chunk.Changes()[version-chunk.StartVersion():]...)
		version = chunk.EndVersion()
	}
	return changes, nil
}

// GetSnapshot returns the project state at version with file content
// loaded as kind. A negative version selects the latest persisted version.
func (s *HistoryService) GetSnapshot(ctx context.Context, projectID string, version int, kind core.LoadKind) (*core.Snapshot, error) {
	if version < 0 {
		latest, err := s.chunks.LoadLatestRaw(ctx, projectID)
		if err != nil {
			return nil, err
		}
		version = latest.EndVersion
	}
	chunk, err := s.chunks.LoadAtVersion(ctx, projectID, version)
	if err != nil {
		return nil, err
	}
	if err := chunk.LoadFiles(ctx, kind, s.BlobStore(projectID), s.opts.Concurrency); err != nil {
		return nil, fmt.Errorf("loading files: %w", err)
	}
	return replay(chunk.Snapshot(), chunk.Changes()[:version-chunk.StartVersion()])
}

// GetFileContent returns the content of one file at version.
func (s *HistoryService) GetFileContent(ctx context.Context, projectID string, version int, pathname string) (string, error) {
	snapshot, err := s.GetSnapshot(ctx, projectID, version, core.LoadEager)
	if err != nil {
		return "", err
	}
	file := snapshot.GetFile(pathname)
	if file == nil {
		return "", &core.FileNotFoundError{Pathname: pathname}
	}
	if content, ok := file.Content(); ok {
		return content, nil
	}
	return s.BlobStore(projectID).GetString(ctx, file.Hash())
}

// GetRangesSnapshot projects the comments and tracked changes of one file
// at version into document-updater positions.
func (s *HistoryService) GetRangesSnapshot(ctx context.Context, projectID string, version int, pathname string) (*docupdater.Ranges, error) {
	snapshot, err := s.GetSnapshot(ctx, projectID, version, core.LoadEager)
	if err != nil {
		return nil, err
	}
	file := snapshot.GetFile(pathname)
	if file == nil {
		return nil, &core.FileNotFoundError{Pathname: pathname}
	}
	ranges, err := docupdater.GetRangesSnapshot(file)
	if err != nil {
		return nil, fmt.Errorf("projecting ranges of %q: %w", pathname, err)
	}
	return ranges, nil
}
