package hist

import (
	"context"
	"fmt"
	"time"
)

// ProjectStatus summarises where a project's history stands.
type ProjectStatus struct {
	ProjectID        string
	PersistedVersion int
	QueuedChanges    int
	Chunks           int
	LastChangeAt     *time.Time
}

// HeadVersion is the version clients must send their next changes against
// when queueing.
func (st *ProjectStatus) HeadVersion() int {
	return st.PersistedVersion + st.QueuedChanges
}

// GetStatus returns the persisted and buffered state of a project.
func (s *HistoryService) GetStatus(ctx context.Context, projectID string) (*ProjectStatus, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	chunks, err := s.chunks.ListChunks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, &ChunkNotFoundError{ProjectID: projectID}
	}
	queued, err := s.buffer.Count(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("counting buffered changes: %w", err)
	}

	latest := chunks[len(chunks)-1]
	status := &ProjectStatus{
		ProjectID:        projectID,
		PersistedVersion: latest.EndVersion,
		QueuedChanges:    queued,
		Chunks:           len(chunks),
	}
	// The newest chunk may still be empty, so look back for a timestamp.
	for i := len(chunks) - 1; i >= 0; i-- {
		if ts := chunks[i].EndTimestamp; ts != nil {
			status.LastChangeAt = ts
			break
		}
	}
	return status, nil
}
