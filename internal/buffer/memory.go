package buffer

import (
	"context"
	"slices"
)

// memoryStore keeps queues in process memory.
type memoryStore struct {
	queues map[string][][]byte
}

// NewMemoryChangeBuffer creates a change buffer that lives only as long as
// the process. maxChanges limits each project's queue; 0 means unlimited.
func NewMemoryChangeBuffer(maxChanges int) *Buffer {
	return newBuffer(&memoryStore{queues: make(map[string][][]byte)}, maxChanges)
}

func (m *memoryStore) Append(_ context.Context, projectID string, records [][]byte) error {
	for _, r := range records {
		m.queues[projectID] = append(m.queues[projectID], slices.Clone(r))
	}
	return nil
}

func (m *memoryStore) Range(_ context.Context, projectID string) ([][]byte, error) {
	return slices.Clone(m.queues[projectID]), nil
}

func (m *memoryStore) Trim(_ context.Context, projectID string, n int) error {
	q := m.queues[projectID]
	if n >= len(q) {
		delete(m.queues, projectID)
		return nil
	}
	m.queues[projectID] = slices.Clone(q[n:])
	return nil
}

func (m *memoryStore) Len(_ context.Context, projectID string) (int, error) {
	return len(m.queues[projectID]), nil
}

func (m *memoryStore) Projects(context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.queues))
	for id, q := range m.queues {
		if len(q) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) Close() error { return nil }
