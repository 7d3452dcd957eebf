package hist

import (
	"context"

	"hist-go/internal/core"
)

// FlushFunc receives the queued changes of a project, oldest first. The
// changes are removed from the buffer only if it returns nil.
type FlushFunc func(changes []*core.Change) error

// ChangeBuffer holds validated changes that have not yet been written to a
// chunk. Changes are queued per project and flushed in order.
type ChangeBuffer interface {
	// Queue appends changes to a project's queue. Nothing is queued if the
	// queue would grow past its limit.
	Queue(ctx context.Context, projectID string, changes []*core.Change) error

	// Changes returns the queued changes without removing them.
	Changes(ctx context.Context, projectID string) ([]*core.Change, error)

	// Flush passes every queued change to fn and removes them once fn
	// succeeds. It returns the number of changes flushed.
	Flush(ctx context.Context, projectID string, fn FlushFunc) (int, error)

	// Count returns the number of queued changes for a project.
	Count(ctx context.Context, projectID string) (int, error)

	// Projects returns the ids of projects with queued changes.
	Projects(ctx context.Context) ([]string, error)

	Close() error
}
