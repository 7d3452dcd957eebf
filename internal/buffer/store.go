package buffer

import "context"

// changeStore abstracts where queued changes are kept. Records are the JSON
// encoding of one change each, kept in insertion order per project.
// Concurrency is managed by the caller (Buffer.mu), so stores do not
// need to be safe for concurrent use.
type changeStore interface {
	// Append adds records to the end of a project's queue.
	Append(ctx context.Context, projectID string, records [][]byte) error

	// Range returns every record of a project's queue, oldest first.
	Range(ctx context.Context, projectID string) ([][]byte, error)

	// Trim removes the first n records of a project's queue.
	Trim(ctx context.Context, projectID string, n int) error

	// Len returns the number of records queued for a project.
	Len(ctx context.Context, projectID string) (int, error)

	// Projects returns the ids of projects with a non-empty queue.
	Projects(ctx context.Context) ([]string, error)

	Close() error
}
