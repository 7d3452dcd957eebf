package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"hist-go/internal/core"
	"hist-go/internal/hist"
)

// ErrBufferFull is returned by Queue when a project's queue would exceed its
// limit.
var ErrBufferFull = errors.New("change buffer full")

// Buffer implements hist.ChangeBuffer using a pluggable changeStore
// for the storage mechanics. Encoding, limits and the flush protocol live
// here.
type Buffer struct {
	store      changeStore
	maxChanges int

	// mu guards store; flushMu serialises flushes so a change is never
	// handed out twice.
	mu      sync.Mutex
	flushMu sync.Mutex
}

var _ hist.ChangeBuffer = (*Buffer)(nil)

func newBuffer(store changeStore, maxChanges int) *Buffer {
	return &Buffer{store: store, maxChanges: maxChanges}
}

// Queue appends changes to a project's queue, all or nothing.
func (b *Buffer) Queue(ctx context.Context, projectID string, changes []*core.Change) error {
	if len(changes) == 0 {
		return nil
	}
	records := make([][]byte, 0, len(changes))
	for i, c := range changes {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encoding change %d: %w", i, err)
		}
		records = append(records, data)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.store.Len(ctx, projectID)
	if err != nil {
		return fmt.Errorf("counting queued changes: %w", err)
	}
	if b.maxChanges > 0 && n+len(records) > b.maxChanges {
		return fmt.Errorf("%w: %d queued, %d more would exceed %d", ErrBufferFull, n, len(records), b.maxChanges)
	}
	if err := b.store.Append(ctx, projectID, records); err != nil {
		return fmt.Errorf("queueing changes: %w", err)
	}
	return nil
}

// Changes returns the queued changes without removing them.
func (b *Buffer) Changes(ctx context.Context, projectID string) ([]*core.Change, error) {
	b.mu.Lock()
	records, err := b.store.Range(ctx, projectID)
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("reading queued changes: %w", err)
	}
	return decode(records)
}

// Flush hands the queued changes to fn and removes them once fn returns
// nil. If fn fails the changes stay queued for a later attempt. Changes
// queued while fn runs are kept.
func (b *Buffer) Flush(ctx context.Context, projectID string, fn hist.FlushFunc) (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	changes, err := b.Changes(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, nil
	}

	// fn runs without holding mu so queueing is not blocked by vault I/O.
	if err := fn(changes); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.store.Trim(ctx, projectID, len(changes)); err != nil {
		return 0, fmt.Errorf("removing flushed changes: %w", err)
	}
	return len(changes), nil
}

// Count returns the number of queued changes for a project.
func (b *Buffer) Count(ctx context.Context, projectID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Len(ctx, projectID)
}

// Projects returns the ids of projects with queued changes, sorted.
func (b *Buffer) Projects(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	ids, err := b.store.Projects(ctx)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Close()
}

func decode(records [][]byte) ([]*core.Change, error) {
	changes := make([]*core.Change, 0, len(records))
	for i, data := range records {
		var c core.Change
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decoding queued change %d: %w", i, err)
		}
		changes = append(changes, &c)
	}
	return changes, nil
}
