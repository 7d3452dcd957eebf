package core

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// History is a snapshot followed by the changes made to it, in application
// order.
type History struct {
	snapshot *Snapshot
	changes  []*Change
}

// RawHistory is the storage form of a History.
type RawHistory struct {
	Snapshot RawSnapshot `json:"snapshot"`
	Changes  []RawChange `json:"changes"`
}

func NewHistory(snapshot *Snapshot, changes []*Change) *History {
	return &History{snapshot: snapshot, changes: slices.Clone(changes)}
}

// HistoryFromRaw decodes a stored history.
func HistoryFromRaw(raw RawHistory) (*History, error) {
	snapshot, err := SnapshotFromRaw(raw.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	changes := make([]*Change, 0, len(raw.Changes))
	for i, rc := range raw.Changes {
		c, err := ChangeFromRaw(rc)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		changes = append(changes, c)
	}
	return &History{snapshot: snapshot, changes: changes}, nil
}

func (h *History) ToRaw() RawHistory {
	raw := RawHistory{Snapshot: h.snapshot.ToRaw(), Changes: make([]RawChange, 0, len(h.changes))}
	for _, c := range h.changes {
		raw.Changes = append(raw.Changes, c.ToRaw())
	}
	return raw
}

func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.ToRaw())
}

func (h *History) UnmarshalJSON(data []byte) error {
	var aux struct {
		Snapshot *Snapshot `json:"snapshot"`
		Changes  []*Change `json:"changes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Snapshot == nil {
		aux.Snapshot = NewSnapshot()
	}
	h.snapshot, h.changes = aux.Snapshot, aux.Changes
	return nil
}

func (h *History) Snapshot() *Snapshot { return h.snapshot }
func (h *History) Changes() []*Change  { return slices.Clone(h.changes) }
func (h *History) CountChanges() int   { return len(h.changes) }

// PushChanges appends changes.
func (h *History) PushChanges(changes ...*Change) {
	h.changes = append(h.changes, changes...)
}

// LoadFiles loads the snapshot's files and the files added by changes.
func (h *History) LoadFiles(ctx context.Context, kind LoadKind, store BlobStore, concurrency int) error {
	if err := h.snapshot.LoadFiles(ctx, kind, store, concurrency); err != nil {
		return err
	}
	for _, c := range h.changes {
		if err := c.LoadFiles(ctx, kind, store, concurrency); err != nil {
			return err
		}
	}
	return nil
}

// Store persists the snapshot and every change, storing changes
// concurrently within the limit.
func (h *History) Store(ctx context.Context, store BlobStore, concurrency int) (RawHistory, error) {
	snapshot, err := h.snapshot.Store(ctx, store, concurrency)
	if err != nil {
		return RawHistory{}, fmt.Errorf("storing snapshot: %w", err)
	}
	changes := make([]RawChange, len(h.changes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, c := range h.changes {
		g.Go(func() error {
			raw, err := c.Store(gctx, store, 1)
			if err != nil {
				return fmt.Errorf("storing change %d: %w", i, err)
			}
			changes[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RawHistory{}, err
	}
	return RawHistory{Snapshot: snapshot, Changes: changes}, nil
}
