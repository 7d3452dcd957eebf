package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Chunk is a segment of a project's history starting at startVersion.
// Its end version is startVersion plus the number of changes.
type Chunk struct {
	history      *History
	startVersion int
}

// RawChunk is the storage form of a Chunk.
type RawChunk struct {
	History      RawHistory `json:"history"`
	StartVersion int        `json:"startVersion"`
}

func NewChunk(history *History, startVersion int) (*Chunk, error) {
	if startVersion < 0 {
		return nil, fmt.Errorf("invalid start version %d", startVersion)
	}
	return &Chunk{history: history, startVersion: startVersion}, nil
}

// ChunkFromRaw decodes a stored chunk.
func ChunkFromRaw(raw RawChunk) (*Chunk, error) {
	h, err := HistoryFromRaw(raw.History)
	if err != nil {
		return nil, err
	}
	return NewChunk(h, raw.StartVersion)
}

func (c *Chunk) ToRaw() RawChunk {
	return RawChunk{History: c.history.ToRaw(), StartVersion: c.startVersion}
}

func (c *Chunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToRaw())
}

func (c *Chunk) UnmarshalJSON(data []byte) error {
	var aux struct {
		History      *History `json:"history"`
		StartVersion int      `json:"startVersion"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.History == nil {
		aux.History = NewHistory(NewSnapshot(), nil)
	}
	decoded, err := NewChunk(aux.History, aux.StartVersion)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

func (c *Chunk) History() *History   { return c.history }
func (c *Chunk) Snapshot() *Snapshot { return c.history.snapshot }
func (c *Chunk) Changes() []*Change  { return c.history.Changes() }
func (c *Chunk) StartVersion() int   { return c.startVersion }

// EndVersion is the version reached after the last change.
func (c *Chunk) EndVersion() int {
	return c.startVersion + c.history.CountChanges()
}

// EndTimestamp returns the last change's timestamp, or false for an empty
// chunk.
func (c *Chunk) EndTimestamp() (time.Time, bool) {
	n := len(c.history.changes)
	if n == 0 {
		return time.Time{}, false
	}
	return c.history.changes[n-1].timestamp, true
}

// PushChanges appends changes to the chunk's history.
func (c *Chunk) PushChanges(changes ...*Change) {
	c.history.PushChanges(changes...)
}

func (c *Chunk) LoadFiles(ctx context.Context, kind LoadKind, store BlobStore, concurrency int) error {
	return c.history.LoadFiles(ctx, kind, store, concurrency)
}

// Store persists the chunk's content and returns its raw form.
func (c *Chunk) Store(ctx context.Context, store BlobStore, concurrency int) (RawChunk, error) {
	h, err := c.history.Store(ctx, store, concurrency)
	if err != nil {
		return RawChunk{}, err
	}
	return RawChunk{History: h, StartVersion: c.startVersion}, nil
}
