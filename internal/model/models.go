package model

import "time"

// Project is a history-tracked project.
type Project struct {
	ID        string // UUID
	CreatedAt time.Time
}

// Blob records content that has been uploaded to the vault for a project.
// The hash is the git blob hash of the content, not a UUID.
type Blob struct {
	ProjectID    string
	Hash         string
	ByteLength   int
	StringLength *int // nil for binary content
	CreatedAt    time.Time
}

// Chunk is the metadata row for one stored history chunk. The chunk body
// lives in the vault under its ID.
type Chunk struct {
	ID           string // UUID, changes whenever the chunk is rewritten
	ProjectID    string
	StartVersion int
	EndVersion   int
	EndTimestamp *time.Time // nil while the chunk has no changes
	CreatedAt    time.Time
}

// Operation is one recorded CLI command.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	ProjectID  string
	Status     string // "running", "success" or "error"
	StartedAt  time.Time
	FinishedAt *time.Time
}
