package hist

import (
	"errors"
	"fmt"
	"time"

	"hist-go/internal/core"
)

// ErrObjectNotFound is wrapped by Vault implementations when a key has no
// stored object.
var ErrObjectNotFound = errors.New("object not found")

// ErrConflict is matched by every version conflict error.
var ErrConflict = errors.New("version conflict")

// ProjectNotFoundError is returned for unknown project ids.
type ProjectNotFoundError struct {
	ProjectID string
}

func (e *ProjectNotFoundError) Error() string        { return fmt.Sprintf("project not found: %s", e.ProjectID) }
func (e *ProjectNotFoundError) Is(target error) bool { return target == core.ErrNotFound }

// ChunkNotFoundError is returned when a project has no stored chunk.
type ChunkNotFoundError struct {
	ProjectID string
}

func (e *ChunkNotFoundError) Error() string {
	return fmt.Sprintf("no chunk found for project %s", e.ProjectID)
}
func (e *ChunkNotFoundError) Is(target error) bool { return target == core.ErrNotFound }

// VersionNotFoundError is returned when no chunk covers a version.
type VersionNotFoundError struct {
	ProjectID string
	Version   int
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("no chunk for version %d of project %s", e.Version, e.ProjectID)
}
func (e *VersionNotFoundError) Is(target error) bool { return target == core.ErrNotFound }

// BeforeTimestampNotFoundError is returned when every chunk of a project ends
// after the requested timestamp.
type BeforeTimestampNotFoundError struct {
	ProjectID string
	Timestamp time.Time
}

func (e *BeforeTimestampNotFoundError) Error() string {
	return fmt.Sprintf("no chunk before %s for project %s", e.Timestamp.UTC().Format(time.RFC3339), e.ProjectID)
}
func (e *BeforeTimestampNotFoundError) Is(target error) bool { return target == core.ErrNotFound }

// NotPersistedError is returned when a version is past the persisted end of
// a project's history.
type NotPersistedError struct {
	ProjectID string
	Version   int
}

func (e *NotPersistedError) Error() string {
	return fmt.Sprintf("version %d of project %s is not persisted", e.Version, e.ProjectID)
}
func (e *NotPersistedError) Is(target error) bool { return target == core.ErrNotFound }

// ConflictingEndVersionError is returned when a client submits changes
// against a stale end version.
type ConflictingEndVersionError struct {
	Client int
	Latest int
}

func (e *ConflictingEndVersionError) Error() string {
	return fmt.Sprintf("client sent updates with end version %d but latest version is %d", e.Client, e.Latest)
}
func (e *ConflictingEndVersionError) Is(target error) bool { return target == ErrConflict }

// ChunkVersionConflictError is returned when a chunk with the same start
// version already exists.
type ChunkVersionConflictError struct {
	ProjectID    string
	StartVersion int
}

func (e *ChunkVersionConflictError) Error() string {
	return fmt.Sprintf("chunk with start version %d already exists for project %s", e.StartVersion, e.ProjectID)
}
func (e *ChunkVersionConflictError) Is(target error) bool { return target == ErrConflict }
