package hist

import (
	"context"
	"io"
	"path"
)

// Vault is the object storage backend that blob content and chunk bodies
// are written to. Objects are addressed by slash-separated keys and streamed
// through io.Reader/io.Writer.
type Vault interface {
	// PutObject stores size bytes read from r under key, replacing any
	// existing object.
	PutObject(ctx context.Context, key string, r io.Reader, size int64) error

	// GetObject writes the object stored under key to w. A missing key
	// returns an error wrapping ErrObjectNotFound.
	GetObject(ctx context.Context, key string, w io.Writer) error

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// BlobKey is the vault key of a blob's content. Hashes are split after two
// characters to keep directory listings small.
func BlobKey(projectID, hash string) string {
	return path.Join("projects", projectID, "blobs", hash[:2], hash[2:])
}

// ChunkKey is the vault key of a chunk body.
func ChunkKey(projectID, chunkID string) string {
	return path.Join("projects", projectID, "chunks", chunkID)
}

// MetadataKey is the vault key of a named metadata item, such as the
// database backup.
func MetadataKey(name string) string {
	return path.Join("metadata", name)
}
