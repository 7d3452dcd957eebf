package hist

import (
	"context"
	"errors"
	"fmt"

	"hist-go/internal/core"
	"hist-go/internal/model"
)

// ProjectBlobStore is the core.BlobStore of one project. Content is kept in
// the vault and the blob table records which hashes have been uploaded.
type ProjectBlobStore struct {
	projectID string
	objects   *objectStore
	database  Database
	clock     Clock
	logger    Logger
}

var _ core.BlobStore = (*ProjectBlobStore)(nil)

// GetBlob returns the blob record, or nil if the hash was never uploaded.
func (s *ProjectBlobStore) GetBlob(ctx context.Context, hash string) (*core.Blob, error) {
	row, err := s.database.FindBlob(ctx, s.projectID, hash)
	if err != nil {
		return nil, fmt.Errorf("finding blob %s: %w", hash, err)
	}
	if row == nil {
		return nil, nil
	}
	return core.NewBlob(row.Hash, row.ByteLength, row.StringLength)
}

// GetBlobs returns the records of the known hashes. Unknown hashes are
// skipped and duplicates are returned once.
func (s *ProjectBlobStore) GetBlobs(ctx context.Context, hashes []string) ([]*core.Blob, error) {
	seen := make(map[string]bool, len(hashes))
	unique := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if !seen[h] {
			seen[h] = true
			unique = append(unique, h)
		}
	}
	rows, err := s.database.FindBlobs(ctx, s.projectID, unique)
	if err != nil {
		return nil, fmt.Errorf("finding blobs: %w", err)
	}
	blobs := make([]*core.Blob, 0, len(rows))
	for _, row := range rows {
		blob, err := core.NewBlob(row.Hash, row.ByteLength, row.StringLength)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

// GetString returns the content of a blob, or a *core.BlobNotFoundError.
func (s *ProjectBlobStore) GetString(ctx context.Context, hash string) (string, error) {
	if !core.IsValidHash(hash) {
		return "", &core.BlobNotFoundError{Hash: hash}
	}
	data, err := s.objects.get(ctx, BlobKey(s.projectID, hash))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return "", &core.BlobNotFoundError{Hash: hash}
		}
		return "", fmt.Errorf("reading blob %s: %w", hash, err)
	}
	return string(data), nil
}

func (s *ProjectBlobStore) GetObject(ctx context.Context, hash string, v any) error {
	return core.GetObjectFromString(ctx, s, hash, v)
}

// PutString uploads content unless the hash is already recorded.
func (s *ProjectBlobStore) PutString(ctx context.Context, str string) (*core.Blob, error) {
	content := []byte(str)
	blob := core.BlobForContent(content)

	existing, err := s.database.FindBlob(ctx, s.projectID, blob.Hash())
	if err != nil {
		return nil, fmt.Errorf("checking for existing blob: %w", err)
	}
	if existing != nil {
		s.logger.Debug("blob deduplicated", "project", s.projectID, "hash", blob.Hash())
		return blob, nil
	}

	// Content goes to the vault before the row, so a recorded hash is
	// always readable.
	if err := s.objects.put(ctx, BlobKey(s.projectID, blob.Hash()), content); err != nil {
		return nil, err
	}
	row := &model.Blob{
		ProjectID:  s.projectID,
		Hash:       blob.Hash(),
		ByteLength: blob.ByteLength(),
		CreatedAt:  s.clock.Now(),
	}
	if n, ok := blob.StringLength(); ok {
		row.StringLength = &n
	}
	if err := s.database.InsertBlob(ctx, row); err != nil {
		return nil, fmt.Errorf("recording blob: %w", err)
	}
	s.logger.Debug("blob uploaded", "project", s.projectID, "hash", blob.Hash(), "bytes", blob.ByteLength())
	return blob, nil
}

func (s *ProjectBlobStore) PutObject(ctx context.Context, v any) (*core.Blob, error) {
	return core.PutObjectAsString(ctx, s, v)
}
