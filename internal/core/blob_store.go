package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ReadOnlyBlobStore is enough to replay history.
type ReadOnlyBlobStore interface {
	// GetString returns the content of a blob, or a *BlobNotFoundError.
	GetString(ctx context.Context, hash string) (string, error)
	// GetObject decodes a JSON blob into v.
	GetObject(ctx context.Context, hash string, v any) error
}

// BlobStore is the content-addressed store that file content lives in.
type BlobStore interface {
	ReadOnlyBlobStore
	// GetBlob returns the blob record, or nil if the hash is unknown.
	GetBlob(ctx context.Context, hash string) (*Blob, error)
	// GetBlobs returns the records of the known hashes, without duplicates.
	GetBlobs(ctx context.Context, hashes []string) ([]*Blob, error)
	PutString(ctx context.Context, s string) (*Blob, error)
	// PutObject stores v encoded as JSON.
	PutObject(ctx context.Context, v any) (*Blob, error)
}

// MemoryBlobStore keeps blobs in a map. It is safe for concurrent use.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ BlobStore = (*MemoryBlobStore)(nil)

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) GetBlob(_ context.Context, hash string) (*Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.blobs[hash]
	if !ok {
		return nil, nil
	}
	return BlobForContent(content), nil
}

func (s *MemoryBlobStore) GetBlobs(ctx context.Context, hashes []string) ([]*Blob, error) {
	seen := make(map[string]bool, len(hashes))
	var out []*Blob
	for _, hash := range hashes {
		if seen[hash] {
			continue
		}
		seen[hash] = true
		blob, err := s.GetBlob(ctx, hash)
		if err != nil {
			return nil, err
		}
		if blob != nil {
			out = append(out, blob)
		}
	}
	return out, nil
}

func (s *MemoryBlobStore) GetString(_ context.Context, hash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.blobs[hash]
	if !ok {
		return "", &BlobNotFoundError{Hash: hash}
	}
	return string(content), nil
}

func (s *MemoryBlobStore) GetObject(ctx context.Context, hash string, v any) error {
	return GetObjectFromString(ctx, s, hash, v)
}

func (s *MemoryBlobStore) PutString(_ context.Context, str string) (*Blob, error) {
	content := []byte(str)
	blob := BlobForContent(content)
	s.mu.Lock()
	s.blobs[blob.hash] = content
	s.mu.Unlock()
	return blob, nil
}

func (s *MemoryBlobStore) PutObject(ctx context.Context, v any) (*Blob, error) {
	return PutObjectAsString(ctx, s, v)
}

// Len returns the number of stored blobs.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// GetObjectFromString implements GetObject on top of GetString.
func GetObjectFromString(ctx context.Context, store ReadOnlyBlobStore, hash string, v any) error {
	s, err := store.GetString(ctx, hash)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decoding blob %s: %w", hash, err)
	}
	return nil
}

// PutObjectAsString implements PutObject on top of PutString.
func PutObjectAsString(ctx context.Context, store BlobStore, v any) (*Blob, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding object: %w", err)
	}
	return store.PutString(ctx, string(data))
}
