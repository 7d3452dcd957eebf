package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"hist-go/internal/hist"
)

// GCSOptions configures a GCSVault. Without a credentials file the client
// falls back to application default credentials.
type GCSOptions struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
}

// GCSVault stores objects in a Google Cloud Storage bucket.
type GCSVault struct {
	name   string
	bucket string
	prefix string
	client *storage.Client
}

// NewGCSVault creates a vault backed by the given bucket.
func NewGCSVault(ctx context.Context, name string, opts GCSOptions) (*GCSVault, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("gcs vault requires a bucket")
	}
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSVault{
		name:   name,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		client: client,
	}, nil
}

// PutObject streams r into a new object generation.
func (v *GCSVault) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	writer := v.object(key).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	written, err := io.Copy(writer, r)
	if err != nil {
		writer.Close()
		return fmt.Errorf("failed to copy object %s to GCS: %w", key, err)
	}
	if written != size {
		writer.Close()
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}
	return nil
}

// GetObject copies the object stored under key to w.
func (v *GCSVault) GetObject(ctx context.Context, key string, w io.Writer) error {
	reader, err := v.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", hist.ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to open GCS object %s: %w", key, err)
	}
	defer reader.Close()

	if _, err := io.Copy(w, reader); err != nil {
		return fmt.Errorf("failed to read GCS object %s: %w", key, err)
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *GCSVault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.Bucket(v.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

// Close releases the underlying client.
func (v *GCSVault) Close() error {
	return v.client.Close()
}

func (v *GCSVault) object(key string) *storage.ObjectHandle {
	if v.prefix != "" {
		key = path.Join(v.prefix, key)
	}
	return v.client.Bucket(v.bucket).Object(key)
}

var _ hist.Vault = (*GCSVault)(nil)
