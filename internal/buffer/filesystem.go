package buffer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const queueExt = ".jsonl"

// fileStore keeps one newline-delimited JSON file per project:
//
//	<dir>/<project id>.jsonl
type fileStore struct {
	dir string
}

// NewFileSystemChangeBuffer creates a change buffer persisted below dir.
func NewFileSystemChangeBuffer(dir string, maxChanges int) (*Buffer, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating buffer dir: %w", err)
	}
	return newBuffer(&fileStore{dir: dir}, maxChanges), nil
}

func (f *fileStore) queuePath(projectID string) (string, error) {
	if projectID == "" || strings.ContainsAny(projectID, `/\`) || projectID == "." || projectID == ".." {
		return "", fmt.Errorf("invalid project id: %q", projectID)
	}
	return filepath.Join(f.dir, projectID+queueExt), nil
}

func (f *fileStore) Append(_ context.Context, projectID string, records [][]byte) error {
	path, err := f.queuePath(projectID)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, r := range records {
		buf.Write(r)
		buf.WriteByte('\n')
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("opening queue: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("writing queue: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("syncing queue: %w", err)
	}
	return file.Close()
}

func (f *fileStore) Range(_ context.Context, projectID string) ([][]byte, error) {
	path, err := f.queuePath(projectID)
	if err != nil {
		return nil, err
	}
	return readRecords(path)
}

// Trim rewrites the queue without its first n records through a temp file
// and rename.
func (f *fileStore) Trim(ctx context.Context, projectID string, n int) error {
	path, err := f.queuePath(projectID)
	if err != nil {
		return err
	}
	records, err := readRecords(path)
	if err != nil {
		return err
	}
	if n >= len(records) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing queue: %w", err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, r := range records[n:] {
		w.Write(r)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing queue: %w", err)
	}
	return nil
}

func (f *fileStore) Len(ctx context.Context, projectID string) (int, error) {
	records, err := f.Range(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (f *fileStore) Projects(context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("listing buffer dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, queueExt) || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, queueExt))
	}
	return ids, nil
}

func (f *fileStore) Close() error { return nil }

func readRecords(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	var records [][]byte
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) > 0 {
			records = append(records, line)
		}
	}
	return records, nil
}
