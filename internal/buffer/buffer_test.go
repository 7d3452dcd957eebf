package buffer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hist-go/internal/core"
)

var ts = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// addFileChange returns a change adding a text file named after n.
func addFileChange(n int) *core.Change {
	op := core.NewAddFileOperation(fmt.Sprintf("file%d.tex", n), core.FileFromString(fmt.Sprintf("content %d", n), nil))
	return core.NewChange([]core.Operation{op}, ts.Add(time.Duration(n)*time.Second), nil)
}

func changes(from, to int) []*core.Change {
	var out []*core.Change
	for i := from; i < to; i++ {
		out = append(out, addFileChange(i))
	}
	return out
}

// pathnames extracts the pathname added by each change.
func pathnames(t *testing.T, cs []*core.Change) []string {
	t.Helper()
	var out []string
	for _, c := range cs {
		ops := c.Operations()
		if len(ops) != 1 {
			t.Fatalf("change has %d operations, want 1", len(ops))
		}
		add, ok := ops[0].(*core.AddFileOperation)
		if !ok {
			t.Fatalf("operation is %T, want *core.AddFileOperation", ops[0])
		}
		out = append(out, add.Pathname())
	}
	return out
}

// testBuffers returns one fresh buffer per backend, each limited to
// maxChanges per project.
func testBuffers(t *testing.T, maxChanges int) map[string]*Buffer {
	t.Helper()
	buffers := map[string]*Buffer{
		"memory": NewMemoryChangeBuffer(maxChanges),
	}

	fsBuf, err := NewFileSystemChangeBuffer(filepath.Join(t.TempDir(), "buffer"), maxChanges)
	if err != nil {
		t.Fatalf("NewFileSystemChangeBuffer() error = %v", err)
	}
	buffers["filesystem"] = fsBuf

	badgerBuf, err := NewBadgerChangeBuffer("", maxChanges)
	if err != nil {
		t.Fatalf("NewBadgerChangeBuffer() error = %v", err)
	}
	buffers["badger"] = badgerBuf

	if addr := os.Getenv("HIST_TEST_REDIS_ADDR"); addr != "" {
		prefix := fmt.Sprintf("hist-test:%s:%d:", t.Name(), time.Now().UnixNano())
		redisBuf, err := NewRedisChangeBuffer(context.Background(), RedisOptions{Addr: addr, KeyPrefix: prefix}, maxChanges)
		if err != nil {
			t.Fatalf("NewRedisChangeBuffer() error = %v", err)
		}
		buffers["redis"] = redisBuf
	}

	t.Cleanup(func() {
		for _, b := range buffers {
			b.Close()
		}
	})
	return buffers
}

func TestBuffer_QueueAndChanges(t *testing.T) {
	for name, b := range testBuffers(t, 0) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.Queue(ctx, "p1", changes(0, 2)); err != nil {
				t.Fatalf("Queue() error = %v", err)
			}
			if err := b.Queue(ctx, "p1", changes(2, 3)); err != nil {
				t.Fatalf("Queue() error = %v", err)
			}
			if err := b.Queue(ctx, "p2", changes(9, 10)); err != nil {
				t.Fatalf("Queue() error = %v", err)
			}

			got, err := b.Changes(ctx, "p1")
			if err != nil {
				t.Fatalf("Changes() error = %v", err)
			}
			want := []string{"file0.tex", "file1.tex", "file2.tex"}
			if fmt.Sprint(pathnames(t, got)) != fmt.Sprint(want) {
				t.Errorf("Changes() pathnames = %v, want %v", pathnames(t, got), want)
			}
			if !got[1].Timestamp().Equal(ts.Add(time.Second)) {
				t.Errorf("Changes()[1].Timestamp() = %v, want %v", got[1].Timestamp(), ts.Add(time.Second))
			}

			n, err := b.Count(ctx, "p1")
			if err != nil || n != 3 {
				t.Errorf("Count(p1) = %d, %v, want 3, nil", n, err)
			}
			n, err = b.Count(ctx, "none")
			if err != nil || n != 0 {
				t.Errorf("Count(none) = %d, %v, want 0, nil", n, err)
			}

			projects, err := b.Projects(ctx)
			if err != nil {
				t.Fatalf("Projects() error = %v", err)
			}
			if fmt.Sprint(projects) != "[p1 p2]" {
				t.Errorf("Projects() = %v, want [p1 p2]", projects)
			}
		})
	}
}

func TestBuffer_QueuedContentSurvives(t *testing.T) {
	for name, b := range testBuffers(t, 0) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.Queue(ctx, "p1", changes(7, 8)); err != nil {
				t.Fatalf("Queue() error = %v", err)
			}
			got, err := b.Changes(ctx, "p1")
			if err != nil {
				t.Fatalf("Changes() error = %v", err)
			}

			snapshot := core.NewSnapshot()
			if err := got[0].ApplyTo(snapshot, core.ApplyOptions{Strict: true}); err != nil {
				t.Fatalf("ApplyTo() error = %v", err)
			}
			content, ok := snapshot.GetFile("file7.tex").Content()
			if !ok || content != "content 7" {
				t.Errorf("Content() = %q, %v, want %q, true", content, ok, "content 7")
			}
		})
	}
}

func TestBuffer_Limit(t *testing.T) {
	for name, b := range testBuffers(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.Queue(ctx, "p1", changes(0, 2)); err != nil {
				t.Fatalf("Queue() error = %v", err)
			}
			err := b.Queue(ctx, "p1", changes(2, 4))
			if !errors.Is(err, ErrBufferFull) {
				t.Fatalf("Queue() past limit error = %v, want ErrBufferFull", err)
			}
			n, _ := b.Count(ctx, "p1")
			if n != 2 {
				t.Errorf("Count() after rejected queue = %d, want 2", n)
			}
			if err := b.Queue(ctx, "p2", changes(0, 3)); err != nil {
				t.Errorf("Queue() for other project error = %v", err)
			}
		})
	}
}

func TestBuffer_Flush(t *testing.T) {
	for name, b := range testBuffers(t, 0) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.Queue(ctx, "p1", changes(0, 3)); err != nil {
				t.Fatalf("Queue() error = %v", err)
			}

			failure := errors.New("vault down")
			n, err := b.Flush(ctx, "p1", func([]*core.Change) error { return failure })
			if !errors.Is(err, failure) || n != 0 {
				t.Fatalf("Flush() = %d, %v, want 0, %v", n, err, failure)
			}
			if count, _ := b.Count(ctx, "p1"); count != 3 {
				t.Fatalf("Count() after failed flush = %d, want 3", count)
			}

			var flushed []*core.Change
			n, err = b.Flush(ctx, "p1", func(cs []*core.Change) error {
				flushed = cs
				return nil
			})
			if err != nil || n != 3 {
				t.Fatalf("Flush() = %d, %v, want 3, nil", n, err)
			}
			if fmt.Sprint(pathnames(t, flushed)) != "[file0.tex file1.tex file2.tex]" {
				t.Errorf("flushed pathnames = %v", pathnames(t, flushed))
			}
			if count, _ := b.Count(ctx, "p1"); count != 0 {
				t.Errorf("Count() after flush = %d, want 0", count)
			}
			projects, _ := b.Projects(ctx)
			if len(projects) != 0 {
				t.Errorf("Projects() after flush = %v, want none", projects)
			}

			n, err = b.Flush(ctx, "p1", func([]*core.Change) error {
				t.Error("flush func called for empty queue")
				return nil
			})
			if err != nil || n != 0 {
				t.Errorf("Flush() of empty queue = %d, %v, want 0, nil", n, err)
			}
		})
	}
}

func TestBuffer_FlushKeepsChangesQueuedDuringFlush(t *testing.T) {
	for name, b := range testBuffers(t, 0) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.Queue(ctx, "p1", changes(0, 2)); err != nil {
				t.Fatalf("Queue() error = %v", err)
			}

			n, err := b.Flush(ctx, "p1", func([]*core.Change) error {
				return b.Queue(ctx, "p1", changes(2, 3))
			})
			if err != nil || n != 2 {
				t.Fatalf("Flush() = %d, %v, want 2, nil", n, err)
			}

			got, err := b.Changes(ctx, "p1")
			if err != nil {
				t.Fatalf("Changes() error = %v", err)
			}
			if fmt.Sprint(pathnames(t, got)) != "[file2.tex]" {
				t.Errorf("Changes() after flush = %v, want [file2.tex]", pathnames(t, got))
			}
		})
	}
}

func TestBuffer_ConcurrentQueue(t *testing.T) {
	for name, b := range testBuffers(t, 0) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := range 10 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := b.Queue(ctx, "p1", changes(i, i+1)); err != nil {
						t.Errorf("Queue() error = %v", err)
					}
				}()
			}
			wg.Wait()

			if n, _ := b.Count(ctx, "p1"); n != 10 {
				t.Errorf("Count() = %d, want 10", n)
			}
		})
	}
}

func TestFileSystemBuffer_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := NewFileSystemChangeBuffer(dir, 0)
	if err != nil {
		t.Fatalf("NewFileSystemChangeBuffer() error = %v", err)
	}
	if err := b.Queue(ctx, "p1", changes(0, 2)); err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	b.Close()

	reopened, err := NewFileSystemChangeBuffer(dir, 0)
	if err != nil {
		t.Fatalf("NewFileSystemChangeBuffer() error = %v", err)
	}
	if n, _ := reopened.Count(ctx, "p1"); n != 2 {
		t.Errorf("Count() after reopen = %d, want 2", n)
	}
	if err := reopened.Queue(ctx, "../escape", changes(0, 1)); err == nil {
		t.Error("Queue() with path-like project id expected error")
	}
}

func TestBadgerBuffer_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := NewBadgerChangeBuffer(dir, 0)
	if err != nil {
		t.Fatalf("NewBadgerChangeBuffer() error = %v", err)
	}
	if err := b.Queue(ctx, "p1", changes(0, 12)); err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if _, err := b.Flush(ctx, "p1", func([]*core.Change) error { return nil }); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := b.Queue(ctx, "p1", changes(12, 14)); err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewBadgerChangeBuffer(dir, 0)
	if err != nil {
		t.Fatalf("NewBadgerChangeBuffer() error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Changes(ctx, "p1")
	if err != nil {
		t.Fatalf("Changes() error = %v", err)
	}
	if fmt.Sprint(pathnames(t, got)) != "[file12.tex file13.tex]" {
		t.Errorf("Changes() after reopen = %v, want [file12.tex file13.tex]", pathnames(t, got))
	}
}
