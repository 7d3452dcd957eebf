package core_test

import (
	"context"
	"encoding/json"
	"testing"

	"hist-go/internal/core"
)

func TestChunk_Versions(t *testing.T) {
	if _, err := core.NewChunk(core.NewHistory(core.NewSnapshot(), nil), -1); err == nil {
		t.Error("NewChunk(-1) error = nil, want error")
	}

	chunk, err := core.NewChunk(core.NewHistory(core.NewSnapshot(), nil), 10)
	if err != nil {
		t.Fatalf("NewChunk() error = %v", err)
	}
	if chunk.EndVersion() != 10 {
		t.Errorf("EndVersion() = %d, want 10", chunk.EndVersion())
	}
	if _, ok := chunk.EndTimestamp(); ok {
		t.Error("EndTimestamp() of an empty chunk should be unset")
	}

	chunk.PushChanges(
		core.NewChange([]core.Operation{core.NewAddFileOperation("a.tex", core.FileFromString("", nil))}, t1, nil),
		core.NewChange([]core.Operation{insertAt("a.tex", 0, 0, "x")}, t2, nil),
	)
	if chunk.EndVersion() != 12 {
		t.Errorf("EndVersion() = %d, want 12", chunk.EndVersion())
	}
	if ts, ok := chunk.EndTimestamp(); !ok || !ts.Equal(t2) {
		t.Errorf("EndTimestamp() = %v, %v, want %v", ts, ok, t2)
	}
}

func TestChunk_JSON(t *testing.T) {
	in := `{"history":{"snapshot":{"files":{"a.tex":{"content":"hi"}},"timestamp":"2024-01-01T00:00:00.000Z"},"changes":[{"operations":[{"pathname":"a.tex","textOperation":[2,"!"]}],"timestamp":"2024-01-02T00:00:00.000Z","authors":[3]}]},"startVersion":4}`
	var chunk core.Chunk
	if err := json.Unmarshal([]byte(in), &chunk); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if chunk.StartVersion() != 4 || chunk.EndVersion() != 5 {
		t.Errorf("versions = %d..%d, want 4..5", chunk.StartVersion(), chunk.EndVersion())
	}
	got, err := json.Marshal(&chunk)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(got) != in {
		t.Errorf("round trip = %s\nwant %s", got, in)
	}
}

func TestChunk_StoreAndReplay(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemoryBlobStore()

	snapshot := helloSnapshot(t)
	chunk, err := core.NewChunk(core.NewHistory(snapshot, nil), 0)
	if err != nil {
		t.Fatalf("NewChunk() error = %v", err)
	}
	chunk.PushChanges(
		core.NewChange([]core.Operation{insertAt("a.tex", 5, 5, " world")}, t1, nil),
		core.NewChange([]core.Operation{core.NewAddFileOperation("b.tex", core.FileFromString("second", nil))}, t2, nil),
	)

	raw, err := chunk.Store(ctx, store, 4)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if raw.History.Snapshot.Files["a.tex"].Content != nil {
		t.Error("stored snapshot should refer to content by hash")
	}

	restored, err := core.ChunkFromRaw(raw)
	if err != nil {
		t.Fatalf("ChunkFromRaw() error = %v", err)
	}
	if err := restored.LoadFiles(ctx, core.LoadEager, store, 4); err != nil {
		t.Fatalf("LoadFiles() error = %v", err)
	}

	s := restored.Snapshot()
	for _, c := range restored.Changes() {
		if err := c.ApplyTo(s, core.ApplyOptions{Strict: true}); err != nil {
			t.Fatalf("ApplyTo() error = %v", err)
		}
	}
	if got := contentOf(t, s, "a.tex"); got != "hello world" {
		t.Errorf("a.tex = %q, want %q", got, "hello world")
	}
	if got := contentOf(t, s, "b.tex"); got != "second" {
		t.Errorf("b.tex = %q, want %q", got, "second")
	}
}

func TestSnapshot_JSON(t *testing.T) {
	in := `{"files":{"a.tex":{"content":"x","comments":[{"id":"c1","ranges":[{"pos":0,"length":1}]}],"metadata":{"main":true}},"b.bin":{"hash":"` +
		core.EmptyFileHash + `","byteLength":0}},"projectVersion":"3.1","v2DocVersions":{"d1":{"pathname":"a.tex","v":9}}}`
	var s core.Snapshot
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s.CountFiles() != 2 || s.ProjectVersion() != "3.1" {
		t.Errorf("CountFiles() = %d, ProjectVersion() = %q", s.CountFiles(), s.ProjectVersion())
	}
	got, err := json.Marshal(&s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(got) != in {
		t.Errorf("round trip = %s\nwant %s", got, in)
	}

	clone := s.Clone()
	if err := clone.RemoveFile("a.tex"); err != nil {
		t.Fatalf("RemoveFile() error = %v", err)
	}
	if s.GetFile("a.tex") == nil {
		t.Error("removing from a clone changed the original")
	}
	if _, ok := clone.V2DocVersions()["d1"]; ok {
		t.Error("doc versions of a removed file should be dropped")
	}
}
