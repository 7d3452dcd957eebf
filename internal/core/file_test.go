package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"hist-go/internal/core"
)

func TestFile_HashOnlyUntilLoaded(t *testing.T) {
	ctx := context.Background()
	file := core.FileFromHash(core.EmptyFileHash, "", nil)

	data, err := json.Marshal(file)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"hash":"` + core.EmptyFileHash + `"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var decoded core.File
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Hash() != core.EmptyFileHash {
		t.Errorf("Hash() = %s, want %s", decoded.Hash(), core.EmptyFileHash)
	}
	if decoded.IsEditable() {
		t.Error("hash-only file should not be editable")
	}
	if _, ok := decoded.Content(); ok {
		t.Error("hash-only file should have no content")
	}
	if _, ok := decoded.Data().(*core.HashFileData); !ok {
		t.Fatalf("Data() = %T, want *HashFileData", decoded.Data())
	}

	store := core.NewMemoryBlobStore()
	if _, err := store.PutString(ctx, ""); err != nil {
		t.Fatalf("PutString() error = %v", err)
	}
	if err := decoded.Load(ctx, core.LoadEager, store); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	content, ok := decoded.Content()
	if !ok || content != "" {
		t.Errorf("Content() = %q, %v, want empty, true", content, ok)
	}
	if decoded.Hash() != core.EmptyFileHash {
		t.Errorf("loaded Hash() = %s, want %s", decoded.Hash(), core.EmptyFileHash)
	}
}

func TestFile_LoadMissingBlob(t *testing.T) {
	file := core.FileFromHash(core.HashString("gone"), "", nil)
	err := file.Load(context.Background(), core.LoadEager, core.NewMemoryBlobStore())
	var notFound *core.BlobNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Load() error = %v, want *BlobNotFoundError", err)
	}
}

func TestFile_LoadKinds(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemoryBlobStore()
	text, _ := store.PutString(ctx, "hello")
	binary, _ := store.PutString(ctx, "\x00\x01")

	tests := []struct {
		name     string
		hash     string
		kind     core.LoadKind
		wantType string
		editable bool
	}{
		{"text eager", text.Hash(), core.LoadEager, "*core.StringFileData", true},
		{"text lazy", text.Hash(), core.LoadLazy, "*core.LazyStringFileData", true},
		{"text hollow", text.Hash(), core.LoadHollow, "*core.HollowStringFileData", true},
		{"binary eager", binary.Hash(), core.LoadEager, "*core.BinaryFileData", false},
		{"binary hollow", binary.Hash(), core.LoadHollow, "*core.HollowBinaryFileData", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			file := core.FileFromHash(tt.hash, "", nil)
			if err := file.Load(ctx, tt.kind, store); err != nil {
				t.Fatalf("Load(%s) error = %v", tt.kind, err)
			}
			if got := typeName(file.Data()); got != tt.wantType {
				t.Errorf("Data() = %s, want %s", got, tt.wantType)
			}
			if file.IsEditable() != tt.editable {
				t.Errorf("IsEditable() = %v, want %v", file.IsEditable(), tt.editable)
			}
		})
	}
}

func TestFile_LazyEditsApplyOnLoad(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemoryBlobStore()
	blob, _ := store.PutString(ctx, "hello")

	file := core.FileFromBlob(blob, nil)
	if err := file.Edit(core.NewTextOperation().Retain(5).Insert("!")); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if file.Hash() != "" {
		t.Errorf("Hash() with queued edits = %q, want empty", file.Hash())
	}
	if n, _ := file.StringLength(); n != 6 {
		t.Errorf("StringLength() = %d, want 6", n)
	}

	if err := file.Edit(core.NewTextOperation().Retain(3)); err == nil {
		t.Error("Edit() with wrong base length error = nil, want error")
	}

	if err := file.Load(ctx, core.LoadEager, store); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, _ := file.Content(); got != "hello!" {
		t.Errorf("Content() = %q, want %q", got, "hello!")
	}
}

func TestFile_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemoryBlobStore()
	file := core.NewFile(core.NewStringFileData(
		"hello world",
		core.NewCommentList(core.NewComment("c1", []core.Range{rng(0, 5)}, false)),
		core.NewTrackedChangeList(core.TrackedChange{Range: rng(6, 5), Tracking: insertBy("u1", t1)}),
	), map[string]any{"main": true})
	before := fileDataJSON(t, file.Data().(*core.StringFileData))

	raw, err := file.Store(ctx, store)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if raw.Hash != core.HashString("hello world") || raw.RangesHash == "" {
		t.Errorf("Store() = %+v, want content and ranges hashes", raw.RawFileData)
	}
	if raw.Metadata["main"] != true {
		t.Errorf("Store() metadata = %v, want main", raw.Metadata)
	}
	if _, ok := file.Data().(*core.HashFileData); !ok {
		t.Errorf("Data() after Store = %T, want *HashFileData", file.Data())
	}

	restored, err := core.FileFromRaw(raw)
	if err != nil {
		t.Fatalf("FileFromRaw() error = %v", err)
	}
	if err := restored.Load(ctx, core.LoadEager, store); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if after := fileDataJSON(t, restored.Data().(*core.StringFileData)); after != before {
		t.Errorf("restored = %s, want %s", after, before)
	}
}

func TestFile_NotEditable(t *testing.T) {
	file := core.FileFromHollow(10, nil)
	var notEditable *core.NotEditableError
	if err := file.Edit(core.NewTextOperation().Retain(10)); !errors.As(err, &notEditable) {
		t.Errorf("Edit() error = %v, want *NotEditableError", err)
	}

	hollow := core.FileFromHollow(0, ptr(4))
	if err := hollow.Edit(core.NewTextOperation().Retain(4).Insert("ab")); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if n, _ := hollow.StringLength(); n != 6 {
		t.Errorf("StringLength() = %d, want 6", n)
	}
}
