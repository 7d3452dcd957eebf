package core_test

import (
	"context"
	"errors"
	"testing"

	"hist-go/internal/core"
)

func TestHashBytes(t *testing.T) {
	if got := core.HashBytes(nil); got != core.EmptyFileHash {
		t.Errorf("HashBytes(nil) = %s, want %s", got, core.EmptyFileHash)
	}
	if got := core.HashString("hello"); got != "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0" {
		t.Errorf("HashString(hello) = %s", got)
	}
	if !core.IsValidHash(core.EmptyFileHash) || core.IsValidHash("E69DE29BB2D1D6434B8B29AE775AD8C2E48C5391") {
		t.Error("IsValidHash() accepts only lowercase hex")
	}
}

func TestComputeStringLength(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    *int
	}{
		{"empty", nil, ptr(0)},
		{"ascii", []byte("hello"), ptr(5)},
		{"multibyte", []byte("héllo"), ptr(5)},
		{"nul byte", []byte("a\x00b"), nil},
		{"invalid utf-8", []byte{0xff, 0xfe}, nil},
		{"outside the BMP", []byte("\U0001F600"), nil},
		{"astral character inside text", []byte("ab\U0001F600cd"), nil},
		{"BMP runes are single UTF-16 units", []byte("日本語\u20ac"), ptr(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := core.ComputeStringLength(tt.content)
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("ComputeStringLength(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestNewBlob(t *testing.T) {
	if _, err := core.NewBlob("nothex", 1, nil); err == nil {
		t.Error("NewBlob() with invalid hash error = nil, want error")
	}
	if _, err := core.NewBlob(core.EmptyFileHash, -1, nil); err == nil {
		t.Error("NewBlob() with negative length error = nil, want error")
	}
	blob, err := core.NewBlob(core.EmptyFileHash, 0, ptr(0))
	if err != nil {
		t.Fatalf("NewBlob() error = %v", err)
	}
	if n, ok := blob.StringLength(); !ok || n != 0 {
		t.Errorf("StringLength() = %d, %v, want 0, true", n, ok)
	}
}

func TestMemoryBlobStore(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemoryBlobStore()

	text, err := store.PutString(ctx, "hello")
	if err != nil {
		t.Fatalf("PutString() error = %v", err)
	}
	if _, err := store.PutString(ctx, "hello"); err != nil {
		t.Fatalf("PutString() again error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	got, err := store.GetString(ctx, text.Hash())
	if err != nil || got != "hello" {
		t.Errorf("GetString() = %q, %v, want hello", got, err)
	}

	missing := core.HashString("missing")
	if _, err := store.GetString(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetString(missing) error = %v, want ErrNotFound", err)
	}
	if blob, err := store.GetBlob(ctx, missing); blob != nil || err != nil {
		t.Errorf("GetBlob(missing) = %v, %v, want nil, nil", blob, err)
	}

	blobs, err := store.GetBlobs(ctx, []string{text.Hash(), missing, text.Hash()})
	if err != nil {
		t.Fatalf("GetBlobs() error = %v", err)
	}
	if len(blobs) != 1 || blobs[0].Hash() != text.Hash() {
		t.Errorf("GetBlobs() = %v, want one blob", blobs)
	}

	type payload struct {
		Name string `json:"name"`
	}
	obj, err := store.PutObject(ctx, payload{Name: "x"})
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	var back payload
	if err := store.GetObject(ctx, obj.Hash(), &back); err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if back.Name != "x" {
		t.Errorf("GetObject() = %+v, want name x", back)
	}
}
