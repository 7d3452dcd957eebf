package hist_test

import (
	"context"
	"errors"
	"testing"

	"hist-go/internal/core"
	"hist-go/internal/testutil"
)

func TestImportDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)
	projectID := env.InitProject(t)

	png := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0xfe}
	env.FS.AddFile("/work/paper/main.tex", []byte(`\documentclass{article}`))
	env.FS.AddFile("/work/paper/sections/intro.tex", []byte("Intro"))
	env.FS.AddFile("/work/paper/figures/plot.png", png)
	env.FS.AddFile("/work/other/notes.txt", []byte("not imported"))

	n, err := env.Service.ImportDirectory(ctx, projectID, "/work/paper")
	if err != nil {
		t.Fatalf("ImportDirectory() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ImportDirectory() = %d, want 3", n)
	}

	changes, err := env.Service.GetChanges(ctx, projectID, 0)
	if err != nil {
		t.Fatalf("GetChanges() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("len(GetChanges()) = %d, want 1 change for the whole import", len(changes))
	}

	snap, err := env.Service.GetSnapshot(ctx, projectID, 1, core.LoadEager)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	want := []string{"figures/plot.png", "main.tex", "sections/intro.tex"}
	got := snap.Pathnames()
	if len(got) != len(want) {
		t.Fatalf("Pathnames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pathnames() = %v, want %v", got, want)
			break
		}
	}

	if plot := snap.GetFile("figures/plot.png"); plot.IsEditable() {
		t.Error("binary file IsEditable() = true, want false")
	}
	if got := fileContent(t, env.Service, projectID, 1, "figures/plot.png"); got != string(png) {
		t.Errorf("binary content = %q, want %q", got, png)
	}
	if got := fileContent(t, env.Service, projectID, 1, "sections/intro.tex"); got != "Intro" {
		t.Errorf("text content = %q, want %q", got, "Intro")
	}

	blob, err := env.Database.FindBlob(ctx, projectID, core.HashBytes(png))
	if err != nil {
		t.Fatalf("FindBlob() error = %v", err)
	}
	if blob == nil || blob.StringLength != nil || blob.ByteLength != len(png) {
		t.Errorf("FindBlob() = %+v, want binary blob of %d bytes", blob, len(png))
	}
}

func TestImportDirectory_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := testutil.NewEnv(t)
	projectID := env.InitProject(t)
	env.FS.AddFile("/work/main.tex", []byte("x"))
	env.FS.AddDirectory("/empty")

	if _, err := env.Service.ImportDirectory(ctx, "nope", "/work"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ImportDirectory(unknown project) error = %v, want not found", err)
	}
	if _, err := env.Service.ImportDirectory(ctx, projectID, "/work/main.tex"); err == nil {
		t.Error("ImportDirectory(file) error = nil, want error")
	}
	if _, err := env.Service.ImportDirectory(ctx, projectID, "/missing"); err == nil {
		t.Error("ImportDirectory(missing) error = nil, want error")
	}

	n, err := env.Service.ImportDirectory(ctx, projectID, "/empty")
	if err != nil || n != 0 {
		t.Errorf("ImportDirectory(empty) = %d, %v, want 0, nil", n, err)
	}
	latest, err := env.Service.GetLatestChunk(ctx, projectID)
	if err != nil {
		t.Fatalf("GetLatestChunk() error = %v", err)
	}
	if latest.EndVersion() != 0 {
		t.Errorf("EndVersion() after empty import = %d, want 0", latest.EndVersion())
	}
}
