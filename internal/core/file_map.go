package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FileMap maps clean pathnames to files. No pathname is a directory prefix
// of another. Mutations check every invariant before changing the map.
type FileMap struct {
	files map[string]*File
}

// NewFileMap validates the pathnames and creates a map that owns files.
func NewFileMap(files map[string]*File) (*FileMap, error) {
	if err := checkPathnames(slices.Collect(maps.Keys(files))); err != nil {
		return nil, err
	}
	m := &FileMap{files: make(map[string]*File, len(files))}
	maps.Copy(m.files, files)
	return m, nil
}

// checkPathnames validates a complete set of pathnames.
func checkPathnames(pathnames []string) error {
	sorted := slices.Clone(pathnames)
	slices.Sort(sorted)
	var dups []string
	for i, p := range sorted {
		if !IsCleanPathname(p) {
			return &BadPathnameError{Pathname: p}
		}
		if i > 0 && sorted[i-1] == p {
			dups = append(dups, p)
		}
	}
	if len(dups) > 0 {
		return &NonUniquePathnameError{Pathnames: slices.Compact(dups)}
	}
	// In sorted order a directory prefix sorts before its children, though
	// not always immediately before them.
	for i, p := range sorted {
		for _, q := range sorted[i+1:] {
			if pathnamesConflict(p, q) {
				return &PathnameConflictError{Pathname: q, Conflict: p}
			}
		}
	}
	return nil
}

// checkNewPathname validates adding pathname to the map, ignoring the entry
// at ignore.
func (m *FileMap) checkNewPathname(pathname, ignore string) error {
	if !IsCleanPathname(pathname) {
		return &BadPathnameError{Pathname: pathname}
	}
	for existing := range m.files {
		if existing == ignore || existing == pathname {
			continue
		}
		if pathnamesConflict(pathname, existing) {
			return &PathnameConflictError{Pathname: pathname, Conflict: existing}
		}
	}
	return nil
}

// AddFile adds file at pathname, replacing any file already there.
func (m *FileMap) AddFile(pathname string, file *File) error {
	if err := m.checkNewPathname(pathname, ""); err != nil {
		return err
	}
	m.files[pathname] = file
	return nil
}

// RemoveFile deletes the file at pathname.
func (m *FileMap) RemoveFile(pathname string) error {
	if _, ok := m.files[pathname]; !ok {
		return &FileNotFoundError{Pathname: pathname}
	}
	delete(m.files, pathname)
	return nil
}

// MoveFile renames a file. An empty newPathname removes the file and moving
// a pathname onto itself does nothing, even when no file is there. A file
// already at newPathname is replaced.
func (m *FileMap) MoveFile(pathname, newPathname string) error {
	if newPathname == pathname {
		return nil
	}
	file, ok := m.files[pathname]
	if !ok {
		return &FileNotFoundError{Pathname: pathname}
	}
	if newPathname == "" {
		delete(m.files, pathname)
		return nil
	}
	if err := m.checkNewPathname(newPathname, pathname); err != nil {
		return err
	}
	delete(m.files, pathname)
	m.files[newPathname] = file
	return nil
}

// GetFile returns the file at pathname, or nil.
func (m *FileMap) GetFile(pathname string) *File {
	return m.files[pathname]
}

// Pathnames returns the pathnames in sorted order.
func (m *FileMap) Pathnames() []string {
	return slices.Sorted(maps.Keys(m.files))
}

func (m *FileMap) Count() int { return len(m.files) }

// Map returns a shallow copy of the underlying map.
func (m *FileMap) Map() map[string]*File {
	return maps.Clone(m.files)
}

// Clone returns a deep copy of the map and its files.
func (m *FileMap) Clone() *FileMap {
	out := &FileMap{files: make(map[string]*File, len(m.files))}
	for p, f := range m.files {
		out.files[p] = f.Clone()
	}
	return out
}

// LoadFiles loads every file, running at most concurrency loads at once.
func (m *FileMap) LoadFiles(ctx context.Context, kind LoadKind, store BlobStore, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, pathname := range m.Pathnames() {
		file := m.files[pathname]
		g.Go(func() error {
			if err := file.Load(ctx, kind, store); err != nil {
				return fmt.Errorf("%s: %w", pathname, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Store persists every file, running at most concurrency stores at once.
func (m *FileMap) Store(ctx context.Context, store BlobStore, concurrency int) (map[string]RawFile, error) {
	var mu sync.Mutex
	out := make(map[string]RawFile, len(m.files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, pathname := range m.Pathnames() {
		file := m.files[pathname]
		g.Go(func() error {
			raw, err := file.Store(ctx, store)
			if err != nil {
				return fmt.Errorf("%s: %w", pathname, err)
			}
			mu.Lock()
			out[pathname] = raw
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ToRaw encodes every file.
func (m *FileMap) ToRaw() map[string]RawFile {
	out := make(map[string]RawFile, len(m.files))
	for p, f := range m.files {
		out[p] = f.ToRaw()
	}
	return out
}

func (m *FileMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToRaw())
}

// UnmarshalJSON decodes a files object. Keys are read in order so that a
// repeated pathname is reported rather than silently overwritten.
func (m *FileMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("files must be an object, got %v", tok)
	}
	var pathnames []string
	files := make(map[string]*File)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		pathname := tok.(string)
		var file File
		if err := dec.Decode(&file); err != nil {
			return fmt.Errorf("file %q: %w", pathname, err)
		}
		pathnames = append(pathnames, pathname)
		files[pathname] = &file
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if err := checkPathnames(pathnames); err != nil {
		return err
	}
	m.files = files
	return nil
}
