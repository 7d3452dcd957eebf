package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"hist-go/internal/hist"
)

// IgnoreFileName is read from the root of an imported directory.
const IgnoreFileName = ".histignore"

// OSFilesystemManager implements hist.FilesystemManager on the real
// filesystem.
type OSFilesystemManager struct {
	ignore []string // patterns applied to every FindFiles call
}

var _ hist.FilesystemManager = (*OSFilesystemManager)(nil)

// NewOSFilesystemManager creates a manager that skips files matching the
// given patterns in addition to those listed in a directory's ignore file.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// Resolve makes rawPath absolute and accepts only regular files and
// directories.
func (m *OSFilesystemManager) Resolve(rawPath string) (*hist.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if err := checkMode(absPath, info.Mode()); err != nil {
		return nil, err
	}
	return hist.NewPath(absPath, info.IsDir(), info), nil
}

func checkMode(path string, mode fs.FileMode) error {
	switch {
	case mode&fs.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", path)
	case mode&fs.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&fs.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&fs.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	}
	return nil
}

func (m *OSFilesystemManager) Open(path *hist.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path)
	}
	return os.Open(path.String())
}

func (m *OSFilesystemManager) Stat(path *hist.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// FindFiles walks root and returns its regular files sorted by path.
// Ignored directories are not descended into. Symlinks and special files
// are skipped.
func (m *OSFilesystemManager) FindFiles(root *hist.Path) ([]*hist.Path, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}
	fromFile, err := ParseIgnoreFile(filepath.Join(root.String(), IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := append(append([]string{}, m.ignore...), fromFile...)
	matcher := NewIgnoreMatcher(patterns)

	var paths []*hist.Path
	err = filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root.String() {
			return nil
		}
		rel, err := filepath.Rel(root.String(), p)
		if err != nil {
			return err
		}
		if matcher.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		paths = append(paths, hist.NewPath(p, false, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths, nil
}
