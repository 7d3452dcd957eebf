package hist

import (
	"io/fs"
	"path/filepath"
)

// Path is a validated filesystem path with cached stat info. Paths are
// created by FilesystemManager.Resolve and FindFiles.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components. It is meant for
// FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, isDir: isDir, info: info}
}

func (p *Path) String() string    { return p.absPath }
func (p *Path) IsDir() bool       { return p.isDir }
func (p *Path) Info() fs.FileInfo { return p.info }

// Rel returns p relative to root with forward slashes, the form used for
// project pathnames.
func (p *Path) Rel(root *Path) (string, error) {
	rel, err := filepath.Rel(root.absPath, p.absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
