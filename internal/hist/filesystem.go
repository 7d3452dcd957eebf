package hist

import (
	"io"
	"io/fs"
)

// FilesystemManager abstracts file access so directory imports can be
// tested without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object. It resolves
	// the path to an absolute path, stats it, and rejects anything that is
	// not a regular file or directory.
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path *Path) (fs.FileInfo, error)

	// FindFiles returns every regular file below root, recursively, except
	// those matched by the ignore rules.
	FindFiles(root *Path) ([]*Path, error)
}
