package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"hist-go/internal/hist"
)

// MockFile is a file or directory in a MockFilesystemManager.
type MockFile struct {
	Content     []byte
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Paths are
// absolute and slash-separated; parent directories are created implicitly.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile
}

var _ hist.FilesystemManager = (*MockFilesystemManager)(nil)

func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{files: map[string]*MockFile{"/": {IsDirectory: true}}}
}

// AddFile adds a file and any missing parent directories.
func (m *MockFilesystemManager) AddFile(p string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.addParents(p)
	m.files[p] = &MockFile{Content: content, ModTime: time.Unix(0, 0).UTC()}
}

// AddDirectory adds a directory and any missing parents.
func (m *MockFilesystemManager) AddDirectory(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.addParents(p)
	m.files[p] = &MockFile{IsDirectory: true}
}

func (m *MockFilesystemManager) addParents(p string) {
	for dir := path.Dir(p); dir != "/" && dir != "."; dir = path.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{IsDirectory: true}
		}
	}
}

func (m *MockFilesystemManager) lookup(p string) (*MockFile, fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[p]
	if !ok {
		return nil, nil, fmt.Errorf("file not found: %s", p)
	}
	return file, &mockFileInfo{name: path.Base(p), file: file}, nil
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*hist.Path, error) {
	abs := path.Clean(rawPath)
	if !path.IsAbs(abs) {
		abs = path.Join("/", abs)
	}
	file, info, err := m.lookup(abs)
	if err != nil {
		return nil, err
	}
	return hist.NewPath(abs, file.IsDirectory, info), nil
}

func (m *MockFilesystemManager) Open(p *hist.Path) (io.ReadCloser, error) {
	file, _, err := m.lookup(p.String())
	if err != nil {
		return nil, err
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", p)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(p *hist.Path) (fs.FileInfo, error) {
	_, info, err := m.lookup(p.String())
	return info, err
}

// FindFiles returns every file below root in path order. It applies no
// ignore rules.
func (m *MockFilesystemManager) FindFiles(root *hist.Path) ([]*hist.Path, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}
	prefix := strings.TrimSuffix(root.String(), "/") + "/"

	m.mu.Lock()
	var names []string
	for name, file := range m.files {
		if !file.IsDirectory && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.Unlock()
	sort.Strings(names)

	paths := make([]*hist.Path, 0, len(names))
	for _, name := range names {
		_, info, err := m.lookup(name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, hist.NewPath(name, false, info))
	}
	return paths, nil
}

type mockFileInfo struct {
	name string
	file *MockFile
}

func (i *mockFileInfo) Name() string       { return i.name }
func (i *mockFileInfo) Size() int64        { return int64(len(i.file.Content)) }
func (i *mockFileInfo) ModTime() time.Time { return i.file.ModTime }
func (i *mockFileInfo) IsDir() bool        { return i.file.IsDirectory }
func (i *mockFileInfo) Sys() any           { return i.file }

func (i *mockFileInfo) Mode() fs.FileMode {
	if i.file.IsDirectory {
		return fs.ModeDir | 0755
	}
	return 0644
}
