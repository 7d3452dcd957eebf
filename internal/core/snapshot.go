package core

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

var projectVersionPattern = regexp.MustCompile(`^\d+\.\d+$`)

// Snapshot is the state of every file in a project at one version.
type Snapshot struct {
	fileMap        *FileMap
	projectVersion string
	v2DocVersions  V2DocVersions
	timestamp      *time.Time
}

// RawSnapshot is the storage form of a Snapshot.
type RawSnapshot struct {
	Files          map[string]RawFile `json:"files"`
	ProjectVersion string             `json:"projectVersion,omitempty"`
	V2DocVersions  V2DocVersions      `json:"v2DocVersions,omitempty"`
	Timestamp      string             `json:"timestamp,omitempty"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{fileMap: &FileMap{files: make(map[string]*File)}}
}

// NewSnapshotWithFiles returns a snapshot owning fileMap.
func NewSnapshotWithFiles(fileMap *FileMap) *Snapshot {
	return &Snapshot{fileMap: fileMap}
}

// SnapshotFromRaw decodes a stored snapshot.
func SnapshotFromRaw(raw RawSnapshot) (*Snapshot, error) {
	files := make(map[string]*File, len(raw.Files))
	for pathname, rf := range raw.Files {
		f, err := FileFromRaw(rf)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", pathname, err)
		}
		files[pathname] = f
	}
	fm, err := NewFileMap(files)
	if err != nil {
		return nil, err
	}
	return snapshotFromParts(fm, raw)
}

func snapshotFromParts(fm *FileMap, raw RawSnapshot) (*Snapshot, error) {
	s := &Snapshot{fileMap: fm, v2DocVersions: raw.V2DocVersions.Clone()}
	if raw.ProjectVersion != "" {
		if err := s.SetProjectVersion(raw.ProjectVersion); err != nil {
			return nil, err
		}
	}
	if raw.Timestamp != "" {
		ts, err := parseTimestamp(raw.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("snapshot timestamp: %w", err)
		}
		s.timestamp = &ts
	}
	return s, nil
}

func (s *Snapshot) ToRaw() RawSnapshot {
	raw := RawSnapshot{
		Files:          s.fileMap.ToRaw(),
		ProjectVersion: s.projectVersion,
		V2DocVersions:  s.v2DocVersions.Clone(),
	}
	if s.timestamp != nil {
		raw.Timestamp = formatTimestamp(*s.timestamp)
	}
	return raw
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToRaw())
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var aux struct {
		Files          *FileMap      `json:"files"`
		ProjectVersion string        `json:"projectVersion"`
		V2DocVersions  V2DocVersions `json:"v2DocVersions"`
		Timestamp      string        `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	fm := aux.Files
	if fm == nil {
		fm = &FileMap{files: make(map[string]*File)}
	}
	decoded, err := snapshotFromParts(fm, RawSnapshot{
		ProjectVersion: aux.ProjectVersion,
		V2DocVersions:  aux.V2DocVersions,
		Timestamp:      aux.Timestamp,
	})
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

func (s *Snapshot) FileMap() *FileMap             { return s.fileMap }
func (s *Snapshot) GetFile(pathname string) *File { return s.fileMap.GetFile(pathname) }
func (s *Snapshot) Pathnames() []string           { return s.fileMap.Pathnames() }
func (s *Snapshot) CountFiles() int               { return s.fileMap.Count() }
func (s *Snapshot) ProjectVersion() string        { return s.projectVersion }

// SetProjectVersion sets a version of the form "N.N".
func (s *Snapshot) SetProjectVersion(v string) error {
	if !projectVersionPattern.MatchString(v) {
		return fmt.Errorf("invalid project version %q", v)
	}
	s.projectVersion = v
	return nil
}

// V2DocVersions returns a copy of the external document versions, or nil.
func (s *Snapshot) V2DocVersions() V2DocVersions { return s.v2DocVersions.Clone() }

// UpdateV2DocVersions merges versions into the snapshot's.
func (s *Snapshot) UpdateV2DocVersions(versions V2DocVersions) {
	if len(versions) == 0 {
		return
	}
	if s.v2DocVersions == nil {
		s.v2DocVersions = make(V2DocVersions, len(versions))
	}
	for id, v := range versions {
		s.v2DocVersions[id] = v
	}
}

// Timestamp returns the time of the last applied change.
func (s *Snapshot) Timestamp() (time.Time, bool) {
	if s.timestamp == nil {
		return time.Time{}, false
	}
	return *s.timestamp, true
}

func (s *Snapshot) SetTimestamp(t time.Time) {
	t = t.UTC()
	s.timestamp = &t
}

func (s *Snapshot) AddFile(pathname string, file *File) error {
	return s.fileMap.AddFile(pathname, file)
}

func (s *Snapshot) RemoveFile(pathname string) error {
	return s.MoveFile(pathname, "")
}

// MoveFile renames a file, or removes it when newPathname is empty. Doc
// versions follow the file.
func (s *Snapshot) MoveFile(pathname, newPathname string) error {
	if err := s.fileMap.MoveFile(pathname, newPathname); err != nil {
		return err
	}
	s.v2DocVersions.moveFile(pathname, newPathname)
	return nil
}

// EditFile applies op to the file at pathname.
func (s *Snapshot) EditFile(pathname string, op EditOperation) error {
	file := s.fileMap.GetFile(pathname)
	if file == nil {
		return &EditMissingFileError{Pathname: pathname}
	}
	return file.Edit(op)
}

// SetFileMetadata replaces a file's metadata. A missing file is ignored.
func (s *Snapshot) SetFileMetadata(pathname string, metadata map[string]any) {
	if file := s.fileMap.GetFile(pathname); file != nil {
		file.SetMetadata(metadata)
	}
}

// LoadFiles loads every file with bounded concurrency.
func (s *Snapshot) LoadFiles(ctx context.Context, kind LoadKind, store BlobStore, concurrency int) error {
	return s.fileMap.LoadFiles(ctx, kind, store, concurrency)
}

// Store persists every file and returns the raw snapshot with hash
// references.
func (s *Snapshot) Store(ctx context.Context, store BlobStore, concurrency int) (RawSnapshot, error) {
	files, err := s.fileMap.Store(ctx, store, concurrency)
	if err != nil {
		return RawSnapshot{}, err
	}
	raw := s.ToRaw()
	raw.Files = files
	return raw, nil
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		fileMap:        s.fileMap.Clone(),
		projectVersion: s.projectVersion,
		v2DocVersions:  s.v2DocVersions.Clone(),
	}
	if s.timestamp != nil {
		t := *s.timestamp
		c.timestamp = &t
	}
	return c
}
