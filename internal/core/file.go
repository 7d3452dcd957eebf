package core

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
)

// File is one document of a project: its content representation plus
// optional metadata.
type File struct {
	data     FileData
	metadata map[string]any
}

// RawFile is the storage form of a File.
type RawFile struct {
	RawFileData
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewFile wraps a content representation.
func NewFile(data FileData, metadata map[string]any) *File {
	return &File{data: data, metadata: maps.Clone(metadata)}
}

// FileFromString creates an editable text file.
func FileFromString(content string, metadata map[string]any) *File {
	return NewFile(NewStringFileData(content, nil, nil), metadata)
}

// FileFromHash creates a file that refers to stored content.
func FileFromHash(hash, rangesHash string, metadata map[string]any) *File {
	return NewFile(NewHashFileData(hash, rangesHash), metadata)
}

// FileFromHollow creates a file that records only lengths. A nil
// stringLength means binary content.
func FileFromHollow(byteLength int, stringLength *int) *File {
	if stringLength != nil {
		return NewFile(NewHollowStringFileData(*stringLength), nil)
	}
	return NewFile(NewHollowBinaryFileData(byteLength), nil)
}

// FileFromBlob creates a lazily loadable file for stored content.
func FileFromBlob(blob *Blob, metadata map[string]any) *File {
	if n, ok := blob.StringLength(); ok {
		return NewFile(NewLazyStringFileData(blob.Hash(), "", n), metadata)
	}
	return NewFile(NewBinaryFileData(blob.Hash(), blob.ByteLength()), metadata)
}

// FileFromRaw decodes a stored file record.
func FileFromRaw(raw RawFile) (*File, error) {
	data, err := FileDataFromRaw(raw.RawFileData)
	if err != nil {
		return nil, err
	}
	return NewFile(data, raw.Metadata), nil
}

func (f *File) UnmarshalJSON(b []byte) error {
	var raw RawFile
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	decoded, err := FileFromRaw(raw)
	if err != nil {
		return err
	}
	*f = *decoded
	return nil
}

func (f *File) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.ToRaw())
}

func (f *File) ToRaw() RawFile {
	raw := RawFile{RawFileData: f.data.ToRaw()}
	if len(f.metadata) > 0 {
		raw.Metadata = maps.Clone(f.metadata)
	}
	return raw
}

func (f *File) Data() FileData            { return f.data }
func (f *File) Hash() string              { return f.data.Hash() }
func (f *File) RangesHash() string        { return f.data.RangesHash() }
func (f *File) ByteLength() (int, bool)   { return f.data.ByteLength() }
func (f *File) StringLength() (int, bool) { return f.data.StringLength() }
func (f *File) IsEditable() bool          { return f.data.IsEditable() }
func (f *File) Metadata() map[string]any  { return maps.Clone(f.metadata) }

func (f *File) SetMetadata(m map[string]any) { f.metadata = maps.Clone(m) }

// Content returns the text of an eagerly loaded file.
func (f *File) Content() (string, bool) {
	if sd, ok := f.data.(*StringFileData); ok {
		return sd.content, true
	}
	return "", false
}

// Comments returns the comments of an eagerly loaded file, or nil.
func (f *File) Comments() *CommentList {
	if sd, ok := f.data.(*StringFileData); ok {
		return sd.comments
	}
	return nil
}

// TrackedChanges returns the tracked changes of an eagerly loaded file, or
// nil.
func (f *File) TrackedChanges() *TrackedChangeList {
	if sd, ok := f.data.(*StringFileData); ok {
		return sd.trackedChanges
	}
	return nil
}

// Edit applies an edit operation to the file's content.
func (f *File) Edit(op EditOperation) error {
	return f.data.Edit(op)
}

// Load replaces the content representation with the one for kind.
func (f *File) Load(ctx context.Context, kind LoadKind, store BlobStore) error {
	data, err := f.data.Load(ctx, kind, store)
	if err != nil {
		return fmt.Errorf("loading file: %w", err)
	}
	f.data = data
	return nil
}

// Store persists the content and replaces the representation with a hash
// reference. The returned record includes the metadata.
func (f *File) Store(ctx context.Context, store BlobStore) (RawFile, error) {
	rawData, err := f.data.Store(ctx, store)
	if err != nil {
		return RawFile{}, err
	}
	f.data = NewHashFileData(rawData.Hash, rawData.RangesHash)
	raw := RawFile{RawFileData: rawData}
	if len(f.metadata) > 0 {
		raw.Metadata = maps.Clone(f.metadata)
	}
	return raw, nil
}

// Clone returns a deep copy of the file.
func (f *File) Clone() *File {
	return &File{data: f.data.Clone(), metadata: maps.Clone(f.metadata)}
}
