package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
)

// Operation is one step of a Change. It is one of *AddFileOperation,
// *MoveFileOperation, *EditFileOperation, *SetFileMetadataOperation or
// *NoOperation.
type Operation interface {
	// ApplyTo changes s. On error s is unchanged.
	ApplyTo(s *Snapshot) error
	CanBeComposedWith(other Operation) bool
	// ToRaw returns the JSON object form of the operation.
	ToRaw() map[string]any
	// Store persists any content the operation carries and returns its raw
	// form with hash references.
	Store(ctx context.Context, store BlobStore) (map[string]any, error)
	// LoadFiles loads any files the operation carries.
	LoadFiles(ctx context.Context, kind LoadKind, store BlobStore) error

	composeOp(other Operation) (Operation, error)
}

// ComposeOperations combines a followed by b into one operation.
func ComposeOperations(a, b Operation) (Operation, error) {
	if !a.CanBeComposedWith(b) {
		return nil, fmt.Errorf("cannot compose %T with %T", a, b)
	}
	return a.composeOp(b)
}

// OperationsEqual compares two operations by their raw form.
func OperationsEqual(a, b Operation) bool {
	ja, errA := json.Marshal(a.ToRaw())
	jb, errB := json.Marshal(b.ToRaw())
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

// OperationFromRaw decodes an operation from its JSON object.
func OperationFromRaw(raw map[string]json.RawMessage) (Operation, error) {
	if len(raw) == 0 {
		return &NoOperation{}, nil
	}
	var pathname string
	if data, ok := raw["pathname"]; ok {
		if err := json.Unmarshal(data, &pathname); err != nil {
			return nil, fmt.Errorf("pathname: %w", err)
		}
	} else {
		return nil, fmt.Errorf("operation has no pathname")
	}

	if data, ok := raw["file"]; ok {
		var rf RawFile
		if err := json.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("add file %q: %w", pathname, err)
		}
		f, err := FileFromRaw(rf)
		if err != nil {
			return nil, fmt.Errorf("add file %q: %w", pathname, err)
		}
		return NewAddFileOperation(pathname, f), nil
	}
	if data, ok := raw["newPathname"]; ok {
		var newPathname string
		if err := json.Unmarshal(data, &newPathname); err != nil {
			return nil, fmt.Errorf("move file %q: %w", pathname, err)
		}
		return NewMoveFileOperation(pathname, newPathname), nil
	}
	if data, ok := raw["metadata"]; ok {
		var metadata map[string]any
		if err := json.Unmarshal(data, &metadata); err != nil {
			return nil, fmt.Errorf("set metadata %q: %w", pathname, err)
		}
		return NewSetFileMetadataOperation(pathname, metadata), nil
	}
	edit := maps.Clone(raw)
	delete(edit, "pathname")
	op, err := EditOperationFromRaw(edit)
	if err != nil {
		return nil, fmt.Errorf("edit file %q: %w", pathname, err)
	}
	return NewEditFileOperation(pathname, op), nil
}

// AddFileOperation adds a file, replacing any file at the same pathname.
type AddFileOperation struct {
	pathname string
	file     *File
}

func NewAddFileOperation(pathname string, file *File) *AddFileOperation {
	return &AddFileOperation{pathname: pathname, file: file}
}

func (o *AddFileOperation) Pathname() string { return o.pathname }
func (o *AddFileOperation) File() *File      { return o.file }

func (o *AddFileOperation) ApplyTo(s *Snapshot) error {
	return s.AddFile(o.pathname, o.file.Clone())
}

func (o *AddFileOperation) CanBeComposedWith(other Operation) bool {
	switch t := other.(type) {
	case *EditFileOperation:
		return t.pathname == o.pathname && o.file.IsEditable()
	case *SetFileMetadataOperation:
		return t.pathname == o.pathname
	case *NoOperation:
		return true
	}
	return false
}

func (o *AddFileOperation) composeOp(other Operation) (Operation, error) {
	switch t := other.(type) {
	case *EditFileOperation:
		file := o.file.Clone()
		if err := file.Edit(t.op); err != nil {
			return nil, err
		}
		return NewAddFileOperation(o.pathname, file), nil
	case *SetFileMetadataOperation:
		file := o.file.Clone()
		file.SetMetadata(t.metadata)
		return NewAddFileOperation(o.pathname, file), nil
	case *NoOperation:
		return o, nil
	}
	return nil, fmt.Errorf("cannot compose add file with %T", other)
}

func (o *AddFileOperation) ToRaw() map[string]any {
	return map[string]any{"pathname": o.pathname, "file": o.file.ToRaw()}
}

func (o *AddFileOperation) Store(ctx context.Context, store BlobStore) (map[string]any, error) {
	raw, err := o.file.Store(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("storing %q: %w", o.pathname, err)
	}
	return map[string]any{"pathname": o.pathname, "file": raw}, nil
}

func (o *AddFileOperation) LoadFiles(ctx context.Context, kind LoadKind, store BlobStore) error {
	return o.file.Load(ctx, kind, store)
}

// MoveFileOperation renames a file. An empty new pathname removes it.
type MoveFileOperation struct {
	pathname    string
	newPathname string
}

func NewMoveFileOperation(pathname, newPathname string) *MoveFileOperation {
	return &MoveFileOperation{pathname: pathname, newPathname: newPathname}
}

// NewRemoveFileOperation returns a move to the empty pathname.
func NewRemoveFileOperation(pathname string) *MoveFileOperation {
	return &MoveFileOperation{pathname: pathname}
}

func (o *MoveFileOperation) Pathname() string    { return o.pathname }
func (o *MoveFileOperation) NewPathname() string { return o.newPathname }
func (o *MoveFileOperation) IsRemoveFile() bool  { return o.newPathname == "" }

func (o *MoveFileOperation) ApplyTo(s *Snapshot) error {
	return s.MoveFile(o.pathname, o.newPathname)
}

func (o *MoveFileOperation) CanBeComposedWith(other Operation) bool {
	_, ok := other.(*NoOperation)
	return ok
}

func (o *MoveFileOperation) composeOp(other Operation) (Operation, error) {
	if _, ok := other.(*NoOperation); ok {
		return o, nil
	}
	return nil, fmt.Errorf("cannot compose move file with %T", other)
}

func (o *MoveFileOperation) ToRaw() map[string]any {
	return map[string]any{"pathname": o.pathname, "newPathname": o.newPathname}
}

func (o *MoveFileOperation) Store(context.Context, BlobStore) (map[string]any, error) {
	return o.ToRaw(), nil
}

func (o *MoveFileOperation) LoadFiles(context.Context, LoadKind, BlobStore) error { return nil }

// EditFileOperation applies an edit operation to one file.
type EditFileOperation struct {
	pathname string
	op       EditOperation
}

func NewEditFileOperation(pathname string, op EditOperation) *EditFileOperation {
	return &EditFileOperation{pathname: pathname, op: op}
}

func (o *EditFileOperation) Pathname() string             { return o.pathname }
func (o *EditFileOperation) EditOperation() EditOperation { return o.op }

func (o *EditFileOperation) ApplyTo(s *Snapshot) error {
	return s.EditFile(o.pathname, o.op)
}

func (o *EditFileOperation) CanBeComposedWith(other Operation) bool {
	switch t := other.(type) {
	case *EditFileOperation:
		return t.pathname == o.pathname && o.op.CanBeComposedWith(t.op)
	case *NoOperation:
		return true
	}
	return false
}

func (o *EditFileOperation) composeOp(other Operation) (Operation, error) {
	switch t := other.(type) {
	case *EditFileOperation:
		op, err := ComposeEditOperations(o.op, t.op)
		if err != nil {
			return nil, err
		}
		return NewEditFileOperation(o.pathname, op), nil
	case *NoOperation:
		return o, nil
	}
	return nil, fmt.Errorf("cannot compose edit file with %T", other)
}

func (o *EditFileOperation) ToRaw() map[string]any {
	raw := o.op.ToRaw()
	raw["pathname"] = o.pathname
	return raw
}

func (o *EditFileOperation) Store(context.Context, BlobStore) (map[string]any, error) {
	return o.ToRaw(), nil
}

func (o *EditFileOperation) LoadFiles(context.Context, LoadKind, BlobStore) error { return nil }

// SetFileMetadataOperation replaces a file's metadata.
type SetFileMetadataOperation struct {
	pathname string
	metadata map[string]any
}

func NewSetFileMetadataOperation(pathname string, metadata map[string]any) *SetFileMetadataOperation {
	return &SetFileMetadataOperation{pathname: pathname, metadata: maps.Clone(metadata)}
}

func (o *SetFileMetadataOperation) Pathname() string         { return o.pathname }
func (o *SetFileMetadataOperation) Metadata() map[string]any { return maps.Clone(o.metadata) }

func (o *SetFileMetadataOperation) ApplyTo(s *Snapshot) error {
	s.SetFileMetadata(o.pathname, o.metadata)
	return nil
}

func (o *SetFileMetadataOperation) CanBeComposedWith(other Operation) bool {
	switch t := other.(type) {
	case *SetFileMetadataOperation:
		return t.pathname == o.pathname
	case *NoOperation:
		return true
	}
	return false
}

func (o *SetFileMetadataOperation) composeOp(other Operation) (Operation, error) {
	switch t := other.(type) {
	case *SetFileMetadataOperation:
		return t, nil
	case *NoOperation:
		return o, nil
	}
	return nil, fmt.Errorf("cannot compose set metadata with %T", other)
}

func (o *SetFileMetadataOperation) ToRaw() map[string]any {
	metadata := o.metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{"pathname": o.pathname, "metadata": metadata}
}

func (o *SetFileMetadataOperation) Store(context.Context, BlobStore) (map[string]any, error) {
	return o.ToRaw(), nil
}

func (o *SetFileMetadataOperation) LoadFiles(context.Context, LoadKind, BlobStore) error { return nil }

// NoOperation does nothing.
type NoOperation struct{}

func (o *NoOperation) ApplyTo(*Snapshot) error          { return nil }
func (o *NoOperation) CanBeComposedWith(Operation) bool { return true }
func (o *NoOperation) ToRaw() map[string]any            { return map[string]any{} }

func (o *NoOperation) composeOp(other Operation) (Operation, error) { return other, nil }

func (o *NoOperation) Store(context.Context, BlobStore) (map[string]any, error) {
	return o.ToRaw(), nil
}

func (o *NoOperation) LoadFiles(context.Context, LoadKind, BlobStore) error { return nil }
