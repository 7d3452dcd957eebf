package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every "no such entity" error.
	ErrNotFound = errors.New("not found")

	// ErrPathname is matched by every FileMap invariant violation.
	ErrPathname = errors.New("pathname error")

	// ErrUnprocessable is matched by operation-level semantic failures
	// (ApplyError, InvalidInsertionError, TooLongError).
	ErrUnprocessable = errors.New("unprocessable operation")
)

// BlobNotFoundError is returned when a hash has no stored blob.
type BlobNotFoundError struct {
	Hash string
}

func (e *BlobNotFoundError) Error() string        { return fmt.Sprintf("blob not found: %s", e.Hash) }
func (e *BlobNotFoundError) Is(target error) bool { return target == ErrNotFound }

// NonUniquePathnameError is returned when a file map would hold the same
// pathname twice.
type NonUniquePathnameError struct {
	Pathnames []string
}

func (e *NonUniquePathnameError) Error() string {
	return fmt.Sprintf("pathnames are not unique: %v", e.Pathnames)
}
func (e *NonUniquePathnameError) Is(target error) bool { return target == ErrPathname }

// BadPathnameError is returned for pathnames that are not clean.
type BadPathnameError struct {
	Pathname string
}

func (e *BadPathnameError) Error() string        { return fmt.Sprintf("invalid pathname: %q", e.Pathname) }
func (e *BadPathnameError) Is(target error) bool { return target == ErrPathname }

// PathnameConflictError is returned when a pathname would be both a file and
// a directory.
type PathnameConflictError struct {
	Pathname string
	Conflict string
}

func (e *PathnameConflictError) Error() string {
	return fmt.Sprintf("pathname %q conflicts with %q", e.Pathname, e.Conflict)
}
func (e *PathnameConflictError) Is(target error) bool { return target == ErrPathname }

// FileNotFoundError is returned when a pathname is absent from a file map.
type FileNotFoundError struct {
	Pathname string
}

func (e *FileNotFoundError) Error() string { return fmt.Sprintf("file not found: %q", e.Pathname) }
func (e *FileNotFoundError) Is(target error) bool {
	return target == ErrPathname || target == ErrNotFound
}

// EditMissingFileError is returned when an edit targets a pathname that is
// not in the snapshot.
type EditMissingFileError struct {
	Pathname string
}

func (e *EditMissingFileError) Error() string {
	return fmt.Sprintf("can't find file for editing: %q", e.Pathname)
}

// NotEditableError is returned when editing a file whose content
// representation does not support text edits.
type NotEditableError struct {
	Kind string
}

func (e *NotEditableError) Error() string { return fmt.Sprintf("file is not editable (%s)", e.Kind) }

// ApplyError reports a text operation that does not fit the document it is
// applied to.
type ApplyError struct {
	Message string
	Length  int
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s (document length %d)", e.Message, e.Length)
}
func (e *ApplyError) Is(target error) bool { return target == ErrUnprocessable }

// InvalidInsertionError reports an insertion containing characters outside
// the basic multilingual plane.
type InvalidInsertionError struct {
	Insertion string
}

func (e *InvalidInsertionError) Error() string {
	return fmt.Sprintf("insertion contains non-BMP characters: %q", e.Insertion)
}
func (e *InvalidInsertionError) Is(target error) bool { return target == ErrUnprocessable }

// TooLongError reports a result exceeding MaxStringLength.
type TooLongError struct {
	ResultLength int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("resulting string is too long: %d > %d", e.ResultLength, MaxStringLength)
}
func (e *TooLongError) Is(target error) bool { return target == ErrUnprocessable }
