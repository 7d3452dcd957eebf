package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// EditOperation changes the content or comments of a string file. It is one
// of *TextOperation, *AddCommentOperation, *DeleteCommentOperation,
// *SetCommentStateOperation or *EditNoOperation.
type EditOperation interface {
	// Apply edits fd in place. On error fd is unchanged.
	Apply(fd *StringFileData) error
	// ApplyToLength returns the document length after the operation.
	ApplyToLength(length int) (int, error)
	CanBeComposedWith(other EditOperation) bool
	// ToRaw returns the JSON object form of the operation.
	ToRaw() map[string]any

	invertEdit(prev *StringFileData) EditOperation
	composeEdit(other EditOperation) (EditOperation, error)
	equalEdit(other EditOperation) bool
}

// InvertEditOperation returns the operation that undoes op on prev.
func InvertEditOperation(op EditOperation, prev *StringFileData) EditOperation {
	return op.invertEdit(prev)
}

// ComposeEditOperations combines a followed by b into one operation. The
// caller checks a.CanBeComposedWith(b) first.
func ComposeEditOperations(a, b EditOperation) (EditOperation, error) {
	if !a.CanBeComposedWith(b) {
		return nil, fmt.Errorf("cannot compose %T with %T", a, b)
	}
	return a.composeEdit(b)
}

// EditOperationsEqual reports whether two edit operations are identical.
func EditOperationsEqual(a, b EditOperation) bool {
	return a.equalEdit(b)
}

// EditOperationFromRaw decodes an edit operation from its JSON object.
func EditOperationFromRaw(raw map[string]json.RawMessage) (EditOperation, error) {
	if data, ok := raw["textOperation"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("text operation: %w", err)
		}
		op, err := TextOperationFromJSON(items)
		if err != nil {
			return nil, err
		}
		return op, nil
	}
	if data, ok := raw["deleteComment"]; ok {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return nil, fmt.Errorf("delete comment: %w", err)
		}
		return &DeleteCommentOperation{commentID: id}, nil
	}
	if _, ok := raw["noOp"]; ok {
		return &EditNoOperation{}, nil
	}
	data, ok := raw["commentId"]
	if !ok {
		return nil, errors.New("unknown edit operation")
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("comment id: %w", err)
	}
	var resolved bool
	if data, ok := raw["resolved"]; ok {
		if err := json.Unmarshal(data, &resolved); err != nil {
			return nil, fmt.Errorf("resolved: %w", err)
		}
	}
	if data, ok := raw["ranges"]; ok {
		var rawRanges []RawRange
		if err := json.Unmarshal(data, &rawRanges); err != nil {
			return nil, fmt.Errorf("comment ranges: %w", err)
		}
		ranges := make([]Range, 0, len(rawRanges))
		for _, rr := range rawRanges {
			r, err := RangeFromRaw(rr)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, r)
		}
		return NewAddCommentOperation(id, ranges, resolved), nil
	}
	if _, ok := raw["resolved"]; !ok {
		return nil, errors.New("unknown edit operation")
	}
	return NewSetCommentStateOperation(id, resolved), nil
}

// TextOperation as an EditOperation.

func (o *TextOperation) ToRaw() map[string]any {
	return map[string]any{"textOperation": o.ToJSON()}
}

func (o *TextOperation) invertEdit(prev *StringFileData) EditOperation { return o.Invert(prev) }

func (o *TextOperation) composeEdit(other EditOperation) (EditOperation, error) {
	t, ok := other.(*TextOperation)
	if !ok {
		return nil, fmt.Errorf("cannot compose text operation with %T", other)
	}
	composed, err := o.Compose(t)
	if err != nil {
		return nil, err
	}
	return composed, nil
}

func (o *TextOperation) equalEdit(other EditOperation) bool {
	t, ok := other.(*TextOperation)
	return ok && o.Equals(t)
}

// AddCommentOperation creates a comment, replacing any comment with the
// same id.
type AddCommentOperation struct {
	commentID string
	ranges    []Range
	resolved  bool
}

func NewAddCommentOperation(commentID string, ranges []Range, resolved bool) *AddCommentOperation {
	return &AddCommentOperation{commentID: commentID, ranges: slices.Clone(ranges), resolved: resolved}
}

func (o *AddCommentOperation) CommentID() string { return o.commentID }
func (o *AddCommentOperation) Ranges() []Range   { return slices.Clone(o.ranges) }
func (o *AddCommentOperation) Resolved() bool    { return o.resolved }

func (o *AddCommentOperation) Apply(fd *StringFileData) error {
	fd.comments.Add(NewComment(o.commentID, o.ranges, o.resolved))
	return nil
}

func (o *AddCommentOperation) ApplyToLength(length int) (int, error) { return length, nil }

func (o *AddCommentOperation) CanBeComposedWith(other EditOperation) bool {
	switch t := other.(type) {
	case *AddCommentOperation:
		return t.commentID == o.commentID
	case *DeleteCommentOperation:
		return t.commentID == o.commentID
	case *SetCommentStateOperation:
		return t.commentID == o.commentID
	case *EditNoOperation:
		return true
	}
	return false
}

func (o *AddCommentOperation) composeEdit(other EditOperation) (EditOperation, error) {
	switch t := other.(type) {
	case *AddCommentOperation, *DeleteCommentOperation:
		return t, nil
	case *SetCommentStateOperation:
		return NewAddCommentOperation(o.commentID, o.ranges, t.resolved), nil
	case *EditNoOperation:
		return o, nil
	}
	return nil, fmt.Errorf("cannot compose add comment with %T", other)
}

func (o *AddCommentOperation) invertEdit(prev *StringFileData) EditOperation {
	if c := prev.comments.Get(o.commentID); c != nil {
		return NewAddCommentOperation(c.id, c.ranges, c.resolved)
	}
	return &DeleteCommentOperation{commentID: o.commentID}
}

func (o *AddCommentOperation) ToRaw() map[string]any {
	ranges := make([]RawRange, 0, len(o.ranges))
	for _, r := range o.ranges {
		ranges = append(ranges, r.ToRaw())
	}
	raw := map[string]any{"commentId": o.commentID, "ranges": ranges}
	if o.resolved {
		raw["resolved"] = true
	}
	return raw
}

func (o *AddCommentOperation) equalEdit(other EditOperation) bool {
	t, ok := other.(*AddCommentOperation)
	return ok && t.commentID == o.commentID && t.resolved == o.resolved &&
		slices.EqualFunc(t.ranges, o.ranges, Range.Equal)
}

// DeleteCommentOperation removes a comment. Deleting a missing comment does
// nothing.
type DeleteCommentOperation struct {
	commentID string
}

func NewDeleteCommentOperation(commentID string) *DeleteCommentOperation {
	return &DeleteCommentOperation{commentID: commentID}
}

func (o *DeleteCommentOperation) CommentID() string { return o.commentID }

func (o *DeleteCommentOperation) Apply(fd *StringFileData) error {
	fd.comments.Delete(o.commentID)
	return nil
}

func (o *DeleteCommentOperation) ApplyToLength(length int) (int, error) { return length, nil }

func (o *DeleteCommentOperation) CanBeComposedWith(other EditOperation) bool {
	_, ok := other.(*EditNoOperation)
	return ok
}

func (o *DeleteCommentOperation) composeEdit(other EditOperation) (EditOperation, error) {
	if _, ok := other.(*EditNoOperation); ok {
		return o, nil
	}
	return nil, fmt.Errorf("cannot compose delete comment with %T", other)
}

func (o *DeleteCommentOperation) invertEdit(prev *StringFileData) EditOperation {
	if c := prev.comments.Get(o.commentID); c != nil {
		return NewAddCommentOperation(c.id, c.ranges, c.resolved)
	}
	return &EditNoOperation{}
}

func (o *DeleteCommentOperation) ToRaw() map[string]any {
	return map[string]any{"deleteComment": o.commentID}
}

func (o *DeleteCommentOperation) equalEdit(other EditOperation) bool {
	t, ok := other.(*DeleteCommentOperation)
	return ok && t.commentID == o.commentID
}

// SetCommentStateOperation resolves or reopens a comment. A missing comment
// is ignored.
type SetCommentStateOperation struct {
	commentID string
	resolved  bool
}

func NewSetCommentStateOperation(commentID string, resolved bool) *SetCommentStateOperation {
	return &SetCommentStateOperation{commentID: commentID, resolved: resolved}
}

func (o *SetCommentStateOperation) CommentID() string { return o.commentID }
func (o *SetCommentStateOperation) Resolved() bool    { return o.resolved }

func (o *SetCommentStateOperation) Apply(fd *StringFileData) error {
	c := fd.comments.Get(o.commentID)
	if c == nil {
		return nil
	}
	fd.comments.Add(NewComment(c.id, c.ranges, o.resolved))
	return nil
}

func (o *SetCommentStateOperation) ApplyToLength(length int) (int, error) { return length, nil }

func (o *SetCommentStateOperation) CanBeComposedWith(other EditOperation) bool {
	switch t := other.(type) {
	case *SetCommentStateOperation:
		return t.commentID == o.commentID
	case *DeleteCommentOperation:
		return t.commentID == o.commentID
	case *EditNoOperation:
		return true
	}
	return false
}

func (o *SetCommentStateOperation) composeEdit(other EditOperation) (EditOperation, error) {
	switch t := other.(type) {
	case *SetCommentStateOperation, *DeleteCommentOperation:
		return t, nil
	case *EditNoOperation:
		return o, nil
	}
	return nil, fmt.Errorf("cannot compose set comment state with %T", other)
}

func (o *SetCommentStateOperation) invertEdit(prev *StringFileData) EditOperation {
	if c := prev.comments.Get(o.commentID); c != nil {
		return NewSetCommentStateOperation(o.commentID, c.resolved)
	}
	return &EditNoOperation{}
}

func (o *SetCommentStateOperation) ToRaw() map[string]any {
	return map[string]any{"commentId": o.commentID, "resolved": o.resolved}
}

func (o *SetCommentStateOperation) equalEdit(other EditOperation) bool {
	t, ok := other.(*SetCommentStateOperation)
	return ok && t.commentID == o.commentID && t.resolved == o.resolved
}

// EditNoOperation does nothing. It is produced by transforms that cancel an
// operation out.
type EditNoOperation struct{}

func (o *EditNoOperation) Apply(*StringFileData) error           { return nil }
func (o *EditNoOperation) ApplyToLength(length int) (int, error) { return length, nil }
func (o *EditNoOperation) CanBeComposedWith(EditOperation) bool  { return true }

func (o *EditNoOperation) composeEdit(other EditOperation) (EditOperation, error) {
	return other, nil
}

func (o *EditNoOperation) invertEdit(*StringFileData) EditOperation { return o }
func (o *EditNoOperation) ToRaw() map[string]any                    { return map[string]any{"noOp": true} }

func (o *EditNoOperation) equalEdit(other EditOperation) bool {
	_, ok := other.(*EditNoOperation)
	return ok
}

// TransformEditOperations transforms concurrent edits a and b of the same
// file into a' and b' such that a then b' equals b then a'.
func TransformEditOperations(a, b EditOperation) (EditOperation, EditOperation, error) {
	if _, ok := a.(*EditNoOperation); ok {
		return a, b, nil
	}
	if _, ok := b.(*EditNoOperation); ok {
		return a, b, nil
	}

	switch x := a.(type) {
	case *TextOperation:
		switch y := b.(type) {
		case *TextOperation:
			xPrime, yPrime, err := TransformText(x, y)
			if err != nil {
				return nil, nil, err
			}
			return xPrime, yPrime, nil
		case *AddCommentOperation:
			return a, moveComment(y, x), nil
		}
		return a, b, nil
	case *AddCommentOperation:
		switch y := b.(type) {
		case *TextOperation:
			return moveComment(x, y), b, nil
		case *AddCommentOperation:
			if x.commentID == y.commentID {
				return &EditNoOperation{}, b, nil
			}
		case *DeleteCommentOperation:
			if x.commentID == y.commentID {
				return &EditNoOperation{}, b, nil
			}
		case *SetCommentStateOperation:
			if x.commentID == y.commentID {
				return NewAddCommentOperation(x.commentID, x.ranges, y.resolved), b, nil
			}
		}
	case *DeleteCommentOperation:
		switch y := b.(type) {
		case *AddCommentOperation:
			if x.commentID == y.commentID {
				return a, &EditNoOperation{}, nil
			}
		case *DeleteCommentOperation:
			if x.commentID == y.commentID {
				return &EditNoOperation{}, &EditNoOperation{}, nil
			}
		case *SetCommentStateOperation:
			if x.commentID == y.commentID {
				return a, &EditNoOperation{}, nil
			}
		}
	case *SetCommentStateOperation:
		switch y := b.(type) {
		case *AddCommentOperation:
			if x.commentID == y.commentID {
				return a, NewAddCommentOperation(y.commentID, y.ranges, x.resolved), nil
			}
		case *DeleteCommentOperation:
			if x.commentID == y.commentID {
				return &EditNoOperation{}, b, nil
			}
		case *SetCommentStateOperation:
			if x.commentID == y.commentID {
				resolved := x.resolved && y.resolved
				return NewSetCommentStateOperation(x.commentID, resolved),
					NewSetCommentStateOperation(y.commentID, resolved), nil
			}
		}
	}
	return a, b, nil
}

// moveComment returns add with its ranges moved through a concurrent text
// operation.
func moveComment(add *AddCommentOperation, op *TextOperation) *AddCommentOperation {
	c := NewComment(add.commentID, add.ranges, add.resolved)
	c.ApplyTextOperation(op)
	return NewAddCommentOperation(c.id, c.ranges, c.resolved)
}
