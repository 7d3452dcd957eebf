package core

import (
	"fmt"
	"slices"
)

// Comment is a comment thread anchored to one or more ranges of a document.
// Its ranges are always sorted by start, non-overlapping and non-empty.
type Comment struct {
	id       string
	ranges   []Range
	resolved bool
}

// RawComment is the storage form of a Comment.
type RawComment struct {
	ID       string     `json:"id"`
	Ranges   []RawRange `json:"ranges"`
	Resolved bool       `json:"resolved,omitempty"`
}

// NewComment creates a comment, normalising its ranges.
func NewComment(id string, ranges []Range, resolved bool) *Comment {
	return &Comment{id: id, ranges: mergeRanges(ranges), resolved: resolved}
}

// CommentFromRaw decodes a stored comment.
func CommentFromRaw(raw RawComment) (*Comment, error) {
	ranges := make([]Range, 0, len(raw.Ranges))
	for _, rr := range raw.Ranges {
		r, err := RangeFromRaw(rr)
		if err != nil {
			return nil, fmt.Errorf("comment %s: %w", raw.ID, err)
		}
		ranges = append(ranges, r)
	}
	return NewComment(raw.ID, ranges, raw.Resolved), nil
}

// ToRaw encodes the comment for storage.
func (c *Comment) ToRaw() RawComment {
	raw := RawComment{ID: c.id, Ranges: make([]RawRange, 0, len(c.ranges)), Resolved: c.resolved}
	for _, r := range c.ranges {
		raw.Ranges = append(raw.Ranges, r.ToRaw())
	}
	return raw
}

func (c *Comment) ID() string      { return c.id }
func (c *Comment) Resolved() bool  { return c.resolved }
func (c *Comment) Ranges() []Range { return slices.Clone(c.ranges) }

// Clone returns an independent copy of the comment.
func (c *Comment) Clone() *Comment {
	return &Comment{id: c.id, ranges: slices.Clone(c.ranges), resolved: c.resolved}
}

// AddRange adds a range to the comment and re-merges.
func (c *Comment) AddRange(r Range) {
	next := append(slices.Clone(c.ranges), r)
	c.ranges = mergeRanges(next)
}

// ApplyInsert updates the ranges for an insertion of length characters at
// cursor. When extend is set the insertion becomes part of the comment.
func (c *Comment) ApplyInsert(cursor, length int, extend bool) {
	extended := false
	next := make([]Range, 0, len(c.ranges)+1)
	for _, r := range c.ranges {
		switch {
		case cursor == r.End():
			if extend {
				r = r.ExtendBy(length)
				extended = true
			}
			next = append(next, r)
		case cursor == r.Start():
			if extend {
				r = r.ExtendBy(length)
				extended = true
			} else {
				r = r.MoveBy(length)
			}
			next = append(next, r)
		case r.StartIsAfter(cursor):
			next = append(next, r.MoveBy(length))
		case r.ContainsCursor(cursor):
			if extend {
				next = append(next, r.ExtendBy(length))
				extended = true
				continue
			}
			parts, _ := r.InsertAt(cursor, length)
			next = append(next, parts[0], parts[2])
		default:
			next = append(next, r)
		}
	}
	if extend && !extended {
		next = append(next, Range{pos: cursor, length: length})
	}
	c.ranges = mergeRanges(next)
}

// ApplyDelete updates the ranges for the removal of deleted.
func (c *Comment) ApplyDelete(deleted Range) {
	next := make([]Range, 0, len(c.ranges))
	for _, r := range c.ranges {
		switch {
		case r.Overlaps(deleted):
			next = append(next, r.Subtract(deleted))
		case r.StartsAfter(deleted):
			next = append(next, r.MoveBy(-deleted.Length()))
		default:
			next = append(next, r)
		}
	}
	c.ranges = mergeRanges(next)
}

// ApplyTextOperation moves the comment's ranges through op. Insertions that
// list the comment's id extend it.
func (c *Comment) ApplyTextOperation(op *TextOperation) {
	cursor := 0
	for _, sop := range op.ops {
		switch o := sop.(type) {
		case *RetainOp:
			cursor += o.length
		case *InsertOp:
			n := o.Length()
			c.ApplyInsert(cursor, n, slices.Contains(o.commentIDs, c.id))
			cursor += n
		case *RemoveOp:
			c.ApplyDelete(Range{pos: cursor, length: o.length})
		}
	}
}

func (c *Comment) equal(other *Comment) bool {
	return c.id == other.id && c.resolved == other.resolved &&
		slices.EqualFunc(c.ranges, other.ranges, Range.Equal)
}

// mergeRanges returns a new sorted list with empty ranges dropped and
// touching or overlapping ranges joined.
func mergeRanges(ranges []Range) []Range {
	sorted := slices.Clone(ranges)
	slices.SortStableFunc(sorted, func(a, b Range) int { return a.Start() - b.Start() })
	merged := make([]Range, 0, len(sorted))
	for _, r := range sorted {
		if r.IsEmpty() {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].CanMerge(r) {
			merged[n-1], _ = merged[n-1].Merge(r)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
