package core

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a range would have a negative position or
// length, or when a cursor lies outside the range it is applied to.
var ErrInvalidRange = errors.New("invalid range")

// Range is a half-open interval [pos, pos+length) over character offsets.
// Ranges are values: every operation returns a new Range.
type Range struct {
	pos    int
	length int
}

// RawRange is the storage form of a Range.
type RawRange struct {
	Pos    int `json:"pos"`
	Length int `json:"length"`
}

// NewRange creates a range, failing if pos or length is negative.
func NewRange(pos, length int) (Range, error) {
	if pos < 0 || length < 0 {
		return Range{}, fmt.Errorf("%w: pos=%d length=%d", ErrInvalidRange, pos, length)
	}
	return Range{pos: pos, length: length}, nil
}

// MustRange is NewRange for callers that have already validated the inputs.
func MustRange(pos, length int) Range {
	r, err := NewRange(pos, length)
	if err != nil {
		panic(err)
	}
	return r
}

// RangeFromRaw decodes a stored range.
func RangeFromRaw(raw RawRange) (Range, error) {
	return NewRange(raw.Pos, raw.Length)
}

// ToRaw encodes the range for storage.
func (r Range) ToRaw() RawRange {
	return RawRange{Pos: r.pos, Length: r.length}
}

func (r Range) Start() int    { return r.pos }
func (r Range) End() int      { return r.pos + r.length }
func (r Range) Length() int   { return r.length }
func (r Range) IsEmpty() bool { return r.length == 0 }

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start(), r.End())
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return r.Start() <= other.Start() && r.End() >= other.End()
}

// ContainsCursor reports whether cursor lies in [start, end].
func (r Range) ContainsCursor(cursor int) bool {
	return r.Start() <= cursor && cursor <= r.End()
}

// Overlaps reports whether the ranges share at least one position.
// Ranges that only touch do not overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start() < other.End() && r.End() > other.Start()
}

// OverlapsStart reports whether r covers the start of other from the left.
func (r Range) OverlapsStart(other Range) bool {
	return r.Start() < other.Start() && r.End() > other.Start()
}

// OverlapsEnd reports whether r covers the end of other from the right.
func (r Range) OverlapsEnd(other Range) bool {
	return r.Start() < other.End() && r.End() > other.End()
}

// Touches reports whether one range ends exactly where the other starts.
func (r Range) Touches(other Range) bool {
	return r.End() == other.Start() || r.Start() == other.End()
}

// StartsAfter reports whether r begins at or after the end of other.
func (r Range) StartsAfter(other Range) bool {
	return r.Start() >= other.End()
}

// StartIsAfter reports whether r begins strictly after pos.
func (r Range) StartIsAfter(pos int) bool {
	return r.Start() > pos
}

// Subtract removes the part of r covered by other.
func (r Range) Subtract(other Range) Range {
	switch {
	case r.Contains(other):
		return Range{pos: r.pos, length: r.length - other.length}
	case other.Contains(r):
		return Range{pos: r.pos, length: 0}
	case r.Overlaps(other) && r.Start() >= other.Start():
		// other covers the left side of r
		return Range{pos: other.Start(), length: r.End() - other.End()}
	case r.Overlaps(other):
		return Range{pos: r.pos, length: other.Start() - r.Start()}
	default:
		return r
	}
}

// CanMerge reports whether the ranges overlap or touch.
func (r Range) CanMerge(other Range) bool {
	return r.Overlaps(other) || r.Touches(other)
}

// Merge returns the smallest range covering both r and other.
func (r Range) Merge(other Range) (Range, error) {
	if !r.CanMerge(other) {
		return Range{}, fmt.Errorf("%w: cannot merge %s with %s", ErrInvalidRange, r, other)
	}
	start := min(r.Start(), other.Start())
	end := max(r.End(), other.End())
	return Range{pos: start, length: end - start}, nil
}

// Intersect returns the common part of the ranges, or nil if they do not
// overlap.
func (r Range) Intersect(other Range) *Range {
	start := max(r.Start(), other.Start())
	end := min(r.End(), other.End())
	if start >= end {
		return nil
	}
	return &Range{pos: start, length: end - start}
}

func (r Range) MoveBy(n int) Range {
	return Range{pos: r.pos + n, length: r.length}
}

func (r Range) ExtendBy(n int) Range {
	return Range{pos: r.pos, length: r.length + n}
}

func (r Range) ShrinkBy(n int) (Range, error) {
	if r.length-n < 0 {
		return Range{}, fmt.Errorf("%w: cannot shrink %s by %d", ErrInvalidRange, r, n)
	}
	return Range{pos: r.pos, length: r.length - n}, nil
}

// SplitAt splits r into [start, cursor) and [cursor, end).
func (r Range) SplitAt(cursor int) ([2]Range, error) {
	if !r.ContainsCursor(cursor) {
		return [2]Range{}, fmt.Errorf("%w: cursor %d outside %s", ErrInvalidRange, cursor, r)
	}
	return [2]Range{
		{pos: r.pos, length: cursor - r.pos},
		{pos: cursor, length: r.End() - cursor},
	}, nil
}

// InsertAt splits r at cursor and places a range of the given length between
// the two halves; the right half is shifted past the inserted range.
func (r Range) InsertAt(cursor, length int) ([3]Range, error) {
	if !r.ContainsCursor(cursor) {
		return [3]Range{}, fmt.Errorf("%w: cursor %d outside %s", ErrInvalidRange, cursor, r)
	}
	return [3]Range{
		{pos: r.pos, length: cursor - r.pos},
		{pos: cursor, length: length},
		{pos: cursor + length, length: r.End() - cursor},
	}, nil
}

// Equal reports whether the ranges have the same position and length.
func (r Range) Equal(other Range) bool {
	return r.pos == other.pos && r.length == other.length
}
