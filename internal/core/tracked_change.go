package core

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

// TrackedChange marks a range of text as a pending tracked insertion or
// deletion.
type TrackedChange struct {
	Range    Range
	Tracking *TrackingProps
}

// RawTrackedChange is the storage form of a TrackedChange.
type RawTrackedChange struct {
	Range    RawRange    `json:"range"`
	Tracking RawTracking `json:"tracking"`
}

// TrackedChangeFromRaw decodes a stored tracked change.
func TrackedChangeFromRaw(raw RawTrackedChange) (TrackedChange, error) {
	r, err := RangeFromRaw(raw.Range)
	if err != nil {
		return TrackedChange{}, err
	}
	tp, err := TrackingPropsFromRaw(raw.Tracking)
	if err != nil {
		return TrackedChange{}, err
	}
	return TrackedChange{Range: r, Tracking: tp}, nil
}

// ToRaw encodes the tracked change for storage.
func (tc TrackedChange) ToRaw() RawTrackedChange {
	return RawTrackedChange{Range: tc.Range.ToRaw(), Tracking: tc.Tracking.ToRaw()}
}

func (tc TrackedChange) canMerge(other TrackedChange) bool {
	return tc.Tracking.Type == other.Tracking.Type &&
		tc.Tracking.UserID == other.Tracking.UserID &&
		tc.Range.Touches(other.Range)
}

// merge joins two touching changes, keeping the newer timestamp.
func (tc TrackedChange) merge(other TrackedChange) TrackedChange {
	r, _ := tc.Range.Merge(other.Range)
	tracking := tc.Tracking
	if other.Tracking.Ts.After(tc.Tracking.Ts) {
		tracking = other.Tracking
	}
	return TrackedChange{Range: r, Tracking: tracking}
}

func (tc TrackedChange) equal(other TrackedChange) bool {
	return tc.Range.Equal(other.Range) && tc.Tracking.equal(other.Tracking)
}

// TrackedChangeList is the ordered set of tracked changes of one file.
// Mutations rebuild the underlying slice rather than editing it in place.
type TrackedChangeList struct {
	changes []TrackedChange
}

// NewTrackedChangeList creates a list, sorting and merging the input.
func NewTrackedChangeList(changes ...TrackedChange) *TrackedChangeList {
	l := &TrackedChangeList{changes: slices.Clone(changes)}
	l.mergeRanges()
	return l
}

// TrackedChangeListFromRaw decodes a stored list. The entries are sorted
// and merged like NewTrackedChangeList does; overlapping entries are
// rejected.
func TrackedChangeListFromRaw(raw []RawTrackedChange) (*TrackedChangeList, error) {
	changes := make([]TrackedChange, 0, len(raw))
	for _, rtc := range raw {
		tc, err := TrackedChangeFromRaw(rtc)
		if err != nil {
			return nil, fmt.Errorf("tracked change: %w", err)
		}
		changes = append(changes, tc)
	}
	l := NewTrackedChangeList(changes...)
	for i := 1; i < len(l.changes); i++ {
		prev, next := l.changes[i-1].Range, l.changes[i].Range
		if prev.End() > next.Start() {
			return nil, fmt.Errorf("%w: tracked changes at %d and %d overlap", ErrInvalidRange, prev.Start(), next.Start())
		}
	}
	return l, nil
}

// ToRaw encodes the list for storage.
func (l *TrackedChangeList) ToRaw() []RawTrackedChange {
	raw := make([]RawTrackedChange, 0, len(l.changes))
	for _, tc := range l.changes {
		raw = append(raw, tc.ToRaw())
	}
	return raw
}

func (l *TrackedChangeList) Len() int { return len(l.changes) }

// All returns a copy of the tracked changes, sorted by start.
func (l *TrackedChangeList) All() []TrackedChange { return slices.Clone(l.changes) }

// InRange returns the tracked changes that lie entirely within r.
func (l *TrackedChangeList) InRange(r Range) []TrackedChange {
	var out []TrackedChange
	for _, tc := range l.changes {
		if r.Contains(tc.Range) {
			out = append(out, tc)
		}
	}
	return out
}

// Clone returns an independent copy of the list.
func (l *TrackedChangeList) Clone() *TrackedChangeList {
	return &TrackedChangeList{changes: slices.Clone(l.changes)}
}

// ApplyInsert updates the list for text inserted at cursor. If tracking is
// non-nil the inserted text becomes a new tracked change.
func (l *TrackedChangeList) ApplyInsert(cursor int, text string, tracking *TrackingProps) {
	length := utf8.RuneCountInString(text)
	next := make([]TrackedChange, 0, len(l.changes)+2)
	for _, tc := range l.changes {
		switch {
		case tc.Range.StartIsAfter(cursor) || cursor == tc.Range.Start():
			next = append(next, TrackedChange{Range: tc.Range.MoveBy(length), Tracking: tc.Tracking})
		case cursor == tc.Range.End():
			next = append(next, tc)
		case tc.Range.ContainsCursor(cursor):
			parts, _ := tc.Range.InsertAt(cursor, length)
			if !parts[0].IsEmpty() {
				next = append(next, TrackedChange{Range: parts[0], Tracking: tc.Tracking})
			}
			if !parts[2].IsEmpty() {
				next = append(next, TrackedChange{Range: parts[2], Tracking: tc.Tracking})
			}
		default:
			next = append(next, tc)
		}
	}
	if tracking != nil {
		next = append(next, TrackedChange{Range: Range{pos: cursor, length: length}, Tracking: tracking})
	}
	l.changes = next
	l.mergeRanges()
}

// ApplyDelete updates the list for length characters removed at cursor.
func (l *TrackedChangeList) ApplyDelete(cursor, length int) {
	deleted := Range{pos: cursor, length: length}
	next := make([]TrackedChange, 0, len(l.changes))
	for _, tc := range l.changes {
		switch {
		case deleted.Contains(tc.Range):
			continue
		case deleted.Overlaps(tc.Range):
			r := tc.Range.Subtract(deleted)
			if !r.IsEmpty() {
				next = append(next, TrackedChange{Range: r, Tracking: tc.Tracking})
			}
		case tc.Range.StartIsAfter(cursor):
			next = append(next, TrackedChange{Range: tc.Range.MoveBy(-length), Tracking: tc.Tracking})
		default:
			next = append(next, tc)
		}
	}
	l.changes = next
	l.mergeRanges()
}

// ApplyRetain updates the tracking of a retained span. Without a directive
// nothing changes; TrackingProps re-track the span and ClearTrackingProps
// untrack it.
func (l *TrackedChangeList) ApplyRetain(cursor, length int, tracking TrackingDirective) {
	if tracking == nil {
		return
	}
	retained := Range{pos: cursor, length: length}
	next := make([]TrackedChange, 0, len(l.changes)+2)
	for _, tc := range l.changes {
		switch {
		case retained.Contains(tc.Range):
			continue
		case retained.Overlaps(tc.Range):
			switch {
			case tc.Range.Contains(retained):
				parts, _ := tc.Range.SplitAt(cursor)
				right, _ := parts[1].MoveBy(length).ShrinkBy(length)
				next = append(next,
					TrackedChange{Range: parts[0], Tracking: tc.Tracking},
					TrackedChange{Range: right, Tracking: tc.Tracking})
			case retained.Start() <= tc.Range.Start():
				parts, _ := tc.Range.SplitAt(retained.End())
				next = append(next, TrackedChange{Range: parts[1], Tracking: tc.Tracking})
			default:
				parts, _ := tc.Range.SplitAt(cursor)
				next = append(next, TrackedChange{Range: parts[0], Tracking: tc.Tracking})
			}
		default:
			next = append(next, tc)
		}
	}
	if tp, ok := tracking.(*TrackingProps); ok {
		next = append(next, TrackedChange{Range: retained, Tracking: tp})
	}
	l.changes = next
	l.mergeRanges()
}

// mergeRanges sorts by start, drops empty ranges and joins touching changes
// by the same user of the same type.
func (l *TrackedChangeList) mergeRanges() {
	sorted := slices.Clone(l.changes)
	slices.SortStableFunc(sorted, func(a, b TrackedChange) int { return a.Range.Start() - b.Range.Start() })
	merged := make([]TrackedChange, 0, len(sorted))
	for _, tc := range sorted {
		if tc.Range.IsEmpty() {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].canMerge(tc) {
			merged[n-1] = merged[n-1].merge(tc)
			continue
		}
		merged = append(merged, tc)
	}
	l.changes = merged
}

func (l *TrackedChangeList) equal(other *TrackedChangeList) bool {
	return slices.EqualFunc(l.changes, other.changes, TrackedChange.equal)
}
