package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MaxStringLength is the largest editable document, in characters.
const MaxStringLength = 2 * 1024 * 1024

// TextOperation is a sequence of retain, insert and remove steps that scans
// over a whole document. Operations are built with the chaining helpers and
// treated as immutable afterwards.
type TextOperation struct {
	ops          []ScanOp
	baseLength   int
	targetLength int
}

// NewTextOperation returns an empty operation.
func NewTextOperation() *TextOperation {
	return &TextOperation{}
}

// TextOperationFromJSON decodes the items of a textOperation array.
func TextOperationFromJSON(items []json.RawMessage) (*TextOperation, error) {
	op := NewTextOperation()
	for _, item := range items {
		sop, err := scanOpFromJSON(item)
		if err != nil {
			return nil, fmt.Errorf("text operation: %w", err)
		}
		op.push(sop)
	}
	return op, nil
}

// ToJSON encodes the operation as a textOperation array.
func (o *TextOperation) ToJSON() []any {
	out := make([]any, 0, len(o.ops))
	for _, sop := range o.ops {
		out = append(out, sop.toJSON())
	}
	return out
}

func (o *TextOperation) Ops() []ScanOp     { return slices.Clone(o.ops) }
func (o *TextOperation) BaseLength() int   { return o.baseLength }
func (o *TextOperation) TargetLength() int { return o.targetLength }

func (o *TextOperation) String() string {
	data, _ := json.Marshal(o.ToJSON())
	return string(data)
}

// Retain skips over n characters.
func (o *TextOperation) Retain(n int) *TextOperation {
	return o.RetainTracked(n, nil)
}

// RetainTracked skips over n characters, applying a tracking directive.
func (o *TextOperation) RetainTracked(n int, tracking TrackingDirective) *TextOperation {
	if n <= 0 {
		return o
	}
	return o.push(&RetainOp{length: n, tracking: tracking})
}

// Insert inserts s at the current position.
func (o *TextOperation) Insert(s string) *TextOperation {
	return o.InsertWith(s, nil, nil)
}

// InsertWith inserts s, optionally as a tracked insertion and as part of
// the given comments.
func (o *TextOperation) InsertWith(s string, tracking *TrackingProps, commentIDs []string) *TextOperation {
	if s == "" {
		return o
	}
	return o.push(newInsertOp(s, tracking, commentIDs))
}

// Remove deletes n characters. Negative counts are treated as their
// absolute value.
func (o *TextOperation) Remove(n int) *TextOperation {
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return o
	}
	return o.push(&RemoveOp{length: n})
}

func (o *TextOperation) last() ScanOp {
	if len(o.ops) == 0 {
		return nil
	}
	return o.ops[len(o.ops)-1]
}

// push appends a scan op, merging it with its neighbour where possible.
// An insert following a remove is placed before it so that equivalent
// operations compare equal.
func (o *TextOperation) push(sop ScanOp) *TextOperation {
	n := len(o.ops)
	switch op := sop.(type) {
	case *RetainOp:
		o.baseLength += op.length
		o.targetLength += op.length
		if last, ok := o.last().(*RetainOp); ok && last.canMergeWith(op) {
			o.ops[n-1] = &RetainOp{length: last.length + op.length, tracking: last.tracking}
			return o
		}
	case *RemoveOp:
		o.baseLength += op.length
		if last, ok := o.last().(*RemoveOp); ok {
			o.ops[n-1] = &RemoveOp{length: last.length + op.length}
			return o
		}
	case *InsertOp:
		o.targetLength += op.length
		if last, ok := o.last().(*InsertOp); ok && last.canMergeWith(op) {
			o.ops[n-1] = newInsertOp(last.insertion+op.insertion, last.tracking, last.commentIDs)
			return o
		}
		if _, ok := o.last().(*RemoveOp); ok {
			if n >= 2 {
				if prev, ok := o.ops[n-2].(*InsertOp); ok && prev.canMergeWith(op) {
					o.ops[n-2] = newInsertOp(prev.insertion+op.insertion, prev.tracking, prev.commentIDs)
					return o
				}
			}
			o.ops = append(o.ops, o.ops[n-1])
			o.ops[n-1] = op
			return o
		}
	}
	o.ops = append(o.ops, sop)
	return o
}

// IsNoop reports whether applying the operation changes nothing.
func (o *TextOperation) IsNoop() bool {
	if len(o.ops) == 0 {
		return true
	}
	if len(o.ops) == 1 {
		r, ok := o.ops[0].(*RetainOp)
		return ok && r.tracking == nil
	}
	return false
}

// Equals reports whether both operations have identical steps.
func (o *TextOperation) Equals(other *TextOperation) bool {
	return o.baseLength == other.baseLength &&
		o.targetLength == other.targetLength &&
		slices.EqualFunc(o.ops, other.ops, ScanOp.equal)
}

// validate checks the operation against a document of the given length
// before anything is mutated.
func (o *TextOperation) validate(content string, length int) error {
	if containsNonBMP(content) {
		return &ApplyError{Message: "the document contains non-BMP characters", Length: length}
	}
	if length != o.baseLength {
		return &ApplyError{
			Message: fmt.Sprintf("operation base length %d does not match the document", o.baseLength),
			Length:  length,
		}
	}
	for _, sop := range o.ops {
		if ins, ok := sop.(*InsertOp); ok && containsNonBMP(ins.insertion) {
			return &InvalidInsertionError{Insertion: ins.insertion}
		}
	}
	if o.targetLength > MaxStringLength {
		return &TooLongError{ResultLength: o.targetLength}
	}
	return nil
}

// Apply edits the file's content, comments and tracked changes. On error
// the file is left untouched.
func (o *TextOperation) Apply(fd *StringFileData) error {
	content := []rune(fd.content)
	if err := o.validate(fd.content, len(content)); err != nil {
		return err
	}

	var b strings.Builder
	cursor, resultLen := 0, 0
	for _, sop := range o.ops {
		switch op := sop.(type) {
		case *RetainOp:
			fd.trackedChanges.ApplyRetain(resultLen, op.length, op.tracking)
			b.WriteString(string(content[cursor : cursor+op.length]))
			cursor += op.length
			resultLen += op.length
		case *InsertOp:
			fd.trackedChanges.ApplyInsert(resultLen, op.insertion, op.tracking)
			fd.comments.ApplyInsert(Range{pos: resultLen, length: op.length}, op.commentIDs)
			b.WriteString(op.insertion)
			resultLen += op.length
		case *RemoveOp:
			fd.trackedChanges.ApplyDelete(resultLen, op.length)
			fd.comments.ApplyDelete(Range{pos: resultLen, length: op.length})
			cursor += op.length
		}
	}
	fd.content = b.String()
	return nil
}

// ApplyToString applies the operation to plain text, ignoring tracking and
// comments.
func (o *TextOperation) ApplyToString(s string) (string, error) {
	content := []rune(s)
	if err := o.validate(s, len(content)); err != nil {
		return "", err
	}
	var b strings.Builder
	cursor := 0
	for _, sop := range o.ops {
		switch op := sop.(type) {
		case *RetainOp:
			b.WriteString(string(content[cursor : cursor+op.length]))
			cursor += op.length
		case *InsertOp:
			b.WriteString(op.insertion)
		case *RemoveOp:
			cursor += op.length
		}
	}
	return b.String(), nil
}

// ApplyToLength returns the length of a document of the given length after
// the operation, without needing its content.
func (o *TextOperation) ApplyToLength(length int) (int, error) {
	if length != o.baseLength {
		return 0, &ApplyError{
			Message: fmt.Sprintf("operation base length %d does not match the document", o.baseLength),
			Length:  length,
		}
	}
	for _, sop := range o.ops {
		if ins, ok := sop.(*InsertOp); ok && containsNonBMP(ins.insertion) {
			return 0, &InvalidInsertionError{Insertion: ins.insertion}
		}
	}
	if o.targetLength > MaxStringLength {
		return 0, &TooLongError{ResultLength: o.targetLength}
	}
	return o.targetLength, nil
}

// Invert returns the operation that undoes o, given the file state o was
// applied to. Removed text is re-inserted with its tracking and comments.
func (o *TextOperation) Invert(prev *StringFileData) *TextOperation {
	content := []rune(prev.content)
	inverse := NewTextOperation()
	cursor := 0
	for _, sop := range o.ops {
		switch op := sop.(type) {
		case *RetainOp:
			if op.tracking == nil {
				inverse.Retain(op.length)
				cursor += op.length
				continue
			}
			end := cursor + op.length
			for _, tc := range prev.trackedChanges.changes {
				if tc.Range.End() <= cursor || tc.Range.Start() >= end {
					continue
				}
				if start := tc.Range.Start(); start > cursor {
					inverse.RetainTracked(start-cursor, ClearTrackingProps{})
					cursor = start
				}
				stop := min(tc.Range.End(), end)
				inverse.RetainTracked(stop-cursor, tc.Tracking)
				cursor = stop
			}
			if cursor < end {
				inverse.RetainTracked(end-cursor, ClearTrackingProps{})
				cursor = end
			}
		case *InsertOp:
			inverse.Remove(op.length)
		case *RemoveOp:
			for _, seg := range textSegments(cursor, op.length, prev.comments, prev.trackedChanges) {
				inverse.InsertWith(string(content[cursor:cursor+seg.length]), seg.tracking, seg.commentIDs)
				cursor += seg.length
			}
		}
	}
	return inverse
}

// CanBeComposedWith reports whether other can follow o in a single
// composed operation.
func (o *TextOperation) CanBeComposedWith(other EditOperation) bool {
	t, ok := other.(*TextOperation)
	return ok && o.targetLength == t.baseLength
}

// Compose returns a single operation equivalent to o followed by other.
// Where both set tracking on the same text, other's tracking wins.
func (o *TextOperation) Compose(other *TextOperation) (*TextOperation, error) {
	if o.targetLength != other.baseLength {
		return nil, fmt.Errorf("compose: second operation base length %d does not match first target length %d",
			other.baseLength, o.targetLength)
	}
	out := NewTextOperation()
	it1, it2 := newScanIterator(o.ops), newScanIterator(other.ops)
	for it1.cur != nil || it2.cur != nil {
		if rm, ok := it1.cur.(*RemoveOp); ok {
			out.Remove(rm.length)
			it1.next()
			continue
		}
		if ins, ok := it2.cur.(*InsertOp); ok {
			out.InsertWith(ins.insertion, ins.tracking, ins.commentIDs)
			it2.next()
			continue
		}
		if it1.cur == nil {
			return nil, errors.New("compose: first operation is too short")
		}
		if it2.cur == nil {
			return nil, errors.New("compose: first operation is too long")
		}
		n := min(it1.cur.Length(), it2.cur.Length())
		switch a := it1.cur.(type) {
		case *RetainOp:
			switch b := it2.cur.(type) {
			case *RetainOp:
				tracking := b.tracking
				if tracking == nil {
					tracking = a.tracking
				}
				out.RetainTracked(n, tracking)
			case *RemoveOp:
				out.Remove(n)
			}
		case *InsertOp:
			if b, ok := it2.cur.(*RetainOp); ok {
				tracking := a.tracking
				switch t := b.tracking.(type) {
				case *TrackingProps:
					tracking = t
				case ClearTrackingProps:
					tracking = nil
				}
				out.InsertWith(a.slice(0, n).insertion, tracking, a.commentIDs)
			}
			// an insert followed by a remove cancels out
		}
		it1.take(n)
		it2.take(n)
	}
	return out, nil
}

// TransformText transforms two concurrent operations a and b with the same
// base into a' and b' such that a then b' equals b then a'. When both insert
// at the same position, a's insertion comes first. When both change the
// tracking of the same text, a's tracking wins.
func TransformText(a, b *TextOperation) (*TextOperation, *TextOperation, error) {
	if a.baseLength != b.baseLength {
		return nil, nil, fmt.Errorf("transform: base lengths differ (%d != %d)", a.baseLength, b.baseLength)
	}
	aPrime, bPrime := NewTextOperation(), NewTextOperation()
	it1, it2 := newScanIterator(a.ops), newScanIterator(b.ops)
	for it1.cur != nil || it2.cur != nil {
		if ins, ok := it1.cur.(*InsertOp); ok {
			aPrime.InsertWith(ins.insertion, ins.tracking, ins.commentIDs)
			bPrime.Retain(ins.length)
			it1.next()
			continue
		}
		if ins, ok := it2.cur.(*InsertOp); ok {
			aPrime.Retain(ins.length)
			bPrime.InsertWith(ins.insertion, ins.tracking, ins.commentIDs)
			it2.next()
			continue
		}
		if it1.cur == nil {
			return nil, nil, errors.New("transform: first operation is too short")
		}
		if it2.cur == nil {
			return nil, nil, errors.New("transform: first operation is too long")
		}
		n := min(it1.cur.Length(), it2.cur.Length())
		switch x := it1.cur.(type) {
		case *RetainOp:
			switch y := it2.cur.(type) {
			case *RetainOp:
				aPrime.RetainTracked(n, x.tracking)
				if x.tracking == nil {
					bPrime.RetainTracked(n, y.tracking)
				} else {
					bPrime.Retain(n)
				}
			case *RemoveOp:
				bPrime.Remove(n)
			}
		case *RemoveOp:
			if _, ok := it2.cur.(*RetainOp); ok {
				aPrime.Remove(n)
			}
			// both removed the same text
		}
		it1.take(n)
		it2.take(n)
	}
	return aPrime, bPrime, nil
}

// scanIterator walks a list of scan ops, allowing the current op to be
// partially consumed.
type scanIterator struct {
	ops []ScanOp
	i   int
	cur ScanOp
}

func newScanIterator(ops []ScanOp) *scanIterator {
	it := &scanIterator{ops: ops}
	it.next()
	return it
}

func (it *scanIterator) next() {
	if it.i < len(it.ops) {
		it.cur = it.ops[it.i]
		it.i++
		return
	}
	it.cur = nil
}

// take consumes n characters of the current op.
func (it *scanIterator) take(n int) {
	if it.cur.Length() == n {
		it.next()
		return
	}
	switch op := it.cur.(type) {
	case *RetainOp:
		it.cur = &RetainOp{length: op.length - n, tracking: op.tracking}
	case *RemoveOp:
		it.cur = &RemoveOp{length: op.length - n}
	case *InsertOp:
		it.cur = op.slice(n, op.length)
	}
}

type textSegment struct {
	length     int
	tracking   *TrackingProps
	commentIDs []string
}

// textSegments splits [start, start+length) into spans with uniform
// tracking and comment membership.
func textSegments(start, length int, comments *CommentList, tcs *TrackedChangeList) []textSegment {
	end := start + length
	points := []int{start, end}
	cut := func(p int) {
		if p > start && p < end {
			points = append(points, p)
		}
	}
	for _, tc := range tcs.changes {
		cut(tc.Range.Start())
		cut(tc.Range.End())
	}
	for _, c := range comments.All() {
		for _, r := range c.ranges {
			cut(r.Start())
			cut(r.End())
		}
	}
	slices.Sort(points)
	points = slices.Compact(points)

	segments := make([]textSegment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		span := Range{pos: points[i], length: points[i+1] - points[i]}
		seg := textSegment{length: span.Length()}
		for _, tc := range tcs.changes {
			if tc.Range.Contains(span) {
				seg.tracking = tc.Tracking
				break
			}
		}
		for _, c := range comments.All() {
			for _, r := range c.ranges {
				if r.Contains(span) {
					seg.commentIDs = append(seg.commentIDs, c.id)
					break
				}
			}
		}
		segments = append(segments, seg)
	}
	return segments
}

func containsNonBMP(s string) bool {
	for _, r := range s {
		if r > 0xFFFF {
			return true
		}
	}
	return false
}
