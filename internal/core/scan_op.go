package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf8"
)

// ScanOp is one step of a TextOperation: a RetainOp, InsertOp or RemoveOp.
type ScanOp interface {
	// Length is the number of characters the op retains, inserts or removes.
	Length() int
	toJSON() any
	equal(other ScanOp) bool
}

// RetainOp keeps length characters, optionally changing their tracking.
type RetainOp struct {
	length   int
	tracking TrackingDirective
}

func (o *RetainOp) Length() int                 { return o.length }
func (o *RetainOp) Tracking() TrackingDirective { return o.tracking }

func (o *RetainOp) canMergeWith(other *RetainOp) bool {
	return trackingEqual(o.tracking, other.tracking)
}

func (o *RetainOp) toJSON() any {
	if o.tracking == nil {
		return o.length
	}
	return rawRetain{R: o.length, Tracking: o.tracking.toRaw()}
}

func (o *RetainOp) equal(other ScanOp) bool {
	r, ok := other.(*RetainOp)
	return ok && r.length == o.length && trackingEqual(o.tracking, r.tracking)
}

// InsertOp inserts text, optionally tracked and attached to comments.
type InsertOp struct {
	insertion  string
	length     int
	tracking   *TrackingProps
	commentIDs []string
}

func newInsertOp(s string, tracking *TrackingProps, commentIDs []string) *InsertOp {
	return &InsertOp{
		insertion:  s,
		length:     utf8.RuneCountInString(s),
		tracking:   tracking,
		commentIDs: slices.Clone(commentIDs),
	}
}

func (o *InsertOp) Length() int              { return o.length }
func (o *InsertOp) Insertion() string        { return o.insertion }
func (o *InsertOp) Tracking() *TrackingProps { return o.tracking }
func (o *InsertOp) CommentIDs() []string     { return slices.Clone(o.commentIDs) }

func (o *InsertOp) trackingDirective() TrackingDirective {
	if o.tracking == nil {
		return nil
	}
	return o.tracking
}

func (o *InsertOp) canMergeWith(other *InsertOp) bool {
	return trackingEqual(o.trackingDirective(), other.trackingDirective()) &&
		slices.Equal(o.commentIDs, other.commentIDs)
}

func (o *InsertOp) toJSON() any {
	if o.tracking == nil && len(o.commentIDs) == 0 {
		return o.insertion
	}
	raw := rawInsert{I: o.insertion, CommentIDs: o.commentIDs}
	if o.tracking != nil {
		raw.Tracking = o.tracking.toRaw()
	}
	return raw
}

func (o *InsertOp) equal(other ScanOp) bool {
	i, ok := other.(*InsertOp)
	return ok && i.insertion == o.insertion && o.canMergeWith(i)
}

// slice returns the insertion restricted to runes [from, to).
func (o *InsertOp) slice(from, to int) *InsertOp {
	runes := []rune(o.insertion)
	return newInsertOp(string(runes[from:to]), o.tracking, o.commentIDs)
}

// RemoveOp deletes length characters.
type RemoveOp struct {
	length int
}

func (o *RemoveOp) Length() int { return o.length }
func (o *RemoveOp) toJSON() any { return -o.length }

func (o *RemoveOp) equal(other ScanOp) bool {
	r, ok := other.(*RemoveOp)
	return ok && r.length == o.length
}

type rawRetain struct {
	R        int          `json:"r"`
	Tracking *RawTracking `json:"tracking,omitempty"`
}

type rawInsert struct {
	I          string       `json:"i"`
	Tracking   *RawTracking `json:"tracking,omitempty"`
	CommentIDs []string     `json:"commentIds,omitempty"`
}

// scanOpFromJSON decodes one element of a textOperation array.
func scanOpFromJSON(data json.RawMessage) (ScanOp, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case float64:
		n := int(t)
		if float64(n) != t {
			return nil, fmt.Errorf("invalid scan op %s", data)
		}
		if n > 0 {
			return &RetainOp{length: n}, nil
		}
		if n < 0 {
			return &RemoveOp{length: -n}, nil
		}
		return nil, fmt.Errorf("invalid scan op %s", data)
	case string:
		return newInsertOp(t, nil, nil), nil
	case map[string]any:
		if _, ok := t["i"]; ok {
			var raw rawInsert
			if err := json.Unmarshal(data, &raw); err != nil {
				return nil, err
			}
			var tracking *TrackingProps
			if raw.Tracking != nil {
				tp, err := TrackingPropsFromRaw(*raw.Tracking)
				if err != nil {
					return nil, err
				}
				tracking = tp
			}
			return newInsertOp(raw.I, tracking, raw.CommentIDs), nil
		}
		if _, ok := t["r"]; ok {
			var raw rawRetain
			if err := json.Unmarshal(data, &raw); err != nil {
				return nil, err
			}
			if raw.R <= 0 {
				return nil, fmt.Errorf("invalid retain length %d", raw.R)
			}
			tracking, err := trackingDirectiveFromRaw(raw.Tracking)
			if err != nil {
				return nil, err
			}
			return &RetainOp{length: raw.R, tracking: tracking}, nil
		}
	}
	return nil, fmt.Errorf("invalid scan op %s", data)
}
