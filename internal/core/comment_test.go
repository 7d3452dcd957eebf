package core_test

import (
	"encoding/json"
	"slices"
	"testing"

	"hist-go/internal/core"
)

func rangesEqual(a, b []core.Range) bool {
	return slices.EqualFunc(a, b, core.Range.Equal)
}

func TestComment_ApplyInsert(t *testing.T) {
	tests := []struct {
		name   string
		cursor int
		length int
		extend bool
		want   []core.Range
	}{
		{"at end without extend", 10, 3, false, []core.Range{rng(5, 5)}},
		{"at end with extend", 10, 3, true, []core.Range{rng(5, 8)}},
		{"at start without extend", 5, 3, false, []core.Range{rng(8, 5)}},
		{"at start with extend", 5, 3, true, []core.Range{rng(5, 8)}},
		{"before", 2, 3, false, []core.Range{rng(8, 5)}},
		{"inside without extend", 7, 3, false, []core.Range{rng(5, 2), rng(10, 3)}},
		{"inside with extend", 7, 3, true, []core.Range{rng(5, 8)}},
		{"after", 12, 3, false, []core.Range{rng(5, 5)}},
		{"after with extend adds a range", 20, 3, true, []core.Range{rng(5, 5), rng(20, 3)}},
		{"zero length inside", 7, 0, false, []core.Range{rng(5, 5)}},
		{"zero length at start", 5, 0, false, []core.Range{rng(5, 5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := core.NewComment("c1", []core.Range{rng(5, 5)}, false)
			c.ApplyInsert(tt.cursor, tt.length, tt.extend)
			if got := c.Ranges(); !rangesEqual(got, tt.want) {
				t.Errorf("ApplyInsert(%d, %d, %v) ranges = %v, want %v", tt.cursor, tt.length, tt.extend, got, tt.want)
			}
		})
	}
}

func TestComment_ApplyDelete(t *testing.T) {
	tests := []struct {
		name    string
		ranges  []core.Range
		deleted core.Range
		want    []core.Range
	}{
		{"before shifts left", []core.Range{rng(10, 5)}, rng(0, 4), []core.Range{rng(6, 5)}},
		{"after unchanged", []core.Range{rng(10, 5)}, rng(20, 4), []core.Range{rng(10, 5)}},
		{"inside shrinks", []core.Range{rng(10, 5)}, rng(11, 2), []core.Range{rng(10, 3)}},
		{"covering removes", []core.Range{rng(10, 5)}, rng(5, 20), nil},
		{"spanning two ranges merges them", []core.Range{rng(5, 5), rng(20, 5)}, rng(8, 14), []core.Range{rng(5, 6)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := core.NewComment("c1", tt.ranges, false)
			c.ApplyDelete(tt.deleted)
			if got := c.Ranges(); !rangesEqual(got, tt.want) {
				t.Errorf("ApplyDelete(%v) ranges = %v, want %v", tt.deleted, got, tt.want)
			}
		})
	}
}

func TestNewComment_MergesRanges(t *testing.T) {
	c := core.NewComment("c1", []core.Range{rng(10, 5), rng(0, 3), rng(3, 2), rng(7, 0)}, false)
	want := []core.Range{rng(0, 5), rng(10, 5)}
	if got := c.Ranges(); !rangesEqual(got, want) {
		t.Fatalf("Ranges() = %v, want %v", got, want)
	}

	again := core.NewComment("c1", c.Ranges(), false)
	if got := again.Ranges(); !rangesEqual(got, want) {
		t.Errorf("re-merged Ranges() = %v, want %v", got, want)
	}
}

func TestComment_ApplyTextOperation(t *testing.T) {
	c := core.NewComment("c1", []core.Range{rng(5, 5)}, false)
	op := core.NewTextOperation().Retain(2).Insert("xx").Retain(8).InsertWith("yy", nil, []string{"c1"}).Retain(5)
	c.ApplyTextOperation(op)

	want := []core.Range{rng(7, 7)}
	if got := c.Ranges(); !rangesEqual(got, want) {
		t.Errorf("Ranges() = %v, want %v", got, want)
	}
}

func TestComment_RawRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"open", `{"id":"c1","ranges":[{"pos":1,"length":2}]}`},
		{"resolved", `{"id":"c2","ranges":[{"pos":0,"length":4}],"resolved":true}`},
		{"detached", `{"id":"c3","ranges":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var raw core.RawComment
			if err := json.Unmarshal([]byte(tt.json), &raw); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			c, err := core.CommentFromRaw(raw)
			if err != nil {
				t.Fatalf("CommentFromRaw() error = %v", err)
			}
			got, err := json.Marshal(c.ToRaw())
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.json {
				t.Errorf("round trip = %s, want %s", got, tt.json)
			}
		})
	}
}

func TestCommentList(t *testing.T) {
	l := core.NewCommentList(
		core.NewComment("a", []core.Range{rng(0, 2)}, false),
		core.NewComment("b", []core.Range{rng(4, 2)}, false),
	)

	l.Add(core.NewComment("a", []core.Range{rng(1, 1)}, true))
	if got := l.IDs(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("IDs() after replace = %v, want [a b]", got)
	}
	if !l.Get("a").Resolved() {
		t.Error("replaced comment should be resolved")
	}

	l.Delete("missing")
	l.Delete("a")
	if l.Len() != 1 || l.Get("a") != nil {
		t.Errorf("after Delete(a) Len() = %d, want 1", l.Len())
	}

	l.ApplyInsert(rng(0, 3), []string{"b"})
	want := []core.Range{rng(0, 3), rng(7, 2)}
	if got := l.Get("b").Ranges(); !rangesEqual(got, want) {
		t.Errorf("b ranges = %v, want %v", got, want)
	}
}
