// Package docupdater projects a file's comments and tracked changes into the
// positions used by the document updater, where tracked deletions are not
// part of the rendered text.
package docupdater

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"hist-go/internal/core"
)

// ErrNotLoaded is returned for files whose content is not in memory.
var ErrNotLoaded = errors.New("file content is not loaded")

// Ranges is the projected range state of one document.
type Ranges struct {
	Changes  []TrackedChangeEntry `json:"changes"`
	Comments []CommentEntry       `json:"comments"`
}

// TrackedChangeOp is an insertion (I) or deletion (D) at P.
type TrackedChangeOp struct {
	P int    `json:"p"`
	I string `json:"i,omitempty"`
	D string `json:"d,omitempty"`
}

type ChangeMetadata struct {
	UserID string `json:"user_id"`
	Ts     string `json:"ts"`
}

type TrackedChangeEntry struct {
	ID       string          `json:"id"`
	Op       TrackedChangeOp `json:"op"`
	Metadata ChangeMetadata  `json:"metadata"`
}

// CommentOp places the visible text C of thread T at P.
type CommentOp struct {
	P        int    `json:"p"`
	C        string `json:"c"`
	T        string `json:"t"`
	Resolved bool   `json:"resolved"`
}

type CommentEntry struct {
	ID string    `json:"id"`
	Op CommentOp `json:"op"`
}

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// GetRangesSnapshot projects the ranges of an eagerly loaded text file.
func GetRangesSnapshot(file *core.File) (*Ranges, error) {
	content, ok := file.Content()
	if !ok {
		return nil, ErrNotLoaded
	}
	runes := []rune(content)
	tracked := file.TrackedChanges().All()
	slices.SortStableFunc(tracked, func(a, b core.TrackedChange) int {
		return a.Range.Start() - b.Range.Start()
	})

	ranges := &Ranges{
		Changes:  projectChanges(runes, tracked),
		Comments: projectComments(runes, deletions(tracked), file.Comments().All()),
	}
	return ranges, nil
}

func projectChanges(runes []rune, tracked []core.TrackedChange) []TrackedChangeEntry {
	out := make([]TrackedChangeEntry, 0, len(tracked))
	offset := 0
	for i, tc := range tracked {
		text := slice(runes, tc.Range.Start(), tc.Range.End())
		op := TrackedChangeOp{P: tc.Range.Start() - offset}
		if tc.Tracking.Type == core.TrackingDelete {
			op.D = text
			offset += tc.Range.Length()
		} else {
			op.I = text
		}
		out = append(out, TrackedChangeEntry{
			ID: changeID(i),
			Op: op,
			Metadata: ChangeMetadata{
				UserID: tc.Tracking.UserID,
				Ts:     tc.Tracking.Ts.UTC().Format(timestampFormat),
			},
		})
	}
	return out
}

// projectComments walks comments in order of their start alongside the
// sorted deletions. Deletions wholly before a comment are counted once and
// skipped by later comments.
func projectComments(runes []rune, dels []core.Range, comments []*core.Comment) []CommentEntry {
	out := make([]CommentEntry, len(comments))
	order := make([]int, 0, len(comments))
	for i, c := range comments {
		ranges := c.Ranges()
		if len(ranges) == 0 {
			out[i] = CommentEntry{ID: c.ID(), Op: CommentOp{T: c.ID(), Resolved: c.Resolved()}}
			continue
		}
		order = append(order, i)
	}
	start := func(i int) int { return comments[i].Ranges()[0].Start() }
	slices.SortStableFunc(order, func(a, b int) int { return start(a) - start(b) })

	next, deletedBefore := 0, 0
	for _, i := range order {
		c := comments[i]
		ranges := c.Ranges()
		span := core.MustRange(ranges[0].Start(), ranges[len(ranges)-1].End()-ranges[0].Start())

		for next < len(dels) && dels[next].End() <= span.Start() {
			deletedBefore += dels[next].Length()
			next++
		}
		shift := deletedBefore
		var text strings.Builder
		cursor := span.Start()
		for _, d := range dels[next:] {
			if d.Start() >= span.End() {
				break
			}
			if d.Start() < span.Start() {
				shift += span.Start() - d.Start()
			}
			if d.Start() > cursor {
				text.WriteString(slice(runes, cursor, d.Start()))
			}
			cursor = max(cursor, d.End())
		}
		if cursor < span.End() {
			text.WriteString(slice(runes, cursor, span.End()))
		}

		out[i] = CommentEntry{
			ID: c.ID(),
			Op: CommentOp{
				P:        span.Start() - shift,
				C:        text.String(),
				T:        c.ID(),
				Resolved: c.Resolved(),
			},
		}
	}
	return out
}

func deletions(tracked []core.TrackedChange) []core.Range {
	var out []core.Range
	for _, tc := range tracked {
		if tc.Tracking.Type == core.TrackingDelete {
			out = append(out, tc.Range)
		}
	}
	return out
}

// slice returns runes[from:to], clamped to the content.
func slice(runes []rune, from, to int) string {
	to = min(to, len(runes))
	from = min(from, to)
	return string(runes[from:to])
}

func changeID(i int) string {
	return fmt.Sprintf("%024x", i+1)
}
