package core

import (
	"errors"
	"slices"
)

// Authors identifies who made a change. It is either LegacyAuthors, the
// numeric ids of older records, or ModernAuthors, opaque string ids. A nil
// Authors means no author.
type Authors interface {
	Len() int
	dedupe() Authors
}

// LegacyAuthors are numeric user ids. 0 is an anonymous author.
type LegacyAuthors []int64

// ModernAuthors are opaque user ids. "" is an anonymous author.
type ModernAuthors []string

func (a LegacyAuthors) Len() int { return len(a) }
func (a ModernAuthors) Len() int { return len(a) }

func (a LegacyAuthors) dedupe() Authors { return LegacyAuthors(dedupe(a)) }
func (a ModernAuthors) dedupe() Authors { return ModernAuthors(dedupe(a)) }

func dedupe[T comparable](ids []T) []T {
	seen := make(map[T]bool, len(ids))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// authorsFromRaw decodes the authors and v2Authors fields. A stored author
// id of 0 or null is anonymous.
func authorsFromRaw(legacy []*int64, modern []*string) (Authors, error) {
	if len(legacy) > 0 && len(modern) > 0 {
		return nil, errors.New("change has both authors and v2Authors")
	}
	if len(modern) > 0 {
		out := make(ModernAuthors, 0, len(modern))
		for _, id := range modern {
			if id == nil {
				out = append(out, "")
				continue
			}
			out = append(out, *id)
		}
		return out, nil
	}
	if len(legacy) > 0 {
		out := make(LegacyAuthors, 0, len(legacy))
		for _, id := range legacy {
			if id == nil {
				out = append(out, 0)
				continue
			}
			out = append(out, *id)
		}
		return out, nil
	}
	return nil, nil
}

// authorsToRaw encodes authors as the authors and v2Authors fields.
// Anonymous authors are written as null.
func authorsToRaw(a Authors) ([]*int64, []*string) {
	legacy := []*int64{}
	switch t := a.(type) {
	case LegacyAuthors:
		for _, id := range t {
			if id == 0 {
				legacy = append(legacy, nil)
				continue
			}
			legacy = append(legacy, &id)
		}
	case ModernAuthors:
		modern := make([]*string, 0, len(t))
		for _, id := range t {
			if id == "" {
				modern = append(modern, nil)
				continue
			}
			modern = append(modern, &id)
		}
		return legacy, modern
	}
	return legacy, nil
}

// mergeAuthors joins the authors of two changes. Mixed kinds cannot be
// merged and keep b's authors.
func mergeAuthors(a, b Authors) Authors {
	switch x := a.(type) {
	case LegacyAuthors:
		if y, ok := b.(LegacyAuthors); ok {
			return LegacyAuthors(dedupe(slices.Concat(x, y)))
		}
	case ModernAuthors:
		if y, ok := b.(ModernAuthors); ok {
			return ModernAuthors(dedupe(slices.Concat(x, y)))
		}
	case nil:
		return b
	}
	if b == nil {
		return a
	}
	return b
}

// Author is a collaborator referenced by id from a change.
type Author struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}
