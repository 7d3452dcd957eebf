package core

import "slices"

// CommentList holds the comments of one file, in insertion order.
type CommentList struct {
	order    []string
	comments map[string]*Comment
}

// NewCommentList creates a list from the given comments. Later comments
// replace earlier ones with the same id.
func NewCommentList(comments ...*Comment) *CommentList {
	l := &CommentList{comments: make(map[string]*Comment)}
	for _, c := range comments {
		l.Add(c)
	}
	return l
}

// CommentListFromRaw decodes a stored comment list.
func CommentListFromRaw(raw []RawComment) (*CommentList, error) {
	l := NewCommentList()
	for _, rc := range raw {
		c, err := CommentFromRaw(rc)
		if err != nil {
			return nil, err
		}
		l.Add(c)
	}
	return l, nil
}

// ToRaw encodes the list for storage.
func (l *CommentList) ToRaw() []RawComment {
	raw := make([]RawComment, 0, len(l.order))
	for _, c := range l.All() {
		raw = append(raw, c.ToRaw())
	}
	return raw
}

// Add inserts a comment, replacing any comment with the same id in place.
func (l *CommentList) Add(c *Comment) {
	if _, ok := l.comments[c.id]; !ok {
		l.order = append(l.order, c.id)
	}
	l.comments[c.id] = c
}

// Delete removes a comment. Deleting an unknown id is a no-op.
func (l *CommentList) Delete(id string) {
	if _, ok := l.comments[id]; !ok {
		return
	}
	delete(l.comments, id)
	l.order = slices.DeleteFunc(slices.Clone(l.order), func(s string) bool { return s == id })
}

// Get returns the comment with the given id, or nil.
func (l *CommentList) Get(id string) *Comment {
	return l.comments[id]
}

func (l *CommentList) Len() int      { return len(l.order) }
func (l *CommentList) IDs() []string { return slices.Clone(l.order) }

// All returns the comments in insertion order.
func (l *CommentList) All() []*Comment {
	out := make([]*Comment, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.comments[id])
	}
	return out
}

// ApplyInsert updates every comment for an insertion covering r. Comments
// whose id is in commentIDs are extended over the inserted text.
func (l *CommentList) ApplyInsert(r Range, commentIDs []string) {
	for _, c := range l.All() {
		c.ApplyInsert(r.Start(), r.Length(), slices.Contains(commentIDs, c.id))
	}
}

// ApplyDelete updates every comment for the removal of r.
func (l *CommentList) ApplyDelete(r Range) {
	for _, c := range l.All() {
		c.ApplyDelete(r)
	}
}

// Clone returns a deep copy of the list.
func (l *CommentList) Clone() *CommentList {
	out := NewCommentList()
	for _, c := range l.All() {
		out.Add(c.Clone())
	}
	return out
}

func (l *CommentList) equal(other *CommentList) bool {
	return slices.EqualFunc(l.All(), other.All(), (*Comment).equal)
}
