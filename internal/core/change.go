package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Change is an atomic, attributed group of operations.
type Change struct {
	operations     []Operation
	timestamp      time.Time
	authors        Authors
	origin         *Origin
	projectVersion string
	v2DocVersions  V2DocVersions
}

// RawChange is the storage form of a Change.
type RawChange struct {
	Operations     []json.RawMessage `json:"operations"`
	Timestamp      string            `json:"timestamp"`
	Authors        []*int64          `json:"authors"`
	V2Authors      []*string         `json:"v2Authors,omitempty"`
	Origin         *Origin           `json:"origin,omitempty"`
	ProjectVersion string            `json:"projectVersion,omitempty"`
	V2DocVersions  V2DocVersions     `json:"v2DocVersions,omitempty"`
}

// ApplyOptions controls Change.ApplyTo.
type ApplyOptions struct {
	// Strict makes operations on missing files fail instead of being
	// skipped.
	Strict bool
}

// NewChange creates a change. authors may be nil.
func NewChange(operations []Operation, timestamp time.Time, authors Authors) *Change {
	return &Change{
		operations: slices.Clone(operations),
		timestamp:  timestamp.UTC(),
		authors:    authors,
	}
}

// ChangeFromRaw decodes a stored change.
func ChangeFromRaw(raw RawChange) (*Change, error) {
	ops := make([]Operation, 0, len(raw.Operations))
	for i, data := range raw.Operations {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		op, err := OperationFromRaw(fields)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("change timestamp: %w", err)
	}
	authors, err := authorsFromRaw(raw.Authors, raw.V2Authors)
	if err != nil {
		return nil, err
	}
	c := &Change{
		operations:    ops,
		timestamp:     ts,
		authors:       authors,
		origin:        raw.Origin,
		v2DocVersions: raw.V2DocVersions.Clone(),
	}
	if raw.ProjectVersion != "" {
		if err := c.SetProjectVersion(raw.ProjectVersion); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Change) ToRaw() RawChange {
	ops := make([]map[string]any, 0, len(c.operations))
	for _, op := range c.operations {
		ops = append(ops, op.ToRaw())
	}
	return c.rawWith(ops)
}

func (c *Change) rawWith(ops []map[string]any) RawChange {
	raw := RawChange{
		Operations:     make([]json.RawMessage, 0, len(ops)),
		Timestamp:      formatTimestamp(c.timestamp),
		Origin:         c.origin,
		ProjectVersion: c.projectVersion,
		V2DocVersions:  c.v2DocVersions.Clone(),
	}
	for _, op := range ops {
		data, _ := json.Marshal(op)
		raw.Operations = append(raw.Operations, data)
	}
	raw.Authors, raw.V2Authors = authorsToRaw(c.authors)
	return raw
}

func (c *Change) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToRaw())
}

func (c *Change) UnmarshalJSON(data []byte) error {
	var raw RawChange
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := ChangeFromRaw(raw)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

func (c *Change) Operations() []Operation      { return slices.Clone(c.operations) }
func (c *Change) Timestamp() time.Time         { return c.timestamp }
func (c *Change) Authors() Authors             { return c.authors }
func (c *Change) Origin() *Origin              { return c.origin }
func (c *Change) ProjectVersion() string       { return c.projectVersion }
func (c *Change) V2DocVersions() V2DocVersions { return c.v2DocVersions.Clone() }

func (c *Change) SetOrigin(o *Origin)              { c.origin = o }
func (c *Change) SetV2DocVersions(v V2DocVersions) { c.v2DocVersions = v.Clone() }

// SetProjectVersion sets the version the snapshot advances to, of the form
// "N.N".
func (c *Change) SetProjectVersion(v string) error {
	if !projectVersionPattern.MatchString(v) {
		return fmt.Errorf("invalid project version %q", v)
	}
	c.projectVersion = v
	return nil
}

// Clone returns a copy sharing the immutable operations.
func (c *Change) Clone() *Change {
	out := *c
	out.operations = slices.Clone(c.operations)
	out.v2DocVersions = c.v2DocVersions.Clone()
	return &out
}

// isMissingFile reports whether err is one of the conditions that older
// histories contain and that non-strict application skips.
func isMissingFile(err error) bool {
	var notFound *FileNotFoundError
	var editMissing *EditMissingFileError
	return errors.As(err, &notFound) || errors.As(err, &editMissing)
}

// ApplyTo applies every operation to s in order.
func (c *Change) ApplyTo(s *Snapshot, opts ApplyOptions) error {
	for _, err := range c.IterativelyApplyTo(s, opts) {
		if err != nil {
			return err
		}
	}
	return nil
}

// IterativelyApplyTo applies the operations one at a time, yielding each
// after it has been applied. Iteration stops at the first error. The
// snapshot's version and timestamp are updated once every operation has
// been applied.
func (c *Change) IterativelyApplyTo(s *Snapshot, opts ApplyOptions) iter.Seq2[Operation, error] {
	return func(yield func(Operation, error) bool) {
		for _, op := range c.operations {
			if err := op.ApplyTo(s); err != nil {
				if opts.Strict || !isMissingFile(err) {
					yield(op, err)
					return
				}
			}
			if !yield(op, nil) {
				return
			}
		}
		if c.projectVersion != "" {
			s.projectVersion = c.projectVersion
		}
		s.UpdateV2DocVersions(c.v2DocVersions)
		s.SetTimestamp(c.timestamp)
	}
}

// TransformAfter rewrites c's operations to apply after other, which was
// made concurrently against the same snapshot.
func (c *Change) TransformAfter(other *Change) error {
	ops, _, err := transformOperationLists(c.operations, other.operations)
	if err != nil {
		return err
	}
	c.operations = ops
	return nil
}

// TransformChanges transforms two concurrent changes into a' and b' so that
// a then b' and b then a' give the same snapshot.
func TransformChanges(a, b *Change) (*Change, *Change, error) {
	aOps, bOps, err := transformOperationLists(a.operations, b.operations)
	if err != nil {
		return nil, nil, err
	}
	aPrime, bPrime := a.Clone(), b.Clone()
	aPrime.operations, bPrime.operations = aOps, bOps
	return aPrime, bPrime, nil
}

func transformOperationLists(as, bs []Operation) ([]Operation, []Operation, error) {
	as, bs = slices.Clone(as), slices.Clone(bs)
	for j := range bs {
		for i := range as {
			aPrime, bPrime, err := TransformOperations(as[i], bs[j])
			if err != nil {
				return nil, nil, err
			}
			as[i], bs[j] = aPrime, bPrime
		}
	}
	return as, bs, nil
}

// CanBeComposedWith reports whether two single-operation changes can be
// merged into one.
func (c *Change) CanBeComposedWith(other *Change) bool {
	return len(c.operations) == 1 && len(other.operations) == 1 &&
		c.operations[0].CanBeComposedWith(other.operations[0])
}

// Compose merges other into c, keeping other's timestamp.
func (c *Change) Compose(other *Change) (*Change, error) {
	if !c.CanBeComposedWith(other) {
		return nil, errors.New("changes cannot be composed")
	}
	op, err := ComposeOperations(c.operations[0], other.operations[0])
	if err != nil {
		return nil, err
	}
	out := NewChange([]Operation{op}, other.timestamp, mergeAuthors(c.authors, other.authors))
	out.origin = other.origin
	if out.origin == nil {
		out.origin = c.origin
	}
	out.projectVersion = other.projectVersion
	if out.projectVersion == "" {
		out.projectVersion = c.projectVersion
	}
	out.v2DocVersions = c.v2DocVersions.Clone()
	if len(other.v2DocVersions) > 0 {
		if out.v2DocVersions == nil {
			out.v2DocVersions = make(V2DocVersions)
		}
		for id, v := range other.v2DocVersions {
			out.v2DocVersions[id] = v
		}
	}
	return out, nil
}

// LoadFiles loads the files of any added files.
func (c *Change) LoadFiles(ctx context.Context, kind LoadKind, store BlobStore, concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, op := range c.operations {
		g.Go(func() error { return op.LoadFiles(ctx, kind, store) })
	}
	return g.Wait()
}

// Store persists the content of added files, running at most concurrency
// uploads at once, and returns the raw change with duplicate authors
// removed.
func (c *Change) Store(ctx context.Context, store BlobStore, concurrency int) (RawChange, error) {
	ops := make([]map[string]any, len(c.operations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, op := range c.operations {
		g.Go(func() error {
			raw, err := op.Store(gctx, store)
			if err != nil {
				return err
			}
			ops[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RawChange{}, err
	}
	if c.authors != nil {
		c.authors = c.authors.dedupe()
	}
	return c.rawWith(ops), nil
}
