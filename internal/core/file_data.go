package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// LoadKind selects how much of a file's content Load materialises.
type LoadKind int

const (
	// LoadEager fetches the full content and ranges.
	LoadEager LoadKind = iota
	// LoadLazy keeps a hash reference but records the string length, so
	// edits can be queued without fetching content.
	LoadLazy
	// LoadHollow keeps only lengths.
	LoadHollow
)

func (k LoadKind) String() string {
	switch k {
	case LoadEager:
		return "eager"
	case LoadLazy:
		return "lazy"
	case LoadHollow:
		return "hollow"
	}
	return fmt.Sprintf("LoadKind(%d)", int(k))
}

// ParseLoadKind maps "eager", "lazy" or "hollow" to a LoadKind.
func ParseLoadKind(s string) (LoadKind, error) {
	switch s {
	case "eager":
		return LoadEager, nil
	case "lazy":
		return LoadLazy, nil
	case "hollow":
		return LoadHollow, nil
	}
	return 0, fmt.Errorf("unknown load kind %q", s)
}

// FileData is the content representation of a File. Implementations are
// *HashFileData, *BinaryFileData, *LazyStringFileData, *StringFileData,
// *HollowStringFileData and *HollowBinaryFileData.
type FileData interface {
	// Hash returns the content hash, or "" if it is not known without
	// storing the content.
	Hash() string
	RangesHash() string
	ByteLength() (int, bool)
	StringLength() (int, bool)
	IsEditable() bool
	// Edit applies op. Only editable representations accept edits.
	Edit(op EditOperation) error
	// Load returns the representation for kind, fetching from store as
	// needed. The receiver is not modified.
	Load(ctx context.Context, kind LoadKind, store BlobStore) (FileData, error)
	// Store persists the content and returns its hash reference.
	Store(ctx context.Context, store BlobStore) (RawFileData, error)
	ToRaw() RawFileData
	Clone() FileData
}

// RawFileData is the storage form of every FileData variant. Which fields are
// set determines the variant.
type RawFileData struct {
	Hash           string             `json:"hash,omitempty"`
	RangesHash     string             `json:"rangesHash,omitempty"`
	ByteLength     *int               `json:"byteLength,omitempty"`
	StringLength   *int               `json:"stringLength,omitempty"`
	Content        *string            `json:"content,omitempty"`
	Comments       []RawComment       `json:"comments,omitempty"`
	TrackedChanges []RawTrackedChange `json:"trackedChanges,omitempty"`
	Operations     []json.RawMessage  `json:"operations,omitempty"`
}

// rawRanges is the blob stored under a rangesHash.
type rawRanges struct {
	Comments       []RawComment       `json:"comments,omitempty"`
	TrackedChanges []RawTrackedChange `json:"trackedChanges,omitempty"`
}

// FileDataFromRaw decodes a stored file content record.
func FileDataFromRaw(raw RawFileData) (FileData, error) {
	switch {
	case raw.Hash != "" && raw.ByteLength != nil:
		return &BinaryFileData{hash: raw.Hash, byteLength: *raw.ByteLength}, nil
	case raw.Hash != "" && raw.StringLength != nil:
		ops := make([]EditOperation, 0, len(raw.Operations))
		for _, data := range raw.Operations {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				return nil, fmt.Errorf("lazy operation: %w", err)
			}
			op, err := EditOperationFromRaw(fields)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		return &LazyStringFileData{
			hash:         raw.Hash,
			rangesHash:   raw.RangesHash,
			stringLength: *raw.StringLength,
			operations:   ops,
		}, nil
	case raw.Hash != "":
		return &HashFileData{hash: raw.Hash, rangesHash: raw.RangesHash}, nil
	case raw.ByteLength != nil:
		return &HollowBinaryFileData{byteLength: *raw.ByteLength}, nil
	case raw.StringLength != nil:
		return &HollowStringFileData{stringLength: *raw.StringLength}, nil
	case raw.Content != nil:
		return StringFileDataFromRaw(*raw.Content, raw.Comments, raw.TrackedChanges)
	}
	return nil, errors.New("file data has no hash, content or length")
}

func intPtr(n int) *int { return &n }

// HashFileData refers to content by hash only.
type HashFileData struct {
	hash       string
	rangesHash string
}

func NewHashFileData(hash, rangesHash string) *HashFileData {
	return &HashFileData{hash: hash, rangesHash: rangesHash}
}

func (d *HashFileData) Hash() string              { return d.hash }
func (d *HashFileData) RangesHash() string        { return d.rangesHash }
func (d *HashFileData) ByteLength() (int, bool)   { return 0, false }
func (d *HashFileData) StringLength() (int, bool) { return 0, false }
func (d *HashFileData) IsEditable() bool          { return false }
func (d *HashFileData) Edit(EditOperation) error  { return &NotEditableError{Kind: "hash"} }
func (d *HashFileData) Clone() FileData           { c := *d; return &c }

func (d *HashFileData) ToRaw() RawFileData {
	return RawFileData{Hash: d.hash, RangesHash: d.rangesHash}
}

func (d *HashFileData) Store(context.Context, BlobStore) (RawFileData, error) {
	return d.ToRaw(), nil
}

func (d *HashFileData) Load(ctx context.Context, kind LoadKind, store BlobStore) (FileData, error) {
	blob, err := store.GetBlob(ctx, d.hash)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, &BlobNotFoundError{Hash: d.hash}
	}
	stringLength, isString := blob.StringLength()
	if !isString {
		binary := &BinaryFileData{hash: d.hash, byteLength: blob.ByteLength()}
		return binary.Load(ctx, kind, store)
	}
	lazy := &LazyStringFileData{hash: d.hash, rangesHash: d.rangesHash, stringLength: stringLength}
	return lazy.Load(ctx, kind, store)
}

// BinaryFileData is content that cannot be edited as text.
type BinaryFileData struct {
	hash       string
	byteLength int
}

func NewBinaryFileData(hash string, byteLength int) *BinaryFileData {
	return &BinaryFileData{hash: hash, byteLength: byteLength}
}

func (d *BinaryFileData) Hash() string              { return d.hash }
func (d *BinaryFileData) RangesHash() string        { return "" }
func (d *BinaryFileData) ByteLength() (int, bool)   { return d.byteLength, true }
func (d *BinaryFileData) StringLength() (int, bool) { return 0, false }
func (d *BinaryFileData) IsEditable() bool          { return false }
func (d *BinaryFileData) Edit(EditOperation) error  { return &NotEditableError{Kind: "binary"} }
func (d *BinaryFileData) Clone() FileData           { c := *d; return &c }

func (d *BinaryFileData) ToRaw() RawFileData {
	return RawFileData{Hash: d.hash, ByteLength: intPtr(d.byteLength)}
}

func (d *BinaryFileData) Store(context.Context, BlobStore) (RawFileData, error) {
	return RawFileData{Hash: d.hash}, nil
}

func (d *BinaryFileData) Load(_ context.Context, kind LoadKind, _ BlobStore) (FileData, error) {
	if kind == LoadHollow {
		return &HollowBinaryFileData{byteLength: d.byteLength}, nil
	}
	return d, nil
}

// HollowBinaryFileData records only the size of binary content.
type HollowBinaryFileData struct {
	byteLength int
}

func NewHollowBinaryFileData(byteLength int) *HollowBinaryFileData {
	return &HollowBinaryFileData{byteLength: byteLength}
}

func (d *HollowBinaryFileData) Hash() string              { return "" }
func (d *HollowBinaryFileData) RangesHash() string        { return "" }
func (d *HollowBinaryFileData) ByteLength() (int, bool)   { return d.byteLength, true }
func (d *HollowBinaryFileData) StringLength() (int, bool) { return 0, false }
func (d *HollowBinaryFileData) IsEditable() bool          { return false }
func (d *HollowBinaryFileData) Edit(EditOperation) error  { return &NotEditableError{Kind: "hollow binary"} }
func (d *HollowBinaryFileData) Clone() FileData           { c := *d; return &c }

func (d *HollowBinaryFileData) ToRaw() RawFileData {
	return RawFileData{ByteLength: intPtr(d.byteLength)}
}

func (d *HollowBinaryFileData) Store(context.Context, BlobStore) (RawFileData, error) {
	return RawFileData{}, errors.New("hollow files cannot be stored")
}

func (d *HollowBinaryFileData) Load(context.Context, LoadKind, BlobStore) (FileData, error) {
	return d, nil
}

// HollowStringFileData records only the length of text content. Edits
// update the length.
type HollowStringFileData struct {
	stringLength int
}

func NewHollowStringFileData(stringLength int) *HollowStringFileData {
	return &HollowStringFileData{stringLength: stringLength}
}

func (d *HollowStringFileData) Hash() string              { return "" }
func (d *HollowStringFileData) RangesHash() string        { return "" }
func (d *HollowStringFileData) ByteLength() (int, bool)   { return 0, false }
func (d *HollowStringFileData) StringLength() (int, bool) { return d.stringLength, true }
func (d *HollowStringFileData) IsEditable() bool          { return true }
func (d *HollowStringFileData) Clone() FileData           { c := *d; return &c }

func (d *HollowStringFileData) Edit(op EditOperation) error {
	n, err := op.ApplyToLength(d.stringLength)
	if err != nil {
		return err
	}
	d.stringLength = n
	return nil
}

func (d *HollowStringFileData) ToRaw() RawFileData {
	return RawFileData{StringLength: intPtr(d.stringLength)}
}

func (d *HollowStringFileData) Store(context.Context, BlobStore) (RawFileData, error) {
	return RawFileData{}, errors.New("hollow files cannot be stored")
}

func (d *HollowStringFileData) Load(context.Context, LoadKind, BlobStore) (FileData, error) {
	return d, nil
}

// LazyStringFileData refers to stored text by hash and queues edits until
// the content is loaded.
type LazyStringFileData struct {
	hash         string
	rangesHash   string
	stringLength int
	operations   []EditOperation
}

func NewLazyStringFileData(hash, rangesHash string, stringLength int) *LazyStringFileData {
	return &LazyStringFileData{hash: hash, rangesHash: rangesHash, stringLength: stringLength}
}

// Hash is known only while no edits are queued.
func (d *LazyStringFileData) Hash() string {
	if len(d.operations) > 0 {
		return ""
	}
	return d.hash
}

func (d *LazyStringFileData) RangesHash() string {
	if len(d.operations) > 0 {
		return ""
	}
	return d.rangesHash
}

func (d *LazyStringFileData) ByteLength() (int, bool)     { return 0, false }
func (d *LazyStringFileData) StringLength() (int, bool)   { return d.stringLength, true }
func (d *LazyStringFileData) IsEditable() bool            { return true }
func (d *LazyStringFileData) Operations() []EditOperation { return append([]EditOperation(nil), d.operations...) }

func (d *LazyStringFileData) Clone() FileData {
	c := *d
	c.operations = d.Operations()
	return &c
}

func (d *LazyStringFileData) Edit(op EditOperation) error {
	n, err := op.ApplyToLength(d.stringLength)
	if err != nil {
		return err
	}
	d.stringLength = n
	d.operations = append(d.operations, op)
	return nil
}

func (d *LazyStringFileData) ToRaw() RawFileData {
	raw := RawFileData{Hash: d.hash, RangesHash: d.rangesHash, StringLength: intPtr(d.stringLength)}
	for _, op := range d.operations {
		data, _ := json.Marshal(op.ToRaw())
		raw.Operations = append(raw.Operations, data)
	}
	return raw
}

func (d *LazyStringFileData) Load(ctx context.Context, kind LoadKind, store BlobStore) (FileData, error) {
	switch kind {
	case LoadHollow:
		return &HollowStringFileData{stringLength: d.stringLength}, nil
	case LoadLazy:
		return d, nil
	}
	content, err := store.GetString(ctx, d.hash)
	if err != nil {
		return nil, err
	}
	var ranges rawRanges
	if d.rangesHash != "" {
		if err := store.GetObject(ctx, d.rangesHash, &ranges); err != nil {
			return nil, err
		}
	}
	fd, err := StringFileDataFromRaw(content, ranges.Comments, ranges.TrackedChanges)
	if err != nil {
		return nil, err
	}
	for _, op := range d.operations {
		if err := fd.Edit(op); err != nil {
			return nil, err
		}
	}
	return fd, nil
}

func (d *LazyStringFileData) Store(ctx context.Context, store BlobStore) (RawFileData, error) {
	if len(d.operations) == 0 {
		return RawFileData{Hash: d.hash, RangesHash: d.rangesHash}, nil
	}
	eager, err := d.Load(ctx, LoadEager, store)
	if err != nil {
		return RawFileData{}, err
	}
	return eager.Store(ctx, store)
}

// StringFileData holds editable text with its comments and tracked changes.
type StringFileData struct {
	content        string
	comments       *CommentList
	trackedChanges *TrackedChangeList
}

// NewStringFileData creates text content. Nil lists are treated as empty.
func NewStringFileData(content string, comments *CommentList, trackedChanges *TrackedChangeList) *StringFileData {
	if comments == nil {
		comments = NewCommentList()
	}
	if trackedChanges == nil {
		trackedChanges = NewTrackedChangeList()
	}
	return &StringFileData{content: content, comments: comments, trackedChanges: trackedChanges}
}

// StringFileDataFromRaw decodes text content with its ranges.
func StringFileDataFromRaw(content string, comments []RawComment, trackedChanges []RawTrackedChange) (*StringFileData, error) {
	cl, err := CommentListFromRaw(comments)
	if err != nil {
		return nil, err
	}
	tcl, err := TrackedChangeListFromRaw(trackedChanges)
	if err != nil {
		return nil, err
	}
	return &StringFileData{content: content, comments: cl, trackedChanges: tcl}, nil
}

func (d *StringFileData) Content() string                    { return d.content }
func (d *StringFileData) Comments() *CommentList             { return d.comments }
func (d *StringFileData) TrackedChanges() *TrackedChangeList { return d.trackedChanges }
func (d *StringFileData) Hash() string                       { return HashString(d.content) }
func (d *StringFileData) RangesHash() string                 { return "" }
func (d *StringFileData) ByteLength() (int, bool)            { return len(d.content), true }
func (d *StringFileData) IsEditable() bool                   { return true }

func (d *StringFileData) StringLength() (int, bool) {
	return utf8.RuneCountInString(d.content), true
}

func (d *StringFileData) Clone() FileData {
	return &StringFileData{
		content:        d.content,
		comments:       d.comments.Clone(),
		trackedChanges: d.trackedChanges.Clone(),
	}
}

func (d *StringFileData) Edit(op EditOperation) error {
	return op.Apply(d)
}

func (d *StringFileData) ToRaw() RawFileData {
	content := d.content
	raw := RawFileData{Content: &content}
	if d.comments.Len() > 0 {
		raw.Comments = d.comments.ToRaw()
	}
	if d.trackedChanges.Len() > 0 {
		raw.TrackedChanges = d.trackedChanges.ToRaw()
	}
	return raw
}

func (d *StringFileData) Load(_ context.Context, kind LoadKind, _ BlobStore) (FileData, error) {
	if kind == LoadHollow {
		n, _ := d.StringLength()
		return &HollowStringFileData{stringLength: n}, nil
	}
	return d, nil
}

func (d *StringFileData) Store(ctx context.Context, store BlobStore) (RawFileData, error) {
	blob, err := store.PutString(ctx, d.content)
	if err != nil {
		return RawFileData{}, fmt.Errorf("storing content: %w", err)
	}
	raw := RawFileData{Hash: blob.Hash()}
	if d.comments.Len() > 0 || d.trackedChanges.Len() > 0 {
		ranges := rawRanges{Comments: d.comments.ToRaw(), TrackedChanges: d.trackedChanges.ToRaw()}
		rangesBlob, err := store.PutObject(ctx, ranges)
		if err != nil {
			return RawFileData{}, fmt.Errorf("storing ranges: %w", err)
		}
		raw.RangesHash = rangesBlob.Hash()
	}
	return raw, nil
}
