package core

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// EmptyFileHash is the git blob hash of zero bytes.
const EmptyFileHash = "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"

var hashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Blob describes stored content by its hash. StringLength is set only when
// the content is editable text.
type Blob struct {
	hash         string
	byteLength   int
	stringLength *int
}

// RawBlob is the storage form of a Blob.
type RawBlob struct {
	Hash         string `json:"hash"`
	ByteLength   int    `json:"byteLength"`
	StringLength *int   `json:"stringLength,omitempty"`
}

// NewBlob validates and creates a blob record.
func NewBlob(hash string, byteLength int, stringLength *int) (*Blob, error) {
	if !IsValidHash(hash) {
		return nil, fmt.Errorf("invalid blob hash %q", hash)
	}
	if byteLength < 0 {
		return nil, fmt.Errorf("invalid byte length %d", byteLength)
	}
	if stringLength != nil {
		n := *stringLength
		stringLength = &n
	}
	return &Blob{hash: hash, byteLength: byteLength, stringLength: stringLength}, nil
}

// BlobFromRaw decodes a stored blob record.
func BlobFromRaw(raw RawBlob) (*Blob, error) {
	return NewBlob(raw.Hash, raw.ByteLength, raw.StringLength)
}

// BlobForContent describes content without storing it.
func BlobForContent(content []byte) *Blob {
	return &Blob{
		hash:         HashBytes(content),
		byteLength:   len(content),
		stringLength: ComputeStringLength(content),
	}
}

func (b *Blob) ToRaw() RawBlob {
	return RawBlob{Hash: b.hash, ByteLength: b.byteLength, StringLength: b.stringLength}
}

func (b *Blob) Hash() string    { return b.hash }
func (b *Blob) ByteLength() int { return b.byteLength }

// StringLength returns the length in characters, or false for binary
// content.
func (b *Blob) StringLength() (int, bool) {
	if b.stringLength == nil {
		return 0, false
	}
	return *b.stringLength, true
}

// IsValidHash reports whether s is 40 lowercase hex characters.
func IsValidHash(s string) bool {
	return hashPattern.MatchString(s)
}

// HashBytes returns the git blob SHA-1 of content.
func HashBytes(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// HashString is HashBytes for UTF-8 text.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// ComputeStringLength returns the character length of content if it is
// editable text: valid UTF-8, no NUL bytes, no characters outside the basic
// multilingual plane and no longer than MaxStringLength.
//
// Lengths are counted in runes. Since any non-BMP character makes the
// content binary here, a rune is always one UTF-16 unit, so the count
// agrees with UTF-16 lengths computed elsewhere. Text containing astral
// characters is stored as a binary blob and cannot be edited, rather than
// being rejected only when an edit inserts one.
func ComputeStringLength(content []byte) *int {
	if !utf8.Valid(content) || strings.ContainsRune(string(content), 0) {
		return nil
	}
	n := 0
	for _, r := range string(content) {
		if r > 0xFFFF {
			return nil
		}
		n++
	}
	if n > MaxStringLength {
		return nil
	}
	return &n
}
