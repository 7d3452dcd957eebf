package testutil

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// BlobHash returns the git-style blob hash of content, the format used for
// blob ids.
func BlobHash(content string) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
