package fs

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns are always applied. Version control metadata and
// the ignore file itself never become project files.
var defaultIgnorePatterns = []string{IgnoreFileName, ".git", ".hg", ".svn"}

type ignorePattern struct {
	pattern string
	// matchPath patterns are matched against the slash-separated relative
	// path, the rest against the base name.
	matchPath bool
}

// IgnoreMatcher decides which files of a directory tree are left out of an
// import.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings plus
// the default patterns. Blank lines and lines starting with '#' are
// skipped. A trailing '/' is dropped, so "build/" ignores the build
// directory; a leading '/' anchors the pattern to the root.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range append(append([]string{}, defaultIgnorePatterns...), rawPatterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.TrimSuffix(raw, "/")
		anchored := strings.HasPrefix(raw, "/")
		raw = strings.TrimPrefix(raw, "/")
		if raw == "" {
			continue
		}
		if _, err := path.Match(raw, ""); err != nil {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: anchored || strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether relativePath, taken relative to the project root,
// is ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if relativePath == "" {
		return false
	}
	rel := filepath.ToSlash(relativePath)
	base := path.Base(rel)
	for _, p := range m.patterns {
		if p.matches(rel, base) {
			return true
		}
	}
	return false
}

func (p ignorePattern) matches(rel, base string) bool {
	name := base
	if p.matchPath {
		name = rel
	}
	ok, _ := path.Match(p.pattern, name)
	return ok
}

// ParseIgnoreFile returns the lines of an ignore file, unparsed. A missing
// file yields no patterns.
func ParseIgnoreFile(name string) ([]string, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	var lines []string
	for line := range strings.Lines(string(data)) {
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
	return lines, nil
}
