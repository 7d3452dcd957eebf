package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log"})
		if got, want := len(m.patterns), len(defaultIgnorePatterns)+1; got != want {
			t.Fatalf("len(patterns) = %d, want %d", got, want)
		}
		if last := m.patterns[len(m.patterns)-1]; last.pattern != "*.log" {
			t.Errorf("last pattern = %q, want %q", last.pattern, "*.log")
		}
	})

	t.Run("classifies path and basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.log", "build/output", "/notes.txt", "dist/"})
		got := m.patterns[len(defaultIgnorePatterns):]
		want := []ignorePattern{
			{pattern: "*.log", matchPath: false},
			{pattern: "build/output", matchPath: true},
			{pattern: "notes.txt", matchPath: true},
			{pattern: "dist", matchPath: false},
		}
		if len(got) != len(want) {
			t.Fatalf("patterns = %+v, want %+v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("patterns[%d] = %+v, want %+v", i, got[i], want[i])
			}
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{name: "basename glob in root", patterns: []string{"*.log"}, relativePath: "app.log", want: true},
		{name: "basename glob in subdirectory", patterns: []string{"*.log"}, relativePath: filepath.Join("sub", "app.log"), want: true},
		{name: "different extension", patterns: []string{"*.log"}, relativePath: "app.tex", want: false},
		{name: "ignore file is always ignored", relativePath: IgnoreFileName, want: true},
		{name: "git directory is always ignored", relativePath: filepath.Join("sub", ".git"), want: true},
		{name: "path pattern exact", patterns: []string{"build/output"}, relativePath: filepath.Join("build", "output"), want: true},
		{name: "path pattern wrong directory", patterns: []string{"build/output"}, relativePath: filepath.Join("src", "output"), want: false},
		{name: "path pattern with glob", patterns: []string{"figures/*.pdf"}, relativePath: filepath.Join("figures", "plot.pdf"), want: true},
		{name: "anchored pattern matches root only", patterns: []string{"/main.aux"}, relativePath: filepath.Join("ch1", "main.aux"), want: false},
		{name: "anchored pattern in root", patterns: []string{"/main.aux"}, relativePath: "main.aux", want: true},
		{name: "trailing slash names directory", patterns: []string{"out/"}, relativePath: "out", want: true},
		{name: "question mark", patterns: []string{"?.tex"}, relativePath: "a.tex", want: true},
		{name: "question mark single char only", patterns: []string{"?.tex"}, relativePath: "ab.tex", want: false},
		{name: "character class", patterns: []string{"*.[oa]"}, relativePath: "main.o", want: true},
		{name: "no patterns", relativePath: "main.tex", want: false},
		{name: "empty path", patterns: []string{"*"}, relativePath: "", want: false},
		{name: "second pattern matches", patterns: []string{"*.log", "*.tmp"}, relativePath: "data.tmp", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.relativePath); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads raw lines", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), IgnoreFileName)
		if err := os.WriteFile(path, []byte("*.log\n# comment\n\n*.tmp\nbuild/output\n"), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(patterns) != 5 {
			t.Fatalf("len(ParseIgnoreFile()) = %d, want 5", len(patterns))
		}
		m := NewIgnoreMatcher(patterns)
		if got, want := len(m.patterns), len(defaultIgnorePatterns)+3; got != want {
			t.Errorf("len(patterns) = %d, want %d", got, want)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("ParseIgnoreFile() = %v, want nil", patterns)
		}
	})
}
