package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHistHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 120_000_000, time.UTC)

	tests := []struct {
		name    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "info message",
			level:   slog.LevelInfo,
			message: "project initialized",
			want:    "2024-06-15T14:30:45.120Z\tINFO\top-1\tproject initialized\n",
		},
		{
			name:    "debug level",
			level:   slog.LevelDebug,
			message: "blob deduplicated",
			want:    "2024-06-15T14:30:45.120Z\tDEBUG\top-1\tblob deduplicated\n",
		},
		{
			name:    "record attrs",
			level:   slog.LevelInfo,
			message: "changes persisted",
			attrs:   []slog.Attr{slog.String("project", "p1"), slog.Int("count", 3)},
			want:    "2024-06-15T14:30:45.120Z\tINFO\top-1\tchanges persisted\tproject=p1\tcount=3\n",
		},
		{
			name:    "values with spaces are quoted",
			level:   slog.LevelWarn,
			message: "skipping file",
			attrs:   []slog.Attr{slog.String("path", "my paper/main.tex"), slog.String("empty", "")},
			want:    "2024-06-15T14:30:45.120Z\tWARN\top-1\tskipping file\tpath=\"my paper/main.tex\"\tempty=\"\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &histHandler{sinks: []logSink{{w: &buf, level: slog.LevelDebug}}, opID: "op-1"}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)
			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestHistHandler_SinkLevels(t *testing.T) {
	var file, console bytes.Buffer
	logger := slog.New(&histHandler{
		sinks: []logSink{{w: &file, level: slog.LevelDebug}, {w: &console, level: slog.LevelWarn}},
		opID:  "op-2",
	})

	logger.Debug("blob uploaded")
	logger.Warn("chunk version conflict")

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Errorf("file lines = %d, want 2", got)
	}
	if strings.Contains(console.String(), "blob uploaded") {
		t.Error("console received a debug record")
	}
	if !strings.Contains(console.String(), "chunk version conflict") {
		t.Error("console did not receive the warning")
	}
}

func TestHistHandler_Enabled(t *testing.T) {
	h := &histHandler{sinks: []logSink{{w: &bytes.Buffer{}, level: slog.LevelInfo}}}
	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestHistHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &histHandler{sinks: []logSink{{w: &buf}}, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "vault")}).(*histHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs = %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	got := buf.String()
	for _, want := range []string{"\ta=1", "\tcomponent=vault", "\tkey=abc"} {
		if !strings.Contains(got, want) {
			t.Errorf("Handle() output %q missing %q", got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var console bytes.Buffer

	logger, f, err := newLogger(dir, "test-op", &console, slog.LevelInfo)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Debug("only in file")
	logger.Info("everywhere")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "only in file") || !strings.Contains(string(data), "everywhere") {
		t.Errorf("log file = %q, want both records", data)
	}
	if strings.Contains(console.String(), "only in file") {
		t.Errorf("console = %q, want no debug record", console.String())
	}
}
