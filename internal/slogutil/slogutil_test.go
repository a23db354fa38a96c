package slogutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ctxasm/internal/config"
	"ctxasm/internal/errors"
	"ctxasm/internal/paths"
)

// splitLine separates the timestamp from the rest of a logged line.
func splitLine(t *testing.T, line string) string {
	t.Helper()
	ts, rest, ok := strings.Cut(line, " ")
	if !ok {
		t.Fatalf("malformed line %q", line)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q: %v", ts, err)
	}
	return rest
}

func TestLineHandler_RequestScope(t *testing.T) {
	var buf bytes.Buffer
	logger := ForRequest(slog.New(NewLineHandler(&buf, slog.LevelDebug)), "req-1", "web")

	err := errors.New(errors.IndexUnavailable, "connection refused", nil)
	logger.Warn("Semantic search failed, continuing with lexical matches", "error", err)

	got := splitLine(t, buf.String())
	want := `[warn] Semantic search failed, continuing with lexical matches | request=req-1 project=web error="[INDEX_UNAVAILABLE] connection refused"` + "\n"
	if got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestLineHandler_Values(t *testing.T) {
	tests := []struct {
		name string
		log  func(*slog.Logger)
		want string
	}{
		{"duration", func(l *slog.Logger) { l.Info("m", "deadline", 1500*time.Millisecond) }, "deadline=1.5s"},
		{"int and bool", func(l *slog.Logger) { l.Info("m", "files", 3, "cached", true) }, "files=3 cached=true"},
		{"spaces quoted", func(l *slog.Logger) { l.Info("m", "path", "src/a b.ts") }, `path="src/a b.ts"`},
		{"empty quoted", func(l *slog.Logger) { l.Info("m", "reason", "") }, `reason=""`},
		{"group flattened", func(l *slog.Logger) { l.Info("m", slog.Group("tokens", "used", 10, "budget", 20)) }, "tokens.used=10 tokens.budget=20"},
		{"with group", func(l *slog.Logger) { l.WithGroup("index").Info("m", "files", 2) }, "index.files=2"},
		{"empty key dropped", func(l *slog.Logger) { l.Info("m", slog.String("", "x"), "k", "v") }, "k=v"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(slog.New(NewLineHandler(&buf, slog.LevelDebug)))
			got := splitLine(t, buf.String())
			want := "[info] m | " + tt.want + "\n"
			if got != want {
				t.Errorf("line = %q, want %q", got, want)
			}
		})
	}
}

func TestLineHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLineHandler(&buf, slog.LevelWarn))
	logger.Info("Indexed project")
	logger.Debug("Budget exhausted")
	if buf.Len() != 0 {
		t.Errorf("below-level records written: %q", buf.String())
	}
	logger.Error("Failed to close index")
	if !strings.Contains(buf.String(), "[error] Failed to close index\n") {
		t.Errorf("error record missing: %q", buf.String())
	}
}

func TestForProject(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"", "[info] Indexed project | project=web files=4\n"},
		{"v2", "[info] Indexed project | project=web version=v2 files=4\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		ForProject(slog.New(NewLineHandler(&buf, nil)), "web", tt.version).Info("Indexed project", "files", 4)
		if got := splitLine(t, buf.String()); got != tt.want {
			t.Errorf("version %q: line = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelWarn, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" silent ", LevelSilent, false},
		{"warn+2", slog.LevelWarn + 2, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{3, false, slog.LevelDebug},
		{2, true, LevelSilent},
	}
	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.want {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.want)
		}
	}
}

func TestOrDiscard(t *testing.T) {
	l := OrDiscard(nil)
	if l == nil {
		t.Fatal("OrDiscard(nil) = nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger enabled at error")
	}
}

func TestLoggerFactory_CLILogFile(t *testing.T) {
	root := t.TempDir()
	logFile := filepath.Join(root, "ctxasm.log")
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "warn"

	var term bytes.Buffer
	f := NewLoggerFactory(root, cfg, nil)
	logger := ForRequest(f.CLILogger(&term, logFile), "req-7", "web")
	logger.Debug("Index lookup failed, extracting imports from content")
	logger.Warn("Conversation history unavailable")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if strings.Contains(term.String(), "Index lookup failed") {
		t.Errorf("debug line reached the terminal: %q", term.String())
	}
	if !strings.Contains(term.String(), "[warn] Conversation history unavailable | request=req-7 project=web") {
		t.Errorf("terminal = %q", term.String())
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"[debug] Index lookup failed, extracting imports from content | request=req-7 project=web",
		"[warn] Conversation history unavailable | request=req-7 project=web",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q:\n%s", want, data)
		}
	}
}

func TestLoggerFactory_CLILevelWins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"
	level := slog.LevelInfo

	var term bytes.Buffer
	NewLoggerFactory("", cfg, &level).CLILogger(&term, "").Info("Indexed project")
	if !strings.Contains(term.String(), "[info] Indexed project") {
		t.Errorf("terminal = %q", term.String())
	}
}

func TestLoggerFactory_IndexLogger(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "info"

	f := NewLoggerFactory(root, cfg, nil)
	ForProject(f.IndexLogger(), "web", "").Info("Indexed project", "files", 2)
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(paths.IndexLogPath(filepath.Join(paths.StateDir(root), "logs")))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[info] Indexed project | project=web files=2") {
		t.Errorf("index log = %q", data)
	}
}
