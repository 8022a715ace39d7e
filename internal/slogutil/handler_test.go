package slogutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Indexed Nix files", "root", "/src/my repo", "documents", 12, "ok", true, "took", 1500*time.Millisecond)

	line := buf.String()
	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z INFO  Indexed Nix files `)
	if !pattern.MatchString(line) {
		t.Errorf("unexpected prefix: %q", line)
	}
	for _, want := range []string{`root="/src/my repo"`, "documents=12", "ok=true", "took=1.5s"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %s in %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
		t.Errorf("expected exactly one line, got %q", line)
	}
}

func TestHandlerLevels(t *testing.T) {
	tests := []struct {
		log  func(*slog.Logger)
		want string
	}{
		{func(l *slog.Logger) { l.Debug("m") }, " DEBUG m"},
		{func(l *slog.Logger) { l.Info("m") }, " INFO  m"},
		{func(l *slog.Logger) { l.Warn("m") }, " WARN  m"},
		{func(l *slog.Logger) { l.Error("m") }, " ERROR m"},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.want), func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(&buf, slog.LevelDebug))
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, buf.String())
			}
		})
	}
}

func TestHandlerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("records below warn should be filtered: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("warn and error should be kept: %q", out)
	}
}

func TestHandlerGroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).
		With("session_id", "abc").
		WithGroup("req").
		With("method", "textDocument/hover")

	logger.Info("Handled", "error", errors.New("no such node"), slog.Group("pos", "line", 3, "character", 7))

	out := buf.String()
	for _, want := range []string{
		"session_id=abc",
		"req.method=textDocument/hover",
		`req.error="no such node"`,
		"req.pos.line=3",
		"req.pos.character=7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %q", want, out)
		}
	}
}

func TestHandlerWithAttrsDoesNotAlias(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, slog.LevelInfo).With("a", 1)
	first := base.With("b", 2)
	second := base.With("c", 3)

	first.Info("first")
	second.Info("second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasSuffix(lines[0], "first a=1 b=2") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "second a=1 c=3") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestNeedsQuoting(t *testing.T) {
	tests := map[string]bool{
		"":           true,
		"plain":      false,
		"lib.id":     false,
		"two words":  true,
		"a=b":        true,
		`say "hi"`:   true,
		"tab\there":  true,
		"file:///x":  false,
		"ünïcödé":    false,
		"bell\x07":   true,
	}
	for in, want := range tests {
		if got := needsQuoting(in); got != want {
			t.Errorf("needsQuoting(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	NewFormattedLogger(&buf, FormatJSON, slog.LevelInfo).Info("Ready", "values", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if rec["msg"] != "Ready" || rec["values"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info+2", slog.LevelInfo + 2},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LevelFromString(tt.input); got != tt.want {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
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
		{2, false, slog.LevelDebug},
		{3, false, slog.LevelDebug},
		{0, true, LevelSilent},
		{5, true, LevelSilent},
	}
	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.want {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.want)
		}
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled")
	}
	logger.Error("dropped")
}

func TestMulti(t *testing.T) {
	var info, warn bytes.Buffer
	logger := slog.New(Multi(NewHandler(&info, slog.LevelInfo), NewHandler(&warn, slog.LevelWarn)))

	logger.Info("info message")
	logger.With("k", "v").Warn("warn message")

	if !strings.Contains(info.String(), "info message") || !strings.Contains(info.String(), "warn message k=v") {
		t.Errorf("info sink = %q", info.String())
	}
	if strings.Contains(warn.String(), "info message") || !strings.Contains(warn.String(), "warn message k=v") {
		t.Errorf("warn sink = %q", warn.String())
	}

	if Multi() != slog.DiscardHandler {
		t.Error("Multi() without handlers should discard")
	}
}
