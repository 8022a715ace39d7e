// Package slogutil provides the slog handler and logger construction used by
// the language server and the command line.
package slogutil

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Log formats accepted by logging.format.
const (
	FormatHuman = "human"
	FormatJSON  = "json"
)

// LevelSilent is above every level slog defines, so nothing is logged.
const LevelSilent = slog.Level(100)

// NewLogger creates a human-format logger.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return NewFormattedLogger(w, FormatHuman, level)
}

// NewFormattedLogger creates a logger writing format to w. Unknown formats
// fall back to human.
func NewFormattedLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	return slog.New(newHandler(w, format, level))
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if format == FormatJSON {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return NewHandler(w, level)
}

// NewDiscardLogger creates a logger that drops everything. Tests use it.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// LevelFromString parses a level name such as "debug", "WARN" or "info+2".
// "warning" is accepted as warn. Anything else yields info.
func LevelFromString(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LevelFromVerbosity maps the -v count and -q flag to a level. Without
// flags the CLI only reports warnings.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return LevelSilent
	case verbosity >= 2:
		return slog.LevelDebug
	case verbosity == 1:
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// Multi returns a handler passing each record to every handler enabled
// for its level.
func Multi(handlers ...slog.Handler) slog.Handler {
	switch len(handlers) {
	case 0:
		return slog.DiscardHandler
	case 1:
		return handlers[0]
	}
	return fanout(handlers)
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
