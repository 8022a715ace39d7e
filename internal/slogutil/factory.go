package slogutil

import (
	"io"
	"log/slog"
	"os"

	"nixlsp/internal/config"
	"nixlsp/internal/paths"
)

// Subsystems with their own log file and level override.
const (
	SubsystemServer = "server"
	SubsystemIndex  = "index"
)

// LoggerFactory creates loggers for the server and the batch commands and
// owns the files they write to. Levels follow: CLI flags, then
// logging.<subsystem>, then logging.level.
type LoggerFactory struct {
	config   *config.Config
	cliLevel *slog.Level
	closers  []io.Closer
}

// NewLoggerFactory creates a factory. cliLevel is nil when neither -v nor
// -q was given.
func NewLoggerFactory(cfg *config.Config, cliLevel *slog.Level) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{config: cfg, cliLevel: cliLevel}
}

// ServerLogger writes to <home>/logs/server.log and, with logging.stderr,
// also to stderr. Stdout carries the protocol and is never used.
func (f *LoggerFactory) ServerLogger() *slog.Logger {
	return f.Logger(SubsystemServer)
}

// IndexLogger is the logger of the `index` and `kb` commands.
func (f *LoggerFactory) IndexLogger() *slog.Logger {
	return f.Logger(SubsystemIndex)
}

// Logger returns the logger of subsystem. A log file that cannot be opened
// is skipped; with no destination left the logger discards.
func (f *LoggerFactory) Logger(subsystem string) *slog.Logger {
	level := f.EffectiveLevel(subsystem)
	format := f.config.Logging.Format

	var handlers []slog.Handler
	if f.config.Logging.Stderr {
		handlers = append(handlers, newHandler(os.Stderr, format, level))
	}
	if path, err := logPath(subsystem); err == nil {
		if w, err := OpenLogFile(path, f.config.Logging.MaxSize, f.config.Logging.MaxBackups); err == nil {
			f.closers = append(f.closers, w)
			handlers = append(handlers, newHandler(w, format, level))
		}
	}
	return slog.New(Multi(handlers...)).With("subsystem", subsystem)
}

func logPath(subsystem string) (string, error) {
	if _, err := paths.EnsureLogsDir(); err != nil {
		return "", err
	}
	if subsystem == SubsystemServer {
		return paths.GetServerLogPath()
	}
	return paths.GetIndexLogPath()
}

// EffectiveLevel returns the level a subsystem logs at.
func (f *LoggerFactory) EffectiveLevel(subsystem string) slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	override := f.config.Logging.Index
	if subsystem == SubsystemServer {
		override = f.config.Logging.Server
	}
	if override != "" {
		return LevelFromString(override)
	}
	return LevelFromString(f.config.Logging.Level)
}

// Close closes every file opened by the factory.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
