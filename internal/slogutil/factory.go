package slogutil

import (
	"io"
	"log/slog"
	"os"

	"ctxasm/internal/config"
	"ctxasm/internal/paths"
)

// LoggerFactory builds the CLI logger and the per-project index log.
// Precedence for levels: CLI flags > config > default (warn).
type LoggerFactory struct {
	root     string
	config   *config.Config
	cliLevel *slog.Level
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory. cliLevel is nil when no
// verbosity flag was given.
func NewLoggerFactory(root string, cfg *config.Config, cliLevel *slog.Level) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{root: root, config: cfg, cliLevel: cliLevel}
}

// CLILogger returns a logger writing to w, teed into logFile when set.
func (f *LoggerFactory) CLILogger(w io.Writer, logFile string) *slog.Logger {
	level := f.effectiveLevel()
	primary := New(w, level, f.config.Logging.Format).Handler()
	if logFile == "" {
		return slog.New(primary)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logger := slog.New(primary)
		logger.Warn("Failed to open log file", "path", logFile, "error", err)
		return logger
	}
	f.closers = append(f.closers, file)
	// The file always gets debug, whatever the terminal shows.
	return slog.New(fanout{primary, NewLineHandler(file, slog.LevelDebug)})
}

// IndexLogger writes to <root>/.ctxasm/logs/index.log. Any failure yields a
// discard logger so indexing never fails on logging.
func (f *LoggerFactory) IndexLogger() *slog.Logger {
	if f.root == "" {
		return NewDiscardLogger()
	}
	dir, err := paths.EnsureLogsDir(f.root)
	if err != nil {
		return NewDiscardLogger()
	}
	file, err := os.OpenFile(paths.IndexLogPath(dir), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return NewDiscardLogger()
	}
	f.closers = append(f.closers, file)
	return slog.New(NewLineHandler(file, f.effectiveLevel()))
}

func (f *LoggerFactory) effectiveLevel() slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	level, err := ParseLevel(f.config.Logging.Level)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// Close closes all open log files.
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
