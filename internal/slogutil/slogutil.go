package slogutil

import (
	"io"
	"log/slog"
	"strings"
)

// LevelSilent is above every level ctxasm logs at.
const LevelSilent = slog.Level(100)

// New returns a logger writing format ("human" or "json") to w.
func New(w io.Writer, level slog.Leveler, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(NewLineHandler(w, level))
}

func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns logger, or a discard logger when logger is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewDiscardLogger()
	}
	return logger
}

// ForRequest scopes logger to one BuildContext call.
func ForRequest(logger *slog.Logger, requestID, projectID string) *slog.Logger {
	return OrDiscard(logger).With(slog.String("request", requestID), slog.String("project", projectID))
}

// ForProject scopes logger to a project version. An empty version is
// omitted.
func ForProject(logger *slog.Logger, projectID, versionID string) *slog.Logger {
	logger = OrDiscard(logger).With(slog.String("project", projectID))
	if versionID != "" {
		logger = logger.With(slog.String("version", versionID))
	}
	return logger
}

// ParseLevel reads logging.level. Empty means warn and "silent" disables
// logging; anything else is parsed the way slog spells levels ("debug",
// "INFO", "warn+2").
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return slog.LevelWarn, nil
	case "silent":
		return LevelSilent, nil
	}
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.TrimSpace(s)))
	return l, err
}

// LevelFromVerbosity maps -q and -v counts: quiet silences, none is warn,
// one is info, more is debug.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return LevelSilent
	case verbosity <= 0:
		return slog.LevelWarn
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
