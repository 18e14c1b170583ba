package errutil

import (
	"log/slog"
)

// LogMsg logs err at warn level with a custom message if it is not nil.
// Use it for failures the caller recovers from, such as a single asset in a batch.
func LogMsg(err error, msg string, args ...any) {
	if err != nil {
		allArgs := append([]any{"error", err}, args...)
		slog.Warn(msg, allArgs...)
	}
}

// ReportError logs an error that aborted an operation.
func ReportError(err error, msg string, args ...any) {
	if err != nil {
		allArgs := append([]any{"error", err}, args...)
		slog.Error(msg, allArgs...)
	}
}

// ParseLevel maps a level name to a slog.Level, falling back to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		LogMsg(err, "Unknown log level, using info", "level", name)
		return slog.LevelInfo
	}
	return level
}
