// Package logging builds the single structured logger threaded through
// batchdl's components.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a text-mode logger for the named component at the given
// minimum level. Logs go to stderr so they never interleave with the
// bench comparison table on stdout. Every record carries the component
// name and process id.
func New(component, level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With(
		slog.String("component", component),
		slog.Int("pid", os.Getpid()),
	)
}

// parseLevel maps a level name ("debug", "info", "warn"/"warning",
// "error", case-insensitive) to its slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
