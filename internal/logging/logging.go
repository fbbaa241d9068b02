// Package logging configures the process-wide slog logger: JSON to
// stderr, tagged with the module name and version, at a level taken from
// a flag or the LOG_LEVEL environment variable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLevel is the environment variable consulted when no level is given.
const EnvLevel = "LOG_LEVEL"

// ParseLevel maps debug, info, warn/warning and error (any case) to a
// slog level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a JSON logger writing to w. An empty level falls back to
// LOG_LEVEL. Debug loggers record source locations.
func New(w io.Writer, module, version, level string) *slog.Logger {
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	lvl := ParseLevel(level)
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})
	return slog.New(h).With("module", module, "version", version)
}

// SetDefault installs a stderr logger as the slog default and returns it.
func SetDefault(module, version, level string) *slog.Logger {
	l := New(os.Stderr, module, version, level)
	slog.SetDefault(l)
	return l
}
