// Package logging wires the process-wide slog default logger used by
// every daemon binary.
package logging

import (
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Setup configures the default slog logger. level is one of
// debug/info/warn/error (case-insensitive, defaults to info on a bad
// value). When structured is true, output is newline-delimited JSON
// suitable for a log collector; otherwise it is the human-readable
// charmbracelet format.
func Setup(level string, structured bool) {
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Formatter:       formatterFor(structured),
	})
	handler.SetLevel(parseLevel(level))

	slog.SetDefault(slog.New(handler))
}

func formatterFor(structured bool) charmlog.Formatter {
	if structured {
		return charmlog.JSONFormatter
	}
	return charmlog.TextFormatter
}

func parseLevel(level string) charmlog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}
