package logger

import (
	"io"
	"log/slog"
)

const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

// New builds the process logger. Anything but FormatJSON gets the pretty handler.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewPrettyHandler(w, opts))
}
