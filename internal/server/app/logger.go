package app

import (
	"io"
	"log/slog"
)

// NewLogHandler creates the local slog handler: "json" or text
func NewLogHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
