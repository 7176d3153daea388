package contract

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Records go to stderr and, when logFile
// is set, are also appended to that file. The returned closer releases the file.
func NewLogger(level slog.Level, format, logFile string) (*slog.Logger, func() error, error) {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	return slog.New(newHandler(w, level, format)), closer, nil
}

// NewDiscardLogger returns a logger that drops everything, for tests and dry paths.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
