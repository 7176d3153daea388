package core

import (
	"context"
	"log/slog"

	"github.com/huangsam/tzcluster/internal/contract"
)

// Context keys for run options
type contextKey string

const (
	loggerKey contextKey = "logger"
	quietKey  contextKey = "quiet"
)

// WithLogger attaches the logger that pipeline stages report to.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// loggerFromContext returns the attached logger, or one that discards everything.
func loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return contract.NewDiscardLogger()
}

// WithQuiet silences stage logging, e.g. when stdio carries a protocol.
func WithQuiet(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey, true)
}

// isQuiet returns whether stage logging is silenced.
func isQuiet(ctx context.Context) bool {
	quiet, ok := ctx.Value(quietKey).(bool)
	return ok && quiet
}
