// Package logger configures slog for the search service and threads a
// per-request descriptor (request id, operation kind, query) through the
// serving path so every line logged while handling one client frame
// correlates.
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/qianzhou/goso/pkg/config"
)

type ctxKey struct{}

// Request identifies one in-flight client request in log output.
type Request struct {
	ID    string
	Kind  string
	Query string
}

// Setup installs the process-wide default logger per the logging config
// and returns it. Unknown levels fall back to info.
func Setup(cfg config.LoggingConfig) *slog.Logger {
	var level slog.LevelVar
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.Set(slog.LevelInfo)
	}
	opts := &slog.HandlerOptions{Level: &level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithRequest returns a context carrying the request descriptor.
func WithRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, ctxKey{}, req)
}

// FromContext returns the default logger annotated with the request
// descriptor when the context carries one.
func FromContext(ctx context.Context) *slog.Logger {
	req, ok := ctx.Value(ctxKey{}).(Request)
	if !ok {
		return slog.Default()
	}
	attrs := []any{"request_id", req.ID}
	if req.Kind != "" {
		attrs = append(attrs, "kind", req.Kind)
	}
	if req.Query != "" {
		attrs = append(attrs, "query", req.Query)
	}
	return slog.Default().With(attrs...)
}
