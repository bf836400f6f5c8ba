// Package logctx carries a per-run / per-file logger through context
package logctx

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
)

type loggerKey struct{}

// WithLogger puts l into ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// WithFile - логгер из контекста дополняется путем обрабатываемого файла
func WithFile(ctx context.Context, path string) context.Context {
	l := LoggerFromContext(ctx).With().Str("file", path).Logger()
	return WithLogger(ctx, l)
}

// LoggerFromContext extracts logger from context, falling back to the global zlog logger
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return zlog.Logger
}
