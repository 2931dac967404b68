package log

import (
	"context"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithClient tags the logger carried by ctx with a client's session handle.
// WebSocket connections outlive their upgrade request, so the result is
// rooted in a fresh context and keeps only the logger from ctx.
func WithClient(ctx context.Context, clientID string) context.Context {
	l := Ctx(ctx).With().Str(FieldClientID, clientID).Logger()
	return WithLogger(context.Background(), l)
}

// Ctx returns the logger carried by ctx, or the global logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}
