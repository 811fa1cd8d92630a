package http

import (
	"context"
	"log/slog"

	"github.com/example/gym-scheduler/internal/booking"
	"github.com/example/gym-scheduler/internal/logging"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	sessionIDContextKey contextKey = "session_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal booking.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (booking.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(booking.Principal)
	return principal, ok
}

// ContextWithSessionID injects the training session identifier resolved from
// the request path.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}

// SessionIDFromContext extracts a training session identifier previously
// associated with the context.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok
}

// ContextWithLogger and LoggerFromContext bridge to the shared logging
// helpers so handlers stay within this package's vocabulary.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
