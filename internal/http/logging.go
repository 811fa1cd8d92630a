package http

import (
	"context"
	"log/slog"
)

func orDefaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// requestLogger resolves the request-scoped logger (installed by the logging
// middleware), falling back to the handler's own logger, and tags it with the
// handler and operation names.
func requestLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = orDefaultLogger(fallback)
	}

	logger = logger.With("handler", handlerName, "operation", operation)
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}
