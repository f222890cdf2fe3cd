package observability

import (
	"context"

	"github.com/rs/zerolog"
)

// Context keys for observability data.
type contextKey string

const (
	runIDKey contextKey = "run_id"
	pageKey  contextKey = "page"
)

// WithRunID adds an acquisition run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext retrieves the run ID from context.
// Returns empty string if not present.
func RunIDFromContext(ctx context.Context) string {
	if v := ctx.Value(runIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithPage adds the catalog page being processed to the context.
func WithPage(ctx context.Context, page int) context.Context {
	return context.WithValue(ctx, pageKey, page)
}

// PageFromContext retrieves the catalog page from context.
// ok is false if no page is set.
func PageFromContext(ctx context.Context) (page int, ok bool) {
	page, ok = ctx.Value(pageKey).(int)
	return page, ok
}

// LoggerFromContext enriches logger with the run ID and page carried by ctx.
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if runID := RunIDFromContext(ctx); runID != "" {
		logger = WithRunContext(logger, runID)
	}
	if page, ok := PageFromContext(ctx); ok {
		logger = WithPageContext(logger, page)
	}
	return logger
}
