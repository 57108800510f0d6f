package exception

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
)

// SlogLogger writes every fault as one structured log record.
type SlogLogger struct {
	logger *slog.Logger
	// IncludeStack adds the captured stack trace to the record.
	IncludeStack bool
}

// NewSlogLogger creates a SlogLogger. A nil logger selects slog.Default().
func NewSlogLogger(logger *slog.Logger, includeStack bool) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger, IncludeStack: includeStack}
}

// Log implements ports.ExceptionLogger.
func (l *SlogLogger) Log(ctx context.Context, ec *domain.ExceptionContext) error {
	attrs := []slog.Attr{
		slog.String("catch_block", ec.CatchBlock.Name),
		slog.String("error", ec.Err.Error()),
	}
	if ec.Request != nil {
		attrs = append(attrs,
			slog.String("request_id", domain.RequestID(ec.Request)),
			slog.String("method", ec.Request.Method),
			slog.String("url", ec.Request.URL.String()),
			slog.Bool("sub_request", domain.IsBatchSubRequest(ec.Request)),
		)
	}
	if l.IncludeStack {
		if stack := StackOf(ec.Err); stack != "" {
			attrs = append(attrs, slog.String("stack", stack))
		}
	}

	l.logger.LogAttrs(ctx, slog.LevelError, "unhandled exception", attrs...)
	return nil
}
