package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/postcodecheck/addresscleaner/pkg/tracing"
)

// QueryTracer starts client spans for database operations and warns about
// slow ones.
type QueryTracer struct {
	// SlowThreshold enables slow query warnings when positive.
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

// Trace starts a span for a database operation. Call the returned function
// with the operation's error when it completes:
//
//	ctx, end := t.Trace(ctx, "LoadReferences", query)
//	defer func() { end(err) }()
func (t QueryTracer) Trace(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		tracing.SpanError(span, err)
		span.End()

		if t.SlowThreshold <= 0 || t.Logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= t.SlowThreshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			t.Logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}
