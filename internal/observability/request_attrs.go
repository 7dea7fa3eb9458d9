package observability

import (
	"context"
	"log/slog"

	"gqlhttp/internal/gqlrequest"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestSpanAttributes builds canonical span attributes from a parsed
// request envelope.
func RequestSpanAttributes(env *gqlrequest.Envelope) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	if env == nil {
		return attrs
	}

	attrs = append(attrs,
		attribute.Bool("graphql.request.batch", env.Batch),
		attribute.Int("graphql.request.query_count", len(env.Queries)),
	)

	if !env.Batch && len(env.Queries) == 1 {
		q := env.Queries[0]
		if q.OperationName != "" {
			attrs = append(attrs, attribute.String("graphql.operation.name", q.OperationName))
		}
		if q.DocumentID != "" {
			attrs = append(attrs, attribute.String("graphql.document.id", q.DocumentID))
		}
		if len(q.RawDocument) > 0 {
			attrs = append(attrs, attribute.Int("graphql.document.size_bytes", len(q.RawDocument)))
		}
	}

	return attrs
}

// RequestLogFields builds canonical structured log fields from a parsed
// request envelope.
func RequestLogFields(ctx context.Context, env *gqlrequest.Envelope) []any {
	fields := make([]any, 0, 5)
	if env != nil {
		fields = append(fields,
			slog.Bool("batch", env.Batch),
			slog.Int("query_count", len(env.Queries)),
		)
		if !env.Batch && len(env.Queries) == 1 && env.Queries[0].OperationName != "" {
			fields = append(fields, slog.String("operation_name", env.Queries[0].OperationName))
		}
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}

	return fields
}
