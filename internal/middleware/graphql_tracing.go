package middleware

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"gqlhttp/internal/logging"
)

// GraphQLTracingMiddleware instruments GraphQL execution with an inner span
// carrying operation-shape attributes from a pre-execution peek.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			summary := summarizeRequest(r)
			if summary == nil {
				next.ServeHTTP(w, r)
				return
			}

			tracer := otel.Tracer("gqlhttp/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				attrs := []attribute.KeyValue{
					attribute.Bool("graphql.request.batch", summary.batch),
				}
				if summary.operationType != "" {
					attrs = append(attrs, attribute.String("graphql.operation.type", summary.operationType))
				}
				if summary.fieldCount > 0 {
					attrs = append(attrs,
						attribute.Int("graphql.query.field_count", summary.fieldCount),
						attribute.Int("graphql.query.depth", summary.selectionDepth),
						attribute.Int("graphql.query.variable_count", summary.variableCount),
					)
				}
				span.SetAttributes(attrs...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
