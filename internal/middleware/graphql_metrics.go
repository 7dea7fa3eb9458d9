package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gqlhttp/internal/observability"
)

// GraphQLMetricsMiddleware wraps the GraphQL handler and records request
// duration, outcome, and operation type.
func GraphQLMetricsMiddleware(metrics *observability.TransportMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithTransportMetrics(r.Context(), metrics)
			r = r.WithContext(ctx)

			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			start := time.Now()

			operationType := "unknown"
			if summary := summarizeRequest(r); summary != nil {
				if summary.batch {
					operationType = "batch"
				} else if summary.operationType != "" {
					operationType = summary.operationType
				}
			}

			wrapped := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			hasErrors := wrapped.statusCode >= 400 || responseHasGraphQLErrors(wrapped.body.Bytes())

			metrics.RecordRequest(ctx, duration, hasErrors, operationType)
			if wrapped.statusCode == http.StatusBadRequest {
				metrics.RecordInputError(ctx)
			}
			if wrapped.statusCode == http.StatusMethodNotAllowed {
				metrics.RecordMethodRejection(ctx, operationType)
			}
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code
// and response body for error detection. Subscription streams are not
// buffered; they flow until the client disconnects.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	streaming  bool
	body       bytes.Buffer
}

func (w *metricsResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
		if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
			w.streaming = true
		}
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	if len(b) > 0 && !w.streaming {
		_, _ = w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer so event streams keep moving.
func (w *metricsResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func responseHasGraphQLErrors(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}

	// Batch responses are arrays of entries; check each entry.
	if trimmed[0] == '[' {
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return false
		}
		for _, entry := range entries {
			if entryHasErrors(entry) {
				return true
			}
		}
		return false
	}

	return entryHasErrors(trimmed)
}

func entryHasErrors(body []byte) bool {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}

	// Nested batch entries carry the result under a payload key; scan one
	// level down when no top-level errors field exists.
	errorsValue, ok := payload["errors"]
	if !ok {
		for key, raw := range payload {
			if key == "id" {
				continue
			}
			var nested map[string]json.RawMessage
			if err := json.Unmarshal(raw, &nested); err != nil {
				continue
			}
			if nestedErrors, nestedOK := nested["errors"]; nestedOK {
				errorsValue = nestedErrors
				break
			}
		}
	}

	errorsValue = bytes.TrimSpace(errorsValue)
	if len(errorsValue) == 0 || bytes.Equal(errorsValue, []byte("null")) {
		return false
	}

	var errorsList []json.RawMessage
	if err := json.Unmarshal(errorsValue, &errorsList); err != nil {
		return false
	}
	return len(errorsList) > 0
}
