package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TransportMetrics holds custom metrics for the GraphQL HTTP transport
type TransportMetrics struct {
	requestDuration     metric.Float64Histogram
	requestCounter      metric.Int64Counter
	errorCounter        metric.Int64Counter
	activeRequests      metric.Int64UpDownCounter
	batchSize           metric.Int64Histogram
	mergedFields        metric.Int64Histogram
	activeSubscriptions metric.Int64UpDownCounter
	inputErrors         metric.Int64Counter
	methodRejections    metric.Int64Counter
}

// InitTransportMetrics initializes transport-specific metrics
func InitTransportMetrics() (*TransportMetrics, error) {
	meter := otel.Meter("gqlhttp")

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL requests with errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	batchSize, err := meter.Int64Histogram(
		"graphql.batch.size",
		metric.WithDescription("Number of queries in a transport batch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch size histogram: %w", err)
	}

	mergedFields, err := meter.Int64Histogram(
		"graphql.batch.merged_fields",
		metric.WithDescription("Number of top-level fields in a merged batch operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create merged fields histogram: %w", err)
	}

	activeSubscriptions, err := meter.Int64UpDownCounter(
		"graphql.subscriptions.active",
		metric.WithDescription("Number of open subscription streams"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active subscriptions counter: %w", err)
	}

	inputErrors, err := meter.Int64Counter(
		"graphql.input_errors.total",
		metric.WithDescription("Total number of malformed requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input errors counter: %w", err)
	}

	methodRejections, err := meter.Int64Counter(
		"graphql.method_rejections.total",
		metric.WithDescription("Total number of operations rejected by HTTP method policy"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create method rejections counter: %w", err)
	}

	return &TransportMetrics{
		requestDuration:     requestDuration,
		requestCounter:      requestCounter,
		errorCounter:        errorCounter,
		activeRequests:      activeRequests,
		batchSize:           batchSize,
		mergedFields:        mergedFields,
		activeSubscriptions: activeSubscriptions,
		inputErrors:         inputErrors,
		methodRejections:    methodRejections,
	}, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *TransportMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := []attribute.KeyValue{
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	}

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// RecordBatch records the size of a transport batch
func (m *TransportMetrics) RecordBatch(ctx context.Context, size int) {
	m.batchSize.Record(ctx, int64(size))
}

// RecordMergedFields records how many top-level fields a merged operation carried
func (m *TransportMetrics) RecordMergedFields(ctx context.Context, count int64, operationType string) {
	m.mergedFields.Record(ctx, count, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordInputError counts a malformed request
func (m *TransportMetrics) RecordInputError(ctx context.Context) {
	m.inputErrors.Add(ctx, 1)
}

// RecordMethodRejection counts an operation blocked by the HTTP method policy
func (m *TransportMetrics) RecordMethodRejection(ctx context.Context, operationType string) {
	m.methodRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// SubscriptionStarted increments the open subscription stream gauge
func (m *TransportMetrics) SubscriptionStarted(ctx context.Context) {
	m.activeSubscriptions.Add(ctx, 1)
}

// SubscriptionEnded decrements the open subscription stream gauge
func (m *TransportMetrics) SubscriptionEnded(ctx context.Context) {
	m.activeSubscriptions.Add(ctx, -1)
}

// IncrementActiveRequests increments the active requests counter
func (m *TransportMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *TransportMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the TransportMetrics instance
func InitMetrics(logger *slog.Logger) (*TransportMetrics, error) {
	metrics, err := InitTransportMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transport metrics: %w", err)
	}

	logger.Info("custom transport metrics initialized")
	return metrics, nil
}

type transportMetricsContextKey struct{}

// ContextWithTransportMetrics stores transport metrics in the provided context.
func ContextWithTransportMetrics(ctx context.Context, metrics *TransportMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, transportMetricsContextKey{}, metrics)
}

// TransportMetricsFromContext retrieves transport metrics from the context.
func TransportMetricsFromContext(ctx context.Context) *TransportMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(transportMetricsContextKey{}).(*TransportMetrics)
	return metrics
}
