package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecurityMetrics holds security-related metrics for monitoring authentication and authorization
type SecurityMetrics struct {
	authAttempts          metric.Int64Counter
	authFailures          metric.Int64Counter
	authSuccesses         metric.Int64Counter
	unauthorizedAttempts  metric.Int64Counter
	tokenValidationErrors metric.Int64Counter
}

// InitSecurityMetrics initializes security-specific metrics
func InitSecurityMetrics() (*SecurityMetrics, error) {
	meter := otel.Meter("gqlhttp/security")

	var err error
	counter := func(name, description string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(description))
		return c
	}

	m := &SecurityMetrics{
		authAttempts:          counter("security.auth.attempts.total", "Total number of authentication attempts"),
		authFailures:          counter("security.auth.failures.total", "Total number of authentication failures"),
		authSuccesses:         counter("security.auth.successes.total", "Total number of successful authentications"),
		unauthorizedAttempts:  counter("security.unauthorized.attempts.total", "Total number of unauthorized access attempts"),
		tokenValidationErrors: counter("security.token.validation_errors.total", "Total number of token validation errors"),
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create security metrics: %w", err)
	}

	return m, nil
}

// RecordAuthAttempt records an authentication attempt
func (m *SecurityMetrics) RecordAuthAttempt(ctx context.Context, endpoint string) {
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordAuthFailure records a failed authentication attempt
func (m *SecurityMetrics) RecordAuthFailure(ctx context.Context, endpoint, reason string) {
	m.authFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	))
}

// RecordAuthSuccess records a successful authentication
func (m *SecurityMetrics) RecordAuthSuccess(ctx context.Context, endpoint, issuer string) {
	m.authSuccesses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("issuer", issuer),
	))
}

// RecordUnauthorizedAttempt records an unauthorized access attempt
func (m *SecurityMetrics) RecordUnauthorizedAttempt(ctx context.Context, endpoint, reason string) {
	m.unauthorizedAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	))
}

// RecordTokenValidationError records a token validation error
func (m *SecurityMetrics) RecordTokenValidationError(ctx context.Context, errorType string) {
	m.tokenValidationErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
	))
}
