// Package observability wires the OpenTelemetry providers used by the
// transport: Prometheus-backed metrics, OTLP traces and OTLP logs (gRPC or
// http/protobuf).
package observability

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// Config identifies the service to the telemetry backends and carries the
// OTLP exporter settings shared by traces and logs.
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Environment      string
	TraceSampleRatio float64
	OTLPConfig       OTLPExporterConfig
}

// OTLPExporterConfig holds per-signal OTLP exporter settings.
type OTLPExporterConfig struct {
	Endpoint          string
	Protocol          string
	Insecure          bool
	TLSCertFile       string
	TLSClientCertFile string
	TLSClientKeyFile  string
	Headers           map[string]string
	Timeout           time.Duration
	Compression       string
	RetryEnabled      bool
	RetryMaxAttempts  int
}

const providerShutdownTimeout = 5 * time.Second

// Retry backoff applied to OTLP exports when retries are enabled.
const (
	retryInitialInterval = 1 * time.Second
	retryMaxInterval     = 5 * time.Second
	retryMaxElapsed      = 30 * time.Second
)

type otlpProtocol string

const (
	otlpProtocolGRPC otlpProtocol = "grpc"
	otlpProtocolHTTP otlpProtocol = "http/protobuf"
)

func parseOTLPProtocol(value string) (otlpProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(otlpProtocolGRPC):
		return otlpProtocolGRPC, nil
	case "http", string(otlpProtocolHTTP):
		return otlpProtocolHTTP, nil
	default:
		return "", fmt.Errorf("unsupported OTLP protocol %q (use grpc or http/protobuf)", value)
	}
}

// serviceResource builds the shared resource describing this service. The
// schema URL is left empty so merging with resource.Default never conflicts.
func serviceResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func buildTLSConfig(cfg OTLPExporterConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.TLSCertFile != "" {
		certPool := x509.NewCertPool()
		caCert, err := os.ReadFile(cfg.TLSCertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read OTLP TLS CA file: %w", err)
		}
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse OTLP TLS CA file")
		}
		tlsConfig.RootCAs = certPool
	}

	// Client cert and key come as a pair for mTLS.
	if cfg.TLSClientCertFile != "" || cfg.TLSClientKeyFile != "" {
		if cfg.TLSClientCertFile == "" || cfg.TLSClientKeyFile == "" {
			return nil, fmt.Errorf("OTLP TLS client cert and key must both be set")
		}
		cert, err := tls.LoadX509KeyPair(cfg.TLSClientCertFile, cfg.TLSClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load OTLP TLS client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func isHTTPEndpointURL(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

func retryWanted(cfg OTLPExporterConfig) bool {
	return cfg.RetryEnabled && cfg.RetryMaxAttempts > 0
}

func shutdownProvider(ctx context.Context, logger *slog.Logger, name string, stop func(context.Context) error) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, providerShutdownTimeout)
	defer cancel()

	if err := stop(shutdownCtx); err != nil {
		logger.Error("failed to shutdown "+name, slog.String("error", err.Error()))
		return err
	}

	logger.Info(name + " shutdown successfully")
	return nil
}

// MeterProvider wraps the OpenTelemetry meter provider and its Prometheus
// exporter.
type MeterProvider struct {
	provider *metric.MeterProvider
	exporter *prometheus.Exporter
}

// InitMeterProvider initializes metrics with a Prometheus exporter and
// installs the provider globally.
func InitMeterProvider(cfg Config) (*MeterProvider, error) {
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	return &MeterProvider{provider: provider, exporter: exporter}, nil
}

// Shutdown flushes and stops the meter provider.
func (mp *MeterProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdownProvider(ctx, logger, "meter provider", mp.provider.Shutdown)
}

// Exporter returns the Prometheus exporter backing the /metrics handler.
func (mp *MeterProvider) Exporter() *prometheus.Exporter {
	return mp.exporter
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

func grpcTraceExporter(ctx context.Context, cfg OTLPExporterConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}

	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}
	if cfg.Compression == "gzip" {
		opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
	}
	if retryWanted(cfg) {
		opts = append(opts, otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: retryInitialInterval,
			MaxInterval:     retryMaxInterval,
			MaxElapsedTime:  retryMaxElapsed,
		}))
	}

	return otlptracegrpc.New(ctx, opts...)
}

func httpTraceExporter(ctx context.Context, cfg OTLPExporterConfig) (sdktrace.SpanExporter, error) {
	var opts []otlptracehttp.Option

	if isHTTPEndpointURL(cfg.Endpoint) {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}

	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	if cfg.Compression == "gzip" {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	if retryWanted(cfg) {
		opts = append(opts, otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled:         true,
			InitialInterval: retryInitialInterval,
			MaxInterval:     retryMaxInterval,
			MaxElapsedTime:  retryMaxElapsed,
		}))
	}

	return otlptracehttp.New(ctx, opts...)
}

// InitTracerProvider initializes tracing with an OTLP exporter and installs
// the provider globally.
func InitTracerProvider(cfg Config) (*TracerProvider, error) {
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	protocol, err := parseOTLPProtocol(cfg.OTLPConfig.Protocol)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	var traceExporter sdktrace.SpanExporter
	switch protocol {
	case otlpProtocolGRPC:
		traceExporter, err = grpcTraceExporter(ctx, cfg.OTLPConfig)
	case otlpProtocolHTTP:
		traceExporter, err = httpTraceExporter(ctx, cfg.OTLPConfig)
	default:
		return nil, fmt.Errorf("unsupported OTLP trace protocol %q", cfg.OTLPConfig.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithSampler(traceSamplerForRatio(cfg.TraceSampleRatio)),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider}, nil
}

func traceSamplerForRatio(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Shutdown flushes and stops the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdownProvider(ctx, logger, "tracer provider", tp.provider.Shutdown)
}

// LoggerProvider wraps the OpenTelemetry logger provider feeding the slog
// OTLP bridge.
type LoggerProvider struct {
	provider *log.LoggerProvider
}

func grpcLogExporter(ctx context.Context, cfg OTLPExporterConfig) (log.Exporter, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}

	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	} else {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlploggrpc.WithTimeout(cfg.Timeout))
	}
	if cfg.Compression == "gzip" {
		opts = append(opts, otlploggrpc.WithCompressor("gzip"))
	}
	if retryWanted(cfg) {
		opts = append(opts, otlploggrpc.WithRetry(otlploggrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: retryInitialInterval,
			MaxInterval:     retryMaxInterval,
			MaxElapsedTime:  retryMaxElapsed,
		}))
	}

	return otlploggrpc.New(ctx, opts...)
}

func httpLogExporter(ctx context.Context, cfg OTLPExporterConfig) (log.Exporter, error) {
	var opts []otlploghttp.Option

	if isHTTPEndpointURL(cfg.Endpoint) {
		opts = append(opts, otlploghttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlploghttp.WithEndpoint(cfg.Endpoint))
	}

	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	} else {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlploghttp.WithTLSClientConfig(tlsConfig))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.Timeout))
	}
	if cfg.Compression == "gzip" {
		opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
	}
	if retryWanted(cfg) {
		opts = append(opts, otlploghttp.WithRetry(otlploghttp.RetryConfig{
			Enabled:         true,
			InitialInterval: retryInitialInterval,
			MaxInterval:     retryMaxInterval,
			MaxElapsedTime:  retryMaxElapsed,
		}))
	}

	return otlploghttp.New(ctx, opts...)
}

// InitLoggerProvider initializes the OTLP log exporter used by the slog
// bridge. Unlike the meter and tracer providers it is not installed globally;
// the logging package attaches it to its own handler.
func InitLoggerProvider(cfg Config) (*LoggerProvider, error) {
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	protocol, err := parseOTLPProtocol(cfg.OTLPConfig.Protocol)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	var logExporter log.Exporter
	switch protocol {
	case otlpProtocolGRPC:
		logExporter, err = grpcLogExporter(ctx, cfg.OTLPConfig)
	case otlpProtocolHTTP:
		logExporter, err = httpLogExporter(ctx, cfg.OTLPConfig)
	default:
		return nil, fmt.Errorf("unsupported OTLP log protocol %q", cfg.OTLPConfig.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	provider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(logExporter)),
	)

	return &LoggerProvider{provider: provider}, nil
}

// Shutdown flushes and stops the logger provider.
func (lp *LoggerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdownProvider(ctx, logger, "logger provider", lp.provider.Shutdown)
}

// Provider returns the underlying logger provider.
func (lp *LoggerProvider) Provider() *log.LoggerProvider {
	return lp.provider
}
