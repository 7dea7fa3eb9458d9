package config

import (
	"time"
)

// Config holds the application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	GraphQL       GraphQLConfig       `mapstructure:"graphql"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AuthConfig holds authentication parameters.
type AuthConfig struct {
	OIDCEnabled       bool          `mapstructure:"oidc_enabled"`
	OIDCIssuerURL     string        `mapstructure:"oidc_issuer_url"`
	OIDCAudience      string        `mapstructure:"oidc_audience"`
	OIDCClockSkew     time.Duration `mapstructure:"oidc_clock_skew"`
	OIDCSkipTLSVerify bool          `mapstructure:"oidc_skip_tls_verify"`
}

// PersistedDocumentsConfig controls the persisted document provider.
type PersistedDocumentsConfig struct {
	// Enabled adds the persisted provider ahead of the ad hoc text provider.
	Enabled bool `mapstructure:"enabled"`
	// File points to a JSON file mapping document ids to document text,
	// loaded into the store at startup.
	File string `mapstructure:"file"`
	// CacheMaxBytes bounds the in-memory document cache. Zero selects the
	// default.
	CacheMaxBytes int64 `mapstructure:"cache_max_bytes"`
}

// GraphQLConfig holds transport behavior parameters.
type GraphQLConfig struct {
	// PayloadKey nests each batch entry's result under this key.
	PayloadKey string `mapstructure:"payload_key"`
	// FlatBatchResults merges result fields directly into batch entries
	// instead of nesting them, for clients built against the legacy shape.
	FlatBatchResults bool `mapstructure:"flat_batch_results"`
	// LegacyErrorStatus returns 400 instead of 200 for single-mode results
	// whose errors were produced before field resolution.
	LegacyErrorStatus bool `mapstructure:"legacy_error_status"`
	// MethodErrorsAsJSON shapes 405 method-policy bodies as GraphQL error
	// JSON instead of plain text.
	MethodErrorsAsJSON bool `mapstructure:"method_errors_as_json"`
	// MaxBatchSize caps how many queries a batch request may carry; 0
	// disables the limit.
	MaxBatchSize int `mapstructure:"max_batch_size"`
	// MaxUploadMemory bounds in-memory multipart buffering in bytes.
	MaxUploadMemory int64 `mapstructure:"max_upload_memory"`
	// SubscriptionHeartbeat is the idle keep-alive period for SSE streams.
	SubscriptionHeartbeat time.Duration `mapstructure:"subscription_heartbeat"`
	// SSESpecCompliant emits "event: next" framed subscription events.
	SSESpecCompliant bool `mapstructure:"sse_spec_compliant"`

	PersistedDocuments PersistedDocumentsConfig `mapstructure:"persisted_documents"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port                 int           `mapstructure:"port"`
	GraphiQLEnabled      bool          `mapstructure:"graphiql_enabled"`
	Auth                 AuthConfig    `mapstructure:"auth"`
	RateLimitEnabled     bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	CORSEnabled          bool          `mapstructure:"cors_enabled"`
	CORSAllowedOrigins   []string      `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string      `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string      `mapstructure:"cors_allowed_headers"`
	CORSExposeHeaders    []string      `mapstructure:"cors_expose_headers"`
	CORSAllowCredentials bool          `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int           `mapstructure:"cors_max_age"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	IdleTimeout          time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`

	// TLS Configuration
	TLSMode     string `mapstructure:"tls_mode"`      // "off" or "file" (default: "off")
	TLSCertFile string `mapstructure:"tls_cert_file"` // Path to certificate file (for "file" mode)
	TLSKeyFile  string `mapstructure:"tls_key_file"`  // Path to private key file (for "file" mode)
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces  *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs    *OTLPConfig `mapstructure:"logs,omitempty"`
	Metrics *OTLPConfig `mapstructure:"metrics,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the effective OTLP config for traces
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// GetLogsConfig returns the effective OTLP config for logs
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// GetMetricsConfig returns the effective OTLP config for metrics
func (c *ObservabilityConfig) GetMetricsConfig() OTLPConfig {
	if c.Metrics != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Metrics)
	}
	return c.OTLP
}

// mergeOTLPConfigs merges signal-specific config over global defaults
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	result := base

	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	// Insecure is a bool, so an explicit false is indistinguishable from
	// unset. If the override struct exists its Insecure value wins.
	result.Insecure = override.Insecure

	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}

	if override.Headers != nil {
		result.Headers = make(map[string]string)
		for k, v := range base.Headers {
			result.Headers[k] = v
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	if override.RetryMaxAttempts != 0 {
		result.RetryEnabled = override.RetryEnabled
		result.RetryMaxAttempts = override.RetryMaxAttempts
	}

	return result
}
