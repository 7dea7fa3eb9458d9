// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var defineFlagsOnce sync.Once

// Load loads configuration from multiple sources with the following precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Default values
func Load() (*Config, error) {
	v := viper.New()

	// Defaults (lowest priority)
	setDefaults(v)

	// --- Flags ---
	defineFlags()
	if !pflag.Parsed() {
		pflag.Parse()
	}

	// --- Config file ---
	cfgPath, _ := pflag.CommandLine.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("gqlhttp")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/gqlhttp/")
		v.AddConfigPath("$HOME/.gqlhttp")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case
	// Env vars: GQLHTTP_GRAPHQL_MAX_BATCH_SIZE
	v.SetEnvPrefix("GQLHTTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags binding (highest priority) ---
	bindChangedFlagsToViper(v)

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(v *viper.Viper) {
	pflag.CommandLine.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := pflag.CommandLine.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := pflag.CommandLine.GetInt(f.Name)
			v.Set(f.Name, val)
		case "int64":
			val, _ := pflag.CommandLine.GetInt64(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := pflag.CommandLine.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := pflag.CommandLine.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := pflag.CommandLine.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := pflag.CommandLine.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// defineFlags defines all command line flags using canonical snake_case keys.
func defineFlags() {
	defineFlagsOnce.Do(func() {
		// Server flags
		pflag.Int("server.port", 0, "HTTP server port")
		pflag.Bool("server.graphiql_enabled", false, "Enable GraphiQL UI at /graphiql (dev only)")
		pflag.Bool("server.auth.oidc_enabled", false, "Enable OIDC/JWKS authentication middleware")
		pflag.String("server.auth.oidc_issuer_url", "", "OIDC issuer URL (for discovery and JWKS)")
		pflag.String("server.auth.oidc_audience", "", "Expected JWT audience (client ID)")
		pflag.Duration("server.auth.oidc_clock_skew", 0, "Allowed JWT clock skew (e.g. 2m)")
		pflag.Bool("server.auth.oidc_skip_tls_verify", false, "Skip TLS verification for OIDC provider (dev only)")
		pflag.Bool("server.rate_limit_enabled", false, "Enable global rate limiting for all HTTP endpoints")
		pflag.Float64("server.rate_limit_rps", 0, "Global rate limit requests per second")
		pflag.Int("server.rate_limit_burst", 0, "Global rate limit burst size")
		pflag.Bool("server.cors_enabled", false, "Enable CORS (Cross-Origin Resource Sharing)")
		pflag.StringSlice("server.cors_allowed_origins", nil, "Allowed CORS origins (comma-separated or repeated)")
		pflag.StringSlice("server.cors_allowed_methods", nil, "Allowed CORS methods (comma-separated or repeated)")
		pflag.StringSlice("server.cors_allowed_headers", nil, "Allowed CORS headers (comma-separated or repeated)")
		pflag.StringSlice("server.cors_expose_headers", nil, "CORS headers to expose to browser (comma-separated or repeated)")
		pflag.Bool("server.cors_allow_credentials", false, "Allow credentials in CORS requests")
		pflag.Int("server.cors_max_age", 0, "CORS preflight cache duration (seconds)")
		pflag.Duration("server.read_timeout", 0, "HTTP server read timeout")
		pflag.Duration("server.write_timeout", 0, "HTTP server write timeout")
		pflag.Duration("server.idle_timeout", 0, "HTTP server idle timeout")
		pflag.Duration("server.shutdown_timeout", 0, "HTTP server graceful shutdown timeout")

		// TLS flags
		pflag.String("server.tls_mode", "", "TLS mode: off, file (default: off)")
		pflag.String("server.tls_cert_file", "", "Path to TLS certificate file (for file mode)")
		pflag.String("server.tls_key_file", "", "Path to TLS private key file (for file mode)")

		// GraphQL transport flags
		pflag.String("graphql.payload_key", "", "Key each batch entry's result is nested under")
		pflag.Bool("graphql.flat_batch_results", false, "Merge batch results into entries instead of nesting them")
		pflag.Bool("graphql.legacy_error_status", false, "Return 400 for pre-resolution GraphQL errors")
		pflag.Bool("graphql.method_errors_as_json", false, "Shape HTTP method policy rejections as GraphQL error JSON")
		pflag.Int("graphql.max_batch_size", 0, "Maximum queries per batch request (0 = unlimited)")
		pflag.Int64("graphql.max_upload_memory", 0, "Maximum in-memory bytes for multipart uploads")
		pflag.Duration("graphql.subscription_heartbeat", 0, "Keep-alive interval for subscription streams")
		pflag.Bool("graphql.sse_spec_compliant", false, "Emit event-framed SSE subscription messages")
		pflag.Bool("graphql.persisted_documents.enabled", false, "Enable the persisted document provider")
		pflag.String("graphql.persisted_documents.file", "", "JSON file mapping persisted document ids to text")
		pflag.Int64("graphql.persisted_documents.cache_max_bytes", 0, "Maximum bytes of persisted document text to cache")

		// Observability flags
		pflag.String("observability.service_name", "", "Service name for observability")
		pflag.String("observability.service_version", "", "Service version for observability")
		pflag.String("observability.environment", "", "Environment name (dev, staging, prod)")
		pflag.Bool("observability.metrics_enabled", false, "Enable metrics collection")
		pflag.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
		pflag.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")

		// Logging flags (under observability)
		pflag.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
		pflag.String("observability.logging.format", "", "Log format (json, text)")
		pflag.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")

		// Global OTLP flags
		pflag.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals (e.g., localhost:4317)")
		pflag.String("observability.otlp.protocol", "", "OTLP protocol for all signals (grpc, http/protobuf)")
		pflag.Bool("observability.otlp.insecure", false, "Use insecure connection (no TLS)")
		pflag.String("observability.otlp.tls_cert_file", "", "Path to TLS certificate file for server verification")
		pflag.String("observability.otlp.tls_client_cert_file", "", "Path to client certificate file for mTLS")
		pflag.String("observability.otlp.tls_client_key_file", "", "Path to client key file for mTLS")
		pflag.Duration("observability.otlp.timeout", 0, "OTLP export timeout")
		pflag.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")
		pflag.Bool("observability.otlp.retry_enabled", false, "Enable retry on transient errors")
		pflag.Int("observability.otlp.retry_max_attempts", 0, "Maximum retry attempts")

		// Signal-specific OTLP flags (traces)
		pflag.String("observability.traces.endpoint", "", "OTLP endpoint for traces only")
		pflag.String("observability.traces.protocol", "", "OTLP protocol for traces (grpc, http/protobuf)")
		pflag.Bool("observability.traces.insecure", false, "Use insecure connection for traces")
		pflag.Duration("observability.traces.timeout", 0, "Timeout for trace exports")

		// Signal-specific OTLP flags (logs)
		pflag.String("observability.logs.endpoint", "", "OTLP endpoint for logs only")
		pflag.String("observability.logs.protocol", "", "OTLP protocol for logs (grpc, http/protobuf)")
		pflag.Bool("observability.logs.insecure", false, "Use insecure connection for logs")
		pflag.Duration("observability.logs.timeout", 0, "Timeout for log exports")

		// Signal-specific OTLP flags (metrics)
		pflag.String("observability.metrics.endpoint", "", "OTLP endpoint for metrics only")
		pflag.Bool("observability.metrics.insecure", false, "Use insecure connection for metrics")
		pflag.Duration("observability.metrics.timeout", 0, "Timeout for metric exports")

		// Config file flag
		pflag.StringP("config", "c", "", "Config file path")
	})
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.graphiql_enabled", false)
	v.SetDefault("server.auth.oidc_enabled", false)
	v.SetDefault("server.auth.oidc_issuer_url", "")
	v.SetDefault("server.auth.oidc_audience", "")
	v.SetDefault("server.auth.oidc_clock_skew", 2*time.Minute)
	v.SetDefault("server.auth.oidc_skip_tls_verify", false)
	v.SetDefault("server.rate_limit_enabled", false)
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("server.cors_enabled", false)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("server.cors_expose_headers", []string{})
	v.SetDefault("server.cors_allow_credentials", false)
	v.SetDefault("server.cors_max_age", 86400)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// TLS defaults
	v.SetDefault("server.tls_mode", "off")
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")

	// GraphQL transport defaults
	v.SetDefault("graphql.payload_key", "payload")
	v.SetDefault("graphql.flat_batch_results", false)
	v.SetDefault("graphql.legacy_error_status", false)
	v.SetDefault("graphql.method_errors_as_json", false)
	v.SetDefault("graphql.max_batch_size", 0)
	v.SetDefault("graphql.max_upload_memory", int64(32<<20))
	v.SetDefault("graphql.subscription_heartbeat", 30*time.Second)
	v.SetDefault("graphql.sse_spec_compliant", false)
	v.SetDefault("graphql.persisted_documents.enabled", false)
	v.SetDefault("graphql.persisted_documents.file", "")
	v.SetDefault("graphql.persisted_documents.cache_max_bytes", int64(16<<20))

	// Observability defaults
	v.SetDefault("observability.service_name", "gqlhttp")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)

	// Logging defaults (under observability)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)

	// Global OTLP defaults
	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
