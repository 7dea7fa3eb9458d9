package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestSetDefaults_GraphQL(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.Equal(t, "payload", v.GetString("graphql.payload_key"))
	assert.False(t, v.GetBool("graphql.flat_batch_results"))
	assert.False(t, v.GetBool("graphql.legacy_error_status"))
	assert.Equal(t, 0, v.GetInt("graphql.max_batch_size"))
	assert.Equal(t, 30*time.Second, v.GetDuration("graphql.subscription_heartbeat"))
	assert.False(t, v.GetBool("graphql.persisted_documents.enabled"))
}

// TestLoad_WithEnvVars verifies the env var naming convention.
func TestLoad_WithEnvVars(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("GQLHTTP_SERVER_PORT")
		os.Unsetenv("GQLHTTP_GRAPHQL_PAYLOAD_KEY")
	})

	os.Setenv("GQLHTTP_SERVER_PORT", "9999")
	os.Setenv("GQLHTTP_GRAPHQL_PAYLOAD_KEY", "result")

	assert.Equal(t, "9999", os.Getenv("GQLHTTP_SERVER_PORT"))
	assert.Equal(t, "result", os.Getenv("GQLHTTP_GRAPHQL_PAYLOAD_KEY"))
}

// Note: Full integration tests for Load() should be done in integration tests
// because Load() relies on global state (pflag.CommandLine) which is difficult
// to test in isolation without causing conflicts between tests.

func TestConfig_Validate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			Server: ServerConfig{
				Port:            8080,
				ReadTimeout:     15 * time.Second,
				WriteTimeout:    15 * time.Second,
				IdleTimeout:     60 * time.Second,
				ShutdownTimeout: 30 * time.Second,
			},
			GraphQL: GraphQLConfig{
				PayloadKey:            "payload",
				SubscriptionHeartbeat: 30 * time.Second,
			},
			Observability: ObservabilityConfig{
				ServiceName: "gqlhttp",
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
				},
				OTLP: OTLPConfig{
					Endpoint: "localhost:4317",
					Protocol: "grpc",
				},
			},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		cfg := validConfig()
		result := cfg.Validate()
		assert.False(t, result.HasErrors(), "unexpected errors: %s", result.Error())
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = 0
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "server.port")
	})

	t.Run("empty payload key with nested batches", func(t *testing.T) {
		cfg := validConfig()
		cfg.GraphQL.PayloadKey = ""
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "graphql.payload_key")
	})

	t.Run("empty payload key allowed when flat", func(t *testing.T) {
		cfg := validConfig()
		cfg.GraphQL.PayloadKey = ""
		cfg.GraphQL.FlatBatchResults = true
		result := cfg.Validate()
		assert.False(t, result.HasErrors(), "unexpected errors: %s", result.Error())
	})

	t.Run("negative batch size", func(t *testing.T) {
		cfg := validConfig()
		cfg.GraphQL.MaxBatchSize = -1
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "graphql.max_batch_size")
	})

	t.Run("persisted documents require a file", func(t *testing.T) {
		cfg := validConfig()
		cfg.GraphQL.PersistedDocuments.Enabled = true
		cfg.GraphQL.PersistedDocuments.CacheMaxBytes = 1 << 20
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "graphql.persisted_documents.file")
	})

	t.Run("rate limit enabled without values", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitEnabled = true
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "rate_limit_rps")
		assert.Contains(t, result.Error(), "rate_limit_burst")
	})

	t.Run("rate limit values without enable warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitRPS = 100
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("CORS wildcard with credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{"*"}
		cfg.Server.CORSAllowCredentials = true
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "wildcard")
	})

	t.Run("OIDC enabled requires issuer and audience", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Auth.OIDCEnabled = true
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "oidc_issuer_url")
		assert.Contains(t, result.Error(), "oidc_audience")
	})

	t.Run("file TLS mode requires cert and key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.TLSMode = "file"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "tls_cert_file")
		assert.Contains(t, result.Error(), "tls_key_file")
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.Level = "verbose"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.logging.level")
	})

	t.Run("invalid OTLP protocol", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTLP.Protocol = "thrift"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.otlp.protocol")
	})
}

func TestMergeOTLPConfigs(t *testing.T) {
	base := OTLPConfig{
		Endpoint:    "localhost:4317",
		Protocol:    "grpc",
		Compression: "gzip",
		Headers:     map[string]string{"x-team": "core"},
		Timeout:     10 * time.Second,
	}

	override := OTLPConfig{
		Endpoint: "collector:4318",
		Protocol: "http/protobuf",
		Headers:  map[string]string{"x-signal": "traces"},
	}

	merged := mergeOTLPConfigs(base, override)

	assert.Equal(t, "collector:4318", merged.Endpoint)
	assert.Equal(t, "http/protobuf", merged.Protocol)
	assert.Equal(t, "gzip", merged.Compression)
	assert.Equal(t, 10*time.Second, merged.Timeout)
	assert.Equal(t, "core", merged.Headers["x-team"])
	assert.Equal(t, "traces", merged.Headers["x-signal"])
}
