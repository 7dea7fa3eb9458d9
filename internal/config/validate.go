package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Server.validate(result)
	c.GraphQL.validate(result)
	c.Observability.validate(result)

	return result
}

func (g *GraphQLConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(g.PayloadKey) == "" && !g.FlatBatchResults {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graphql.payload_key",
			Message: "payload_key cannot be empty when batch results are nested",
			Hint:    "set graphql.payload_key or enable graphql.flat_batch_results",
		})
	}

	if g.PayloadKey != "" && g.FlatBatchResults {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "graphql.payload_key",
			Message: "payload_key is set but flat_batch_results is enabled",
			Hint:    "the payload key is ignored when results are flat",
		})
	}

	if g.MaxBatchSize < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graphql.max_batch_size",
			Message: "max_batch_size cannot be negative",
		})
	}

	if g.MaxUploadMemory < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graphql.max_upload_memory",
			Message: "max_upload_memory cannot be negative",
		})
	}

	if g.SubscriptionHeartbeat < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graphql.subscription_heartbeat",
			Message: "subscription_heartbeat cannot be negative",
		})
	}

	if g.PersistedDocuments.Enabled {
		if strings.TrimSpace(g.PersistedDocuments.File) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "graphql.persisted_documents.file",
				Message: "document file is required when persisted documents are enabled",
				Hint:    "set graphql.persisted_documents.file to a JSON id-to-text map",
			})
		}
		if g.PersistedDocuments.CacheMaxBytes <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "graphql.persisted_documents.cache_max_bytes",
				Message: "cache_max_bytes must be greater than 0",
			})
		}
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	// Port range validation
	if s.Port < 1 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port),
		})
	}

	// Rate limit validation
	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.rate_limit_rps",
				Message: "rate_limit_rps must be greater than 0 when rate limiting is enabled",
			})
		}
		if s.RateLimitBurst <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.rate_limit_burst",
				Message: "rate_limit_burst must be greater than 0 when rate limiting is enabled",
			})
		}
	}

	if !s.RateLimitEnabled && (s.RateLimitRPS > 0 || s.RateLimitBurst > 0) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.rate_limit_enabled",
			Message: "rate limit values are set but rate limiting is disabled",
			Hint:    "enable server.rate_limit_enabled to apply rate limits",
		})
	}

	// CORS validation
	if s.CORSEnabled {
		if len(s.CORSAllowedOrigins) == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "CORS enabled but no allowed origins configured",
				Hint:    "set cors_allowed_origins or disable CORS",
			})
		}

		hasWildcard := false
		for _, origin := range s.CORSAllowedOrigins {
			if strings.TrimSpace(origin) == "*" {
				hasWildcard = true
				break
			}
		}

		if hasWildcard && s.CORSAllowCredentials {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "wildcard origin (*) cannot be used with credentials",
				Hint:    "use specific origins with credentials, or wildcard without credentials",
			})
		}

		if hasWildcard {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS wildcard origin enabled",
				Hint:    "use specific origins in production for better security",
			})
		}
	}

	tlsEnabled := s.TLSMode != "" && s.TLSMode != "off"
	if s.CORSEnabled && tlsEnabled && len(s.CORSAllowedOrigins) > 0 {
		onlyHTTP := true
		for _, origin := range s.CORSAllowedOrigins {
			origin = strings.TrimSpace(origin)
			if origin == "" || origin == "*" {
				onlyHTTP = false
				break
			}
			if strings.HasPrefix(origin, "https://") {
				onlyHTTP = false
				break
			}
			if !strings.HasPrefix(origin, "http://") {
				onlyHTTP = false
				break
			}
		}
		if onlyHTTP {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS allowed origins are http:// only while TLS is enabled",
				Hint:    "use https:// origins when serving over TLS",
			})
		}
	}

	if s.Auth.OIDCEnabled {
		if s.Auth.OIDCIssuerURL == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.auth.oidc_issuer_url",
				Message: "issuer URL is required when OIDC is enabled",
			})
		}
		if s.Auth.OIDCAudience == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.auth.oidc_audience",
				Message: "audience is required when OIDC is enabled",
			})
		}
	}

	// TLS validation
	validTLSModes := map[string]bool{"": true, "off": true, "file": true}
	if !validTLSModes[s.TLSMode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.tls_mode",
			Message: fmt.Sprintf("invalid TLS mode %q", s.TLSMode),
			Hint:    "valid values are: off, file",
		})
	}

	if s.TLSMode == "file" {
		if s.TLSCertFile == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.tls_cert_file",
				Message: "TLS cert file required when tls_mode is 'file'",
			})
		}
		if s.TLSKeyFile == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.tls_key_file",
				Message: "TLS key file required when tls_mode is 'file'",
			})
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	// Log level validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	// Log format validation
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	// OTLP protocol validation
	o.OTLP.validate("observability.otlp", result)

	// Signal-specific OTLP validation
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
	if o.Metrics != nil {
		o.Metrics.validate("observability.metrics", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" {
		if !validOTLPEndpoint(o.Endpoint) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".endpoint",
				Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
				Hint:    "use host:port or a full URL",
			})
		}
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.RetryMaxAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".retry_max_attempts",
			Message: "retry_max_attempts cannot be negative",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
