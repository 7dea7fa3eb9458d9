package serverapp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"gqlhttp/internal/config"
	"gqlhttp/internal/document"
	"gqlhttp/internal/itemstore"
	"gqlhttp/internal/logging"
	"gqlhttp/internal/middleware"
	"gqlhttp/internal/observability"
	"gqlhttp/internal/pubsub"
	"gqlhttp/internal/transport"

	"github.com/graphql-go/graphql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          logsConfig.Endpoint,
			Protocol:          logsConfig.Protocol,
			Insecure:          logsConfig.Insecure,
			TLSCertFile:       logsConfig.TLSCertFile,
			TLSClientCertFile: logsConfig.TLSClientCertFile,
			TLSClientKeyFile:  logsConfig.TLSClientKeyFile,
			Headers:           logsConfig.Headers,
			Timeout:           logsConfig.Timeout,
			Compression:       logsConfig.Compression,
			RetryEnabled:      logsConfig.RetryEnabled,
			RetryMaxAttempts:  logsConfig.RetryMaxAttempts,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("OpenTelemetry logging initialized successfully")

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.TransportMetrics, *observability.SecurityMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)

	meterProvider, err := observability.InitMeterProvider(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
		OTLPConfig:     observability.OTLPExporterConfig{},
	})
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("OpenTelemetry metrics initialized successfully")

	transportMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}

	securityMetrics, err := observability.InitSecurityMetrics()
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("security metrics initialized")

	return meterProvider, transportMetrics, securityMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Bool("insecure", tracesConfig.Insecure),
	)

	tracerProvider, err := observability.InitTracerProvider(observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          tracesConfig.Endpoint,
			Protocol:          tracesConfig.Protocol,
			Insecure:          tracesConfig.Insecure,
			TLSCertFile:       tracesConfig.TLSCertFile,
			TLSClientCertFile: tracesConfig.TLSClientCertFile,
			TLSClientKeyFile:  tracesConfig.TLSClientKeyFile,
			Headers:           tracesConfig.Headers,
			Timeout:           tracesConfig.Timeout,
			Compression:       tracesConfig.Compression,
			RetryEnabled:      tracesConfig.RetryEnabled,
			RetryMaxAttempts:  tracesConfig.RetryMaxAttempts,
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("OpenTelemetry tracing initialized successfully")

	return tracerProvider, nil
}

func buildItemStore() *itemstore.Store {
	return itemstore.NewStore(pubsub.New(0))
}

func buildSchema(store *itemstore.Store) (*graphql.Schema, error) {
	schema, err := itemstore.Schema(store)
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// buildDocumentProviders assembles the provider chain: persisted lookup first
// when enabled, ad hoc text always last. The returned CacheStore is non-nil
// only when persisted documents are enabled and must be closed on shutdown.
func buildDocumentProviders(cfg *config.Config, logger *logging.Logger) ([]document.Provider, *document.CacheStore, error) {
	if !cfg.GraphQL.PersistedDocuments.Enabled {
		return nil, nil, nil
	}

	documents, err := loadPersistedDocuments(cfg.GraphQL.PersistedDocuments.File)
	if err != nil {
		return nil, nil, err
	}

	store, err := document.NewCacheStore(cfg.GraphQL.PersistedDocuments.CacheMaxBytes)
	if err != nil {
		return nil, nil, err
	}
	for id, text := range documents {
		store.Put(id, text)
	}
	store.Wait()

	logger.Info("persisted documents loaded",
		slog.String("file", cfg.GraphQL.PersistedDocuments.File),
		slog.Int("count", len(documents)),
	)

	providers := []document.Provider{
		document.NewPersistedProvider(store),
		document.TextProvider{},
	}
	return providers, store, nil
}

func loadPersistedDocuments(file string) (map[string]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted documents file: %w", err)
	}
	documents := map[string]string{}
	if err := json.Unmarshal(data, &documents); err != nil {
		return nil, fmt.Errorf("failed to parse persisted documents file %s: %w", file, err)
	}
	return documents, nil
}

func oidcAuthConfig(cfg *config.Config) middleware.OIDCAuthConfig {
	return middleware.OIDCAuthConfig{
		Enabled:       cfg.Server.Auth.OIDCEnabled,
		IssuerURL:     cfg.Server.Auth.OIDCIssuerURL,
		Audience:      cfg.Server.Auth.OIDCAudience,
		ClockSkew:     cfg.Server.Auth.OIDCClockSkew,
		SkipTLSVerify: cfg.Server.Auth.OIDCSkipTLSVerify,
	}
}

func transportOptions(cfg *config.Config, logger *logging.Logger, schema *graphql.Schema, providers []document.Provider, metrics *observability.TransportMetrics) transport.Options {
	return transport.Options{
		Schema:             schema,
		Providers:          providers,
		PayloadKey:         cfg.GraphQL.PayloadKey,
		FlatBatchResults:   cfg.GraphQL.FlatBatchResults,
		LegacyErrorStatus:  cfg.GraphQL.LegacyErrorStatus,
		MethodErrorsAsJSON: cfg.GraphQL.MethodErrorsAsJSON,
		MaxBatchSize:       cfg.GraphQL.MaxBatchSize,
		MaxUploadMemory:    cfg.GraphQL.MaxUploadMemory,
		HeartbeatInterval:  cfg.GraphQL.SubscriptionHeartbeat,
		SSESpecCompliant:   cfg.GraphQL.SSESpecCompliant,
		Logger:             logger,
		Metrics:            metrics,
	}
}

func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, schema *graphql.Schema, providers []document.Provider, transportMetrics *observability.TransportMetrics, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var handler http.Handler = transport.New(transportOptions(cfg, logger, schema, providers, transportMetrics))

	handler = middleware.GraphQLTracingMiddleware()(handler)

	if cfg.Observability.MetricsEnabled && transportMetrics != nil {
		handler = middleware.GraphQLMetricsMiddleware(transportMetrics)(handler)
		logger.Info("GraphQL metrics middleware enabled")
	}

	// Middleware order, outermost first: logging -> OIDC auth -> metrics ->
	// tracing -> transport. Auth runs before metrics so rejected requests are
	// not counted against GraphQL execution.
	if cfg.Server.Auth.OIDCEnabled {
		authMiddleware, err := middleware.OIDCAuthMiddleware(oidcAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return nil, err
		}
		handler = authMiddleware(handler)
		logger.Info("OIDC auth middleware enabled")
	}

	return middleware.LoggingMiddleware(logger)(handler), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, schema *graphql.Schema, graphqlHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/graphql", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/health", healthHandler())

	if cfg.Server.GraphiQLEnabled {
		mux.Handle("/graphiql", transport.IDE(transport.Options{Schema: schema}))
		logger.Info("GraphiQL endpoint enabled", slog.String("path", "/graphiql"))
	}

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/graphiql", "/health", "/metrics":
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) (*http.Server, error) {
	tlsEnabled := cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"
	if tlsEnabled && (cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "") {
		return nil, fmt.Errorf("TLS mode %q requires tls_cert_file and tls_key_file", cfg.Server.TLSMode)
	}

	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, nil
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	tlsEnabled := cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"
	go func() {
		protocol := "http"
		if tlsEnabled {
			protocol = "https"
		}

		logAttrs := []any{
			slog.String("protocol", protocol),
			slog.String("address", serverAddr),
			slog.String("graphql_endpoint", "/graphql"),
			slog.String("health_endpoint", "/health"),
			slog.String("payload_key", cfg.GraphQL.PayloadKey),
			slog.String("log_level", cfg.Observability.Logging.Level),
			slog.String("log_format", cfg.Observability.Logging.Format),
		}

		if cfg.Server.GraphiQLEnabled {
			logAttrs = append(logAttrs, slog.String("graphiql_endpoint", "/graphiql"))
		}

		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}

		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}

		if tlsEnabled {
			logAttrs = append(logAttrs,
				slog.Bool("tls_enabled", true),
				slog.String("tls_mode", cfg.Server.TLSMode))
		} else {
			logAttrs = append(logAttrs, slog.Bool("tls_enabled", false))
		}

		logger.Info("server starting", logAttrs...)

		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// healthHandler reports process liveness. The transport holds no external
// connections, so health is a constant once the server is listening.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())

		w.Header().Set("Content-Type", "application/json")

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy"}`)
	}
}
