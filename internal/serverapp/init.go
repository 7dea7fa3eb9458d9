package serverapp

import (
	"context"
	"fmt"
	"log/slog"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, transportMetrics, securityMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	store := buildItemStore()
	schema, err := buildSchema(store)
	if err != nil {
		return fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	providers, documentStore, err := buildDocumentProviders(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize persisted document store: %w", err)
	}
	if documentStore != nil {
		cleanup.push("persisted document cache", func(_ context.Context) error {
			documentStore.Close()
			return nil
		})
	}

	graphqlHandler, err := buildGraphQLHandler(a.cfg, a.logger, schema, providers, transportMetrics, securityMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize GraphQL handler: %w", err)
	}

	mux := buildRouter(a.cfg, a.logger, schema, graphqlHandler, meterProvider)
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv, err := buildServer(a.cfg, handler, serverAddr)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.logger.Info("initialized GraphQL transport",
		slog.String("payload_key", a.cfg.GraphQL.PayloadKey),
		slog.Bool("flat_batch_results", a.cfg.GraphQL.FlatBatchResults),
		slog.Bool("persisted_documents", a.cfg.GraphQL.PersistedDocuments.Enabled),
	)

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.transportMetrics = transportMetrics
	a.securityMetrics = securityMetrics
	a.tracerProvider = tracerProvider
	a.store = store
	a.schema = schema
	a.documentStore = documentStore
	a.graphqlHandler = graphqlHandler
	a.mux = mux
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
