package serverapp

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/graphql-go/graphql"

	"gqlhttp/internal/config"
	"gqlhttp/internal/document"
	"gqlhttp/internal/itemstore"
	"gqlhttp/internal/logging"
	"gqlhttp/internal/observability"
)

// App owns runtime resources for the gqlhttp server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	meterProvider    *observability.MeterProvider
	transportMetrics *observability.TransportMetrics
	securityMetrics  *observability.SecurityMetrics
	tracerProvider   *observability.TracerProvider

	store         *itemstore.Store
	schema        *graphql.Schema
	documentStore *document.CacheStore

	graphqlHandler http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler exposes the fully wrapped HTTP handler for tests.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
