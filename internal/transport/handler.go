// Package transport binds the GraphQL engine to the HTTP request/response
// lifecycle: parse, resolve documents, coordinate single or batch execution,
// and assemble the response.
package transport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/graphql-go/graphql/language/ast"

	"gqlhttp/internal/batch"
	"gqlhttp/internal/document"
	"gqlhttp/internal/gqlrequest"
	"gqlhttp/internal/logging"
	"gqlhttp/internal/response"
	"gqlhttp/internal/runner"
)

// Handler serves GraphQL over HTTP.
type Handler struct {
	opts     Options
	resolver *document.Resolver
}

// New builds a handler. A nil schema or an explicitly empty provider chain
// is a deployment mistake and fails loudly.
func New(opts Options) *Handler {
	if opts.Schema == nil {
		panic("transport: schema is required")
	}
	providers := opts.Providers
	if providers == nil {
		providers = []document.Provider{document.TextProvider{}}
	}
	return &Handler{
		opts:     opts,
		resolver: document.NewResolver(providers, opts.NoDocumentMessage),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respOpts := h.opts.responseOptions()

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "only GET and POST are supported", http.StatusMethodNotAllowed)
		return
	}

	env, err := gqlrequest.ParseRequest(r, h.opts.parseOptions())
	if err != nil {
		var inputErr *gqlrequest.InputError
		if errors.As(err, &inputErr) {
			response.Write(w, respOpts.Input(inputErr.Message))
			return
		}
		h.logError(r, "request parsing failed", err)
		response.Write(w, respOpts.Internal("internal error"))
		return
	}

	ctx := r.Context()
	if env.Uploads != nil {
		defer env.Uploads.Close()
		ctx = gqlrequest.WithUploads(ctx, env.Uploads)
	}
	if h.opts.ContextFn != nil {
		ctx = h.opts.ContextFn(ctx, r)
	}
	r = r.WithContext(ctx)

	h.resolver.ResolveAll(ctx, env)

	plan, err := batch.Coordinate(env)
	if err != nil {
		h.logError(r, "batch coordination failed", err)
		response.Write(w, respOpts.Internal("internal error"))
		return
	}

	runOpts := runner.Options{
		Schema:     h.opts.Schema,
		HTTPMethod: r.Method,
		Root:       h.opts.RootValue,
	}

	if plan.IsBatch() {
		h.serveBatch(w, r, plan, runOpts, respOpts)
		return
	}
	h.serveSingle(w, r, plan.Single(), runOpts, respOpts)
}

func (h *Handler) serveSingle(w http.ResponseWriter, r *http.Request, q *gqlrequest.Query, runOpts runner.Options, respOpts response.Options) {
	// A single-mode request with no document anywhere is a client input
	// error, not a GraphQL error.
	if q.Rejected() && q.NoDocument() {
		response.Write(w, respOpts.Input(h.resolver.NoDocumentMessage()))
		return
	}

	ctx := r.Context()
	st, done, err := runner.Prepare(ctx, q, runOpts)
	if err != nil {
		h.logError(r, "query preparation failed", err)
		response.Write(w, respOpts.Internal("internal error"))
		return
	}
	if done != nil {
		if done.MethodErr != nil {
			response.Write(w, respOpts.Method(done.MethodErr))
			return
		}
		response.Write(w, respOpts.Single(done))
		return
	}

	if st.OperationType() == ast.OperationTypeSubscription {
		h.serveSubscription(w, r, st)
		return
	}

	res, err := runner.Finish(ctx, st)
	if err != nil {
		h.logError(r, "query execution failed", err)
		response.Write(w, respOpts.Internal("internal error"))
		return
	}
	response.Write(w, respOpts.Single(res))
}

func (h *Handler) serveBatch(w http.ResponseWriter, r *http.Request, plan batch.Plan, runOpts runner.Options, respOpts response.Options) {
	queries := plan.Queries()
	if h.opts.Metrics != nil {
		h.opts.Metrics.RecordBatch(r.Context(), len(queries))
	}

	results, err := runner.RunMany(r.Context(), queries, runOpts)
	if err != nil {
		h.logError(r, "batch execution failed", err)
		response.Write(w, respOpts.Internal("internal error"))
		return
	}

	entries, err := plan.Entries(results)
	if err != nil {
		h.logError(r, "batch reassembly failed", err)
		response.Write(w, respOpts.Internal("internal error"))
		return
	}
	response.Write(w, respOpts.Batch(entries))
}

func (h *Handler) logError(r *http.Request, message string, err error) {
	logger := h.opts.Logger
	if logger == nil {
		logger = logging.FromContext(r.Context())
	}
	logger.Error(message,
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	)
}
