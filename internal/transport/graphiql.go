package transport

import (
	"net/http"

	"github.com/graphql-go/handler"
)

// IDE serves the in-browser GraphiQL IDE against the same schema. It is a
// separate handler so deployments can mount it behind a dev-only flag while
// the transport handler keeps full control of the API endpoint.
func IDE(opts Options) http.Handler {
	if opts.Schema == nil {
		panic("transport: schema is required")
	}
	return handler.New(&handler.Config{
		Schema:     opts.Schema,
		Pretty:     true,
		GraphiQL:   true,
		Playground: true,
	})
}
