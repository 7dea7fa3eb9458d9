package document

import (
	"context"

	"gqlhttp/internal/gqlrequest"
)

// DefaultNoDocumentMessage is used when the chain exhausts without a claim
// and no message override is configured.
const DefaultNoDocumentMessage = "No query document supplied"

// Resolver runs the ordered provider chain over parsed queries.
type Resolver struct {
	providers         []Provider
	noDocumentMessage string
}

// NewResolver builds a resolver. Zero providers is a deployment mistake, not
// a client mistake, so it fails loudly.
func NewResolver(providers []Provider, noDocumentMessage string) *Resolver {
	if len(providers) == 0 {
		panic("document: at least one document provider must be configured")
	}
	if noDocumentMessage == "" {
		noDocumentMessage = DefaultNoDocumentMessage
	}
	return &Resolver{providers: providers, noDocumentMessage: noDocumentMessage}
}

// Resolve moves q from unresolved to resolved or rejected. "Not found" is an
// expected terminal state, never an error.
func (r *Resolver) Resolve(ctx context.Context, q *gqlrequest.Query) {
	if q.Resolved() || q.Rejected() {
		return
	}
	for _, provider := range r.providers {
		if provider.Process(ctx, q) == Claimed {
			return
		}
	}
	q.MarkNoDocument(r.noDocumentMessage)
}

// ResolveAll resolves every query in the envelope. A rejected entry never
// blocks its siblings.
func (r *Resolver) ResolveAll(ctx context.Context, env *gqlrequest.Envelope) {
	for _, q := range env.Queries {
		r.Resolve(ctx, q)
	}
}

// NoDocumentMessage returns the configured rejection message.
func (r *Resolver) NoDocumentMessage() string {
	return r.noDocumentMessage
}
