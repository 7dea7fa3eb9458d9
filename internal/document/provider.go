// Package document resolves the executable document for each parsed query by
// running an ordered chain of provider strategies.
package document

import (
	"context"
	"strings"

	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"gqlhttp/internal/gqlrequest"
)

// Outcome is a provider's verdict on one query.
type Outcome int

const (
	// Declined leaves the query untouched; the chain continues.
	Declined Outcome = iota
	// Claimed means the provider moved the query to a resolved or rejected
	// state; the chain halts.
	Claimed
)

// Provider supplies an executable document for a query, or declines.
type Provider interface {
	Process(ctx context.Context, q *gqlrequest.Query) Outcome
}

// TextProvider claims queries that carry ad hoc GraphQL source text.
type TextProvider struct{}

// Process parses the raw document text. A parse failure still claims the
// query: it had text, it just was not valid GraphQL.
func (TextProvider) Process(_ context.Context, q *gqlrequest.Query) Outcome {
	if strings.TrimSpace(q.RawDocument) == "" {
		return Declined
	}
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(q.RawDocument),
			Name: "GraphQL request",
		}),
	})
	if err != nil {
		q.MarkRejected(gqlerrors.FormatErrors(err)...)
		return Claimed
	}
	q.MarkResolved(doc)
	return Claimed
}
