package gqlrequest

import (
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
)

// Query is one candidate GraphQL operation extracted from a request. It is
// created once during parsing, moved to a resolved or rejected state exactly
// once by document resolution, and discarded after the response is written.
// A Query is owned exclusively by its request's processing flow.
type Query struct {
	// RawDocument is the GraphQL source text, empty when the request did not
	// carry one (a persisted-document provider may still resolve the query).
	RawDocument string

	Variables     map[string]interface{}
	OperationName string

	// CorrelationID is the caller-supplied "id" on a batch entry, echoed back
	// on the matching output entry. Absent in single mode.
	CorrelationID    string
	HasCorrelationID bool

	// Extra holds any additional caller-supplied keys on a batch entry; they
	// are echoed back untouched.
	Extra map[string]interface{}

	// DocumentID keys persisted-document lookups. Populated from the
	// "documentId" field or extensions.persistedQuery.sha256Hash.
	DocumentID string

	document        *ast.Document
	resolved        bool
	rejected        bool
	noDocument      bool
	rejectionErrors []gqlerrors.FormattedError
}

// Resolved reports whether a provider supplied an executable document.
func (q *Query) Resolved() bool { return q.resolved }

// Rejected reports whether document resolution terminally failed.
func (q *Query) Rejected() bool { return q.rejected }

// NoDocument reports whether the rejection was "no document supplied", as
// opposed to a document that failed to parse.
func (q *Query) NoDocument() bool { return q.noDocument }

// Document returns the resolved executable document, nil until resolved.
func (q *Query) Document() *ast.Document { return q.document }

// RejectionErrors returns the errors recorded when the query was rejected.
func (q *Query) RejectionErrors() []gqlerrors.FormattedError {
	return q.rejectionErrors
}

// MarkResolved moves the query into the resolved state.
func (q *Query) MarkResolved(doc *ast.Document) {
	q.document = doc
	q.resolved = true
	q.rejected = false
}

// MarkRejected moves the query into the rejected state with the given errors.
func (q *Query) MarkRejected(errs ...gqlerrors.FormattedError) {
	q.rejected = true
	q.resolved = false
	q.rejectionErrors = append(q.rejectionErrors, errs...)
}

// MarkNoDocument rejects the query because no provider supplied a document.
func (q *Query) MarkNoDocument(message string) {
	q.noDocument = true
	q.MarkRejected(gqlerrors.NewFormattedError(message))
}

func newQuery() *Query {
	return &Query{
		Variables: map[string]interface{}{},
		Extra:     map[string]interface{}{},
	}
}
