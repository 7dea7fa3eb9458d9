// Package batch decides the single-versus-batch execution path and carries
// per-query correlation metadata through to the assembled output.
package batch

import (
	"fmt"

	"gqlhttp/internal/gqlrequest"
	"gqlhttp/internal/response"
	"gqlhttp/internal/runner"
)

// Plan is the coordination outcome: a single query or an ordered batch.
type Plan struct {
	queries []*gqlrequest.Query
	batch   bool
}

// Coordinate builds the execution plan for a parsed envelope. Every query
// must already be in a resolved or rejected state; anything else is a wiring
// bug, not a client error.
func Coordinate(env *gqlrequest.Envelope) (Plan, error) {
	for i, q := range env.Queries {
		if !q.Resolved() && !q.Rejected() {
			return Plan{}, fmt.Errorf("batch: query %d reached coordination unresolved", i)
		}
	}
	return Plan{queries: env.Queries, batch: env.Batch}, nil
}

// IsBatch reports whether the request was array-shaped, even with one entry.
func (p Plan) IsBatch() bool { return p.batch }

// Single returns the one query of a non-batch plan.
func (p Plan) Single() *gqlrequest.Query { return p.queries[0] }

// Queries returns the ordered batch queries.
func (p Plan) Queries() []*gqlrequest.Query { return p.queries }

// Entries zips execution results with their originating queries so the
// assembler can echo correlation ids and extra fields. Output order is input
// order; the result slice must be positionally aligned (RunMany guarantees
// this).
func (p Plan) Entries(results []*runner.QueryResult) ([]response.BatchEntry, error) {
	if len(results) != len(p.queries) {
		return nil, fmt.Errorf("batch: %d results for %d queries", len(results), len(p.queries))
	}
	entries := make([]response.BatchEntry, len(p.queries))
	for i, q := range p.queries {
		entries[i] = response.BatchEntry{Query: q, Result: results[i]}
	}
	return entries, nil
}
