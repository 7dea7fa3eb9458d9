// Package pipeline models document processing as an explicit ordered list of
// phases (parse, select operation, validate, resolve, format) so callers can
// run partial pipelines and splice policy phases in at runtime.
package pipeline

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
)

// Phase is one discrete step of the execution pipeline.
type Phase interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

// State carries a single query through the phases. It is owned by one
// request-handling flow and never shared.
type State struct {
	Schema     *graphql.Schema
	HTTPMethod string

	RawDocument   string
	Document      *ast.Document
	OperationName string
	Variables     map[string]interface{}
	Root          interface{}

	Operation *ast.OperationDefinition
	Fragments map[string]*ast.FragmentDefinition

	Result *graphql.Result
	Errors []gqlerrors.FormattedError

	halted bool
}

// Halt stops the pipeline after the current phase; accumulated errors become
// the result.
func (s *State) Halt() { s.halted = true }

// Halted reports whether a phase stopped the pipeline.
func (s *State) Halted() bool { return s.halted }

// Resume clears a halt so a later partial pipeline (e.g. formatting) can run
// over the accumulated errors.
func (s *State) Resume() { s.halted = false }

// OperationType returns the selected operation's type, empty before
// selection.
func (s *State) OperationType() string {
	if s.Operation == nil {
		return ""
	}
	return s.Operation.Operation
}

// AddErrors records client-visible GraphQL errors.
func (s *State) AddErrors(errs ...gqlerrors.FormattedError) {
	s.Errors = append(s.Errors, errs...)
}

// Run executes phases in order until one halts the state or fails. A phase
// error is an internal failure; client-visible errors accumulate on the
// state instead.
func Run(ctx context.Context, phases []Phase, st *State) error {
	for _, phase := range phases {
		if st.Halted() {
			return nil
		}
		if err := phase.Run(ctx, st); err != nil {
			return fmt.Errorf("phase %s: %w", phase.Name(), err)
		}
	}
	return nil
}

// InsertAfter splices phase in immediately after the phase named anchor,
// returning a new slice. When the anchor is absent the phase is appended.
func InsertAfter(phases []Phase, anchor string, phase Phase) []Phase {
	out := make([]Phase, 0, len(phases)+1)
	inserted := false
	for _, p := range phases {
		out = append(out, p)
		if p.Name() == anchor {
			out = append(out, phase)
			inserted = true
		}
	}
	if !inserted {
		out = append(out, phase)
	}
	return out
}

// PreResolution returns the phases that run before field resolution.
func PreResolution() []Phase {
	return []Phase{parsePhase{}, selectOperationPhase{}, validatePhase{}}
}

// WithMethodPolicy splices the HTTP method policy in immediately after
// operation selection, before validation and resolution.
func WithMethodPolicy(phases []Phase) []Phase {
	return InsertAfter(phases, phaseSelectOperation, methodPolicyPhase{})
}

// Resolution returns the field-resolution phase.
func Resolution() []Phase {
	return []Phase{resolvePhase{}}
}

// PostResolution returns the result-shaping phases that run after
// resolution.
func PostResolution() []Phase {
	return []Phase{formatPhase{}}
}

// Full returns the complete pipeline including the method policy.
func Full() []Phase {
	phases := WithMethodPolicy(PreResolution())
	phases = append(phases, Resolution()...)
	return append(phases, PostResolution()...)
}
