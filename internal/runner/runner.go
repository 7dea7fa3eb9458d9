// Package runner executes prepared documents through the engine pipeline.
// Single queries run straight through; batches merge their top-level field
// selections into one synthetic operation so resolution runs once, then split
// the merged result back apart per query.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"

	"gqlhttp/internal/gqlrequest"
	"gqlhttp/internal/pipeline"
)

// Options carries the immutable execution inputs shared by every query in a
// request.
type Options struct {
	Schema     *graphql.Schema
	HTTPMethod string
	Root       interface{}
}

// QueryResult is one query's final outcome.
type QueryResult struct {
	Result *graphql.Result
	// PreResolution marks results whose errors were produced before field
	// resolution (missing document, parse, validation, method policy). The
	// legacy-status response mode keys off this.
	PreResolution bool
	// MethodErr is set when the HTTP method policy rejected the operation.
	// Single-mode transport maps it to 405; batch entries keep the error in
	// their own result slot.
	MethodErr *pipeline.MethodError
}

// prepared pairs a query's pipeline state with its input position.
type prepared struct {
	index int
	state *pipeline.State
}

// Prepare runs the pre-resolution phases (with the method policy spliced in)
// for one query. It returns a non-nil QueryResult when the query terminated
// before resolution, otherwise the state ready for the resolution phase.
func Prepare(ctx context.Context, q *gqlrequest.Query, opts Options) (*pipeline.State, *QueryResult, error) {
	if q.Rejected() {
		return nil, &QueryResult{
			Result:        &graphql.Result{Errors: q.RejectionErrors()},
			PreResolution: true,
		}, nil
	}

	st := &pipeline.State{
		Schema:        opts.Schema,
		HTTPMethod:    opts.HTTPMethod,
		RawDocument:   q.RawDocument,
		Document:      q.Document(),
		OperationName: q.OperationName,
		Variables:     q.Variables,
		Root:          opts.Root,
	}

	phases := pipeline.WithMethodPolicy(pipeline.PreResolution())
	if err := pipeline.Run(ctx, phases, st); err != nil {
		var methodErr *pipeline.MethodError
		if errors.As(err, &methodErr) {
			return nil, &QueryResult{
				Result: &graphql.Result{
					Errors: []gqlerrors.FormattedError{gqlerrors.NewFormattedError(methodErr.Error())},
				},
				PreResolution: true,
				MethodErr:     methodErr,
			}, nil
		}
		return nil, nil, err
	}

	if st.Halted() {
		st.Resume()
		if err := pipeline.Run(ctx, pipeline.PostResolution(), st); err != nil {
			return nil, nil, err
		}
		return nil, &QueryResult{Result: st.Result, PreResolution: true}, nil
	}

	if errs := missingVariableErrors(st); len(errs) > 0 {
		return nil, &QueryResult{
			Result:        &graphql.Result{Errors: errs},
			PreResolution: true,
		}, nil
	}
	return st, nil, nil
}

// missingVariableErrors reports each non-null variable the operation declares
// without a default and the caller never supplied. The engine only surfaces
// these at resolution time as operation-level errors with no path, which
// cannot be routed back to one query after a merged pass, so they are caught
// per query here with the same message the engine would produce.
func missingVariableErrors(st *pipeline.State) []gqlerrors.FormattedError {
	if st.Operation == nil {
		return nil
	}
	var errs []gqlerrors.FormattedError
	for _, def := range st.Operation.VariableDefinitions {
		if def == nil || def.DefaultValue != nil {
			continue
		}
		if _, nonNull := def.Type.(*ast.NonNull); !nonNull {
			continue
		}
		name := ""
		if def.Variable != nil && def.Variable.Name != nil {
			name = def.Variable.Name.Value
		}
		if value, supplied := st.Variables[name]; supplied && value != nil {
			continue
		}
		errs = append(errs, gqlerrors.NewFormattedError(fmt.Sprintf(
			`Variable "$%s" of required type "%v" was not provided.`,
			name, printer.Print(def.Type))))
	}
	return errs
}

// RunOne executes a single query through the full pipeline.
func RunOne(ctx context.Context, q *gqlrequest.Query, opts Options) (*QueryResult, error) {
	st, done, err := Prepare(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	if done != nil {
		return done, nil
	}
	return Finish(ctx, st)
}

// Finish runs the resolution and formatting phases over a prepared state.
func Finish(ctx context.Context, st *pipeline.State) (*QueryResult, error) {
	if err := pipeline.Run(ctx, pipeline.Resolution(), st); err != nil {
		return nil, err
	}
	if err := pipeline.Run(ctx, pipeline.PostResolution(), st); err != nil {
		return nil, err
	}
	return &QueryResult{Result: st.Result}, nil
}

// RunMany executes a batch. Output order matches input order exactly; a
// failing entry occupies its own result slot and never aborts its siblings.
func RunMany(ctx context.Context, queries []*gqlrequest.Query, opts Options) ([]*QueryResult, error) {
	results := make([]*QueryResult, len(queries))
	var resolvable []prepared

	for i, q := range queries {
		st, done, err := Prepare(ctx, q, opts)
		if err != nil {
			results[i] = internalResult(err)
			continue
		}
		if done != nil {
			results[i] = done
			continue
		}
		resolvable = append(resolvable, prepared{index: i, state: st})
	}

	groups, individual := partitionMergeable(resolvable)

	for _, p := range individual {
		res, err := Finish(ctx, p.state)
		if err != nil {
			res = internalResult(err)
		}
		results[p.index] = res
	}

	for _, group := range groups {
		if err := runMerged(ctx, group, opts, results); err != nil {
			for _, p := range group {
				if results[p.index] == nil {
					results[p.index] = internalResult(err)
				}
			}
		}
	}

	return results, nil
}

// partitionMergeable groups states whose selections can join a merged
// resolution pass. Merging requires plain fields at the operation root; each
// entry merges with the other entries of its operation type, so one off-type
// entry never demotes the rest of the batch. A group of one runs
// individually since there is nothing to amortize.
func partitionMergeable(states []prepared) (groups [][]prepared, individual []prepared) {
	byType := map[string][]prepared{}
	var order []string
	for _, p := range states {
		if !topLevelFieldsOnly(p.state.Operation) {
			individual = append(individual, p)
			continue
		}
		opType := p.state.OperationType()
		if _, seen := byType[opType]; !seen {
			order = append(order, opType)
		}
		byType[opType] = append(byType[opType], p)
	}
	for _, opType := range order {
		group := byType[opType]
		if len(group) == 1 {
			individual = append(individual, group[0])
			continue
		}
		groups = append(groups, group)
	}
	return groups, individual
}

// internalResult hides the failure detail from the client; callers log it.
func internalResult(_ error) *QueryResult {
	return &QueryResult{
		Result: &graphql.Result{
			Errors: []gqlerrors.FormattedError{gqlerrors.NewFormattedError("internal error")},
		},
	}
}
