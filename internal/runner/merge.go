package runner

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"gqlhttp/internal/observability"
	"gqlhttp/internal/pipeline"
)

// fieldOrigin records which query a merged top-level field came from and the
// response key it had before merging. The merge step builds this side-table;
// the split step consults it.
type fieldOrigin struct {
	position int
	key      string
}

// mergedOperation is the transient synthetic operation whose top-level field
// list is the concatenation of all input queries' top-level selections. It
// exists only within one merged resolution pass.
type mergedOperation struct {
	document  *ast.Document
	args      map[string]interface{}
	sideTable map[string]fieldOrigin
}

// topLevelFieldsOnly reports whether the operation's root selections are all
// plain fields. Fragment spreads at the root cannot be re-aliased, so such
// operations run individually instead of joining a merge.
func topLevelFieldsOnly(op *ast.OperationDefinition) bool {
	if op == nil || op.SelectionSet == nil {
		return false
	}
	for _, sel := range op.SelectionSet.Selections {
		if _, ok := sel.(*ast.Field); !ok {
			return false
		}
	}
	return true
}

// merge builds one synthetic operation from the prepared states. Variable
// and fragment names are namespaced per originating query before
// concatenation so sibling queries can never collide, and every top-level
// field is re-aliased with its origin tag.
func merge(states []prepared) (*mergedOperation, error) {
	if len(states) < 2 {
		return nil, fmt.Errorf("merge requires at least two queries")
	}

	merged := &mergedOperation{
		args:      map[string]interface{}{},
		sideTable: map[string]fieldOrigin{},
	}

	var selections []ast.Selection
	var variableDefs []*ast.VariableDefinition
	var fragmentDefs []ast.Node
	operationType := states[0].state.OperationType()

	for pos, p := range states {
		op := p.state.Operation
		ns := namespacer{prefix: fmt.Sprintf("_bq%d", p.index)}

		// Rename this query's variables and fragments within its own subtree
		// only; the states own their ASTs, so in-place rewriting is safe.
		ns.rewriteOperation(op)
		for _, fragment := range p.state.Fragments {
			ns.rewriteFragmentDefinition(fragment)
			fragmentDefs = append(fragmentDefs, fragment)
		}

		for name, value := range p.state.Variables {
			merged.args[ns.variableName(name)] = value
		}
		variableDefs = append(variableDefs, op.VariableDefinitions...)

		// Tag every top-level field with its origin so the split step can
		// reassign results. The tag doubles as the merged response key,
		// which keeps identical sibling selections from colliding.
		for _, sel := range op.SelectionSet.Selections {
			field, ok := sel.(*ast.Field)
			if !ok {
				return nil, fmt.Errorf("query %d has a non-field root selection", p.index)
			}
			key := responseKey(field)
			tagged := ns.prefix + "__" + key
			field.Alias = ast.NewName(&ast.Name{Value: tagged})
			merged.sideTable[tagged] = fieldOrigin{position: pos, key: key}
			selections = append(selections, field)
		}
	}

	operation := ast.NewOperationDefinition(&ast.OperationDefinition{
		Operation:           operationType,
		VariableDefinitions: variableDefs,
		SelectionSet:        ast.NewSelectionSet(&ast.SelectionSet{Selections: selections}),
	})

	definitions := append([]ast.Node{operation}, fragmentDefs...)
	merged.document = ast.NewDocument(&ast.Document{Definitions: definitions})
	return merged, nil
}

func responseKey(field *ast.Field) string {
	if field.Alias != nil && field.Alias.Value != "" {
		return field.Alias.Value
	}
	if field.Name != nil {
		return field.Name.Value
	}
	return ""
}

// runMerged executes exactly one resolution pass over the merged operation
// and fans the result back out into the per-query slots, running the
// post-resolution formatting separately per query.
func runMerged(ctx context.Context, states []prepared, opts Options, results []*QueryResult) error {
	merged, err := merge(states)
	if err != nil {
		return err
	}

	if metrics := observability.TransportMetricsFromContext(ctx); metrics != nil {
		metrics.RecordMergedFields(ctx, int64(len(merged.sideTable)), states[0].state.OperationType())
	}

	execResult := graphql.Execute(graphql.ExecuteParams{
		Schema:  *opts.Schema,
		Root:    opts.Root,
		AST:     merged.document,
		Args:    merged.args,
		Context: ctx,
	})

	split := splitResult(execResult, merged.sideTable, len(states))

	for pos, p := range states {
		st := p.state
		st.Result = split[pos]
		if err := pipeline.Run(ctx, pipeline.PostResolution(), st); err != nil {
			results[p.index] = internalResult(err)
			continue
		}
		results[p.index] = &QueryResult{Result: st.Result}
	}
	return nil
}
