package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

const (
	phaseParse           = "parse"
	phaseSelectOperation = "select_operation"
	phaseMethodPolicy    = "method_policy"
	phaseValidate        = "validate"
	phaseResolve         = "resolve"
	phaseFormat          = "format"
)

type parsePhase struct{}

func (parsePhase) Name() string { return phaseParse }

func (parsePhase) Run(_ context.Context, st *State) error {
	if st.Document != nil {
		return nil
	}
	if strings.TrimSpace(st.RawDocument) == "" {
		st.AddErrors(gqlerrors.NewFormattedError("No query document supplied"))
		st.Halt()
		return nil
	}
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(st.RawDocument),
			Name: "GraphQL request",
		}),
	})
	if err != nil {
		st.AddErrors(gqlerrors.FormatErrors(err)...)
		st.Halt()
		return nil
	}
	st.Document = doc
	return nil
}

type selectOperationPhase struct{}

func (selectOperationPhase) Name() string { return phaseSelectOperation }

func (selectOperationPhase) Run(_ context.Context, st *State) error {
	if st.Document == nil {
		st.AddErrors(gqlerrors.NewFormattedError("No query document supplied"))
		st.Halt()
		return nil
	}

	st.Fragments = FragmentMap(st.Document)

	var operations []*ast.OperationDefinition
	for _, def := range st.Document.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op != nil {
			operations = append(operations, op)
		}
	}

	op, err := chooseOperation(operations, st.OperationName)
	if err != nil {
		st.AddErrors(gqlerrors.NewFormattedError(err.Error()))
		st.Halt()
		return nil
	}
	st.Operation = op
	return nil
}

func chooseOperation(operations []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(operations) {
	case 0:
		return nil, fmt.Errorf("document does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, fmt.Errorf("operationName is required when the document has multiple operations")
	}
}

// FragmentMap indexes a document's fragment definitions by name.
func FragmentMap(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	if doc == nil {
		return fragments
	}
	for _, def := range doc.Definitions {
		fragment, ok := def.(*ast.FragmentDefinition)
		if !ok || fragment == nil || fragment.Name == nil || fragment.Name.Value == "" {
			continue
		}
		fragments[fragment.Name.Value] = fragment
	}
	return fragments
}

type validatePhase struct{}

func (validatePhase) Name() string { return phaseValidate }

func (validatePhase) Run(_ context.Context, st *State) error {
	if st.Schema == nil {
		return fmt.Errorf("schema is required")
	}
	result := graphql.ValidateDocument(st.Schema, st.Document, nil)
	if !result.IsValid {
		st.AddErrors(result.Errors...)
		st.Halt()
	}
	return nil
}

type resolvePhase struct{}

func (resolvePhase) Name() string { return phaseResolve }

func (resolvePhase) Run(ctx context.Context, st *State) error {
	if st.Schema == nil {
		return fmt.Errorf("schema is required")
	}
	st.Result = graphql.Execute(graphql.ExecuteParams{
		Schema:        *st.Schema,
		Root:          st.Root,
		AST:           st.Document,
		OperationName: st.OperationName,
		Args:          st.Variables,
		Context:       ctx,
	})
	return nil
}

type formatPhase struct{}

func (formatPhase) Name() string { return phaseFormat }

func (formatPhase) Run(_ context.Context, st *State) error {
	if st.Result == nil {
		st.Result = &graphql.Result{Errors: st.Errors}
		return nil
	}
	if len(st.Errors) > 0 {
		st.Result.Errors = append(append([]gqlerrors.FormattedError{}, st.Errors...), st.Result.Errors...)
	}
	return nil
}
