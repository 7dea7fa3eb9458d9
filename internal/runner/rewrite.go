package runner

import "github.com/graphql-go/graphql/language/ast"

// namespacer renames variables and fragments with a per-query unique token
// so merged sibling queries cannot collide. All references are rewritten
// consistently within the owning query's subtree only.
type namespacer struct {
	prefix string
}

func (n namespacer) variableName(name string) string { return n.prefix + "_" + name }
func (n namespacer) fragmentName(name string) string { return n.prefix + "_" + name }

func (n namespacer) rewriteOperation(op *ast.OperationDefinition) {
	if op == nil {
		return
	}
	for _, def := range op.VariableDefinitions {
		if def != nil && def.Variable != nil && def.Variable.Name != nil {
			def.Variable.Name.Value = n.variableName(def.Variable.Name.Value)
		}
	}
	n.rewriteDirectives(op.Directives)
	n.rewriteSelectionSet(op.SelectionSet)
}

func (n namespacer) rewriteFragmentDefinition(fragment *ast.FragmentDefinition) {
	if fragment == nil {
		return
	}
	if fragment.Name != nil {
		fragment.Name.Value = n.fragmentName(fragment.Name.Value)
	}
	n.rewriteDirectives(fragment.Directives)
	n.rewriteSelectionSet(fragment.SelectionSet)
}

func (n namespacer) rewriteSelectionSet(set *ast.SelectionSet) {
	if set == nil {
		return
	}
	for _, sel := range set.Selections {
		switch s := sel.(type) {
		case *ast.Field:
			n.rewriteArguments(s.Arguments)
			n.rewriteDirectives(s.Directives)
			n.rewriteSelectionSet(s.SelectionSet)
		case *ast.InlineFragment:
			n.rewriteDirectives(s.Directives)
			n.rewriteSelectionSet(s.SelectionSet)
		case *ast.FragmentSpread:
			if s.Name != nil {
				s.Name.Value = n.fragmentName(s.Name.Value)
			}
			n.rewriteDirectives(s.Directives)
		}
	}
}

func (n namespacer) rewriteArguments(args []*ast.Argument) {
	for _, arg := range args {
		if arg != nil {
			n.rewriteValue(arg.Value)
		}
	}
}

func (n namespacer) rewriteDirectives(directives []*ast.Directive) {
	for _, directive := range directives {
		if directive != nil {
			n.rewriteArguments(directive.Arguments)
		}
	}
}

func (n namespacer) rewriteValue(value ast.Value) {
	switch v := value.(type) {
	case *ast.Variable:
		if v.Name != nil {
			v.Name.Value = n.variableName(v.Name.Value)
		}
	case *ast.ListValue:
		for _, item := range v.Values {
			n.rewriteValue(item)
		}
	case *ast.ObjectValue:
		for _, field := range v.Fields {
			if field != nil {
				n.rewriteValue(field.Value)
			}
		}
	}
}
