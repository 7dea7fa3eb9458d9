package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql/language/ast"
)

// MethodError reports an operation type forbidden for the HTTP verb used.
// It maps to HTTP 405.
type MethodError struct {
	OperationType string
	Method        string
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("Can only perform a %s from a POST request", e.OperationType)
}

// CheckMethod enforces the HTTP-method restriction: mutations and
// subscriptions require POST, queries are allowed on any method. Pure
// function, no side effects.
func CheckMethod(operationType, httpMethod string) error {
	switch operationType {
	case ast.OperationTypeMutation, ast.OperationTypeSubscription:
		if httpMethod != http.MethodPost {
			return &MethodError{OperationType: operationType, Method: httpMethod}
		}
	}
	return nil
}

// methodPolicyPhase runs CheckMethod against the selected operation. It is
// spliced in immediately after operation selection.
type methodPolicyPhase struct{}

func (methodPolicyPhase) Name() string { return phaseMethodPolicy }

func (methodPolicyPhase) Run(_ context.Context, st *State) error {
	if st.Operation == nil || st.HTTPMethod == "" {
		return nil
	}
	return CheckMethod(st.Operation.Operation, st.HTTPMethod)
}
