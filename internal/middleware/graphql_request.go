package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// requestSummary is a cheap pre-execution sketch of a GraphQL request, used
// for metrics and tracing attributes. It is built from a non-destructive peek
// at the body; the transport handler does the authoritative parse.
type requestSummary struct {
	operationType  string
	batch          bool
	queryCount     int
	fieldCount     int
	selectionDepth int
	variableCount  int
}

type peekedQuery struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`
}

// peekRequest extracts the first query from the request without consuming
// the body. Multipart bodies are skipped; rewinding a form stream costs more
// than the attributes are worth.
func peekRequest(r *http.Request) (string, string, bool) {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("query"), r.URL.Query().Get("operationName"), false
	}
	if r.Method != http.MethodPost {
		return "", "", false
	}

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/form-data") {
		return "", "", false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if strings.Contains(contentType, "application/graphql") {
		return string(body), "", false
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []peekedQuery
		if err := json.Unmarshal(trimmed, &entries); err != nil || len(entries) == 0 {
			return "", "", true
		}
		return entries[0].Query, entries[0].OperationName, true
	}

	var payload peekedQuery
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return "", "", false
	}
	return payload.Query, payload.OperationName, false
}

func summarizeRequest(r *http.Request) *requestSummary {
	query, operationName, batch := peekRequest(r)
	if query == "" {
		if batch {
			return &requestSummary{operationType: "batch", batch: true}
		}
		return nil
	}

	summary := &requestSummary{batch: batch, queryCount: 1}
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "graphql peek",
		}),
	})
	if err != nil {
		return summary
	}

	fragments := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok {
			fragments[frag.Name.Value] = frag
		}
	}

	var targetOp *ast.OperationDefinition
	var first *ast.OperationDefinition
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if first == nil {
			first = op
		}
		if operationName != "" && op.Name != nil && op.Name.Value == operationName {
			targetOp = op
			break
		}
	}
	if targetOp == nil && operationName == "" {
		targetOp = first
	}
	if targetOp == nil {
		return summary
	}

	summary.operationType = string(targetOp.Operation)
	summary.variableCount = len(targetOp.VariableDefinitions)
	if targetOp.SelectionSet != nil {
		fields, depth := countFieldsAndDepth(targetOp.SelectionSet, fragments, 1, map[string]bool{}, map[string]bool{})
		summary.fieldCount = fields
		summary.selectionDepth = depth
	}
	return summary
}

func countFieldsAndDepth(selectionSet *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, currentDepth int, visited, inFlight map[string]bool) (fields, maxDepth int) {
	if selectionSet == nil {
		return 0, currentDepth - 1
	}

	maxDepth = currentDepth

	for _, selection := range selectionSet.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				nestedFields, nestedDepth := countFieldsAndDepth(sel.SelectionSet, fragments, currentDepth+1, visited, inFlight)
				fields += nestedFields
				if nestedDepth > maxDepth {
					maxDepth = nestedDepth
				}
			}

		case *ast.InlineFragment:
			if sel.SelectionSet != nil {
				nestedFields, nestedDepth := countFieldsAndDepth(sel.SelectionSet, fragments, currentDepth, visited, inFlight)
				fields += nestedFields
				if nestedDepth > maxDepth {
					maxDepth = nestedDepth
				}
			}

		case *ast.FragmentSpread:
			fragName := sel.Name.Value
			// Guard against cyclic fragment spreads and double-counting across the traversal.
			if inFlight[fragName] || visited[fragName] {
				continue
			}
			inFlight[fragName] = true
			visited[fragName] = true
			if frag, ok := fragments[fragName]; ok && frag.SelectionSet != nil {
				nestedFields, nestedDepth := countFieldsAndDepth(frag.SelectionSet, fragments, currentDepth, visited, inFlight)
				fields += nestedFields
				if nestedDepth > maxDepth {
					maxDepth = nestedDepth
				}
			}
			delete(inFlight, fragName)
		}
	}

	return fields, maxDepth
}
