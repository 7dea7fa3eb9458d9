package runner

import (
	"regexp"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
)

// namespaceTag matches the per-query prefixes the merge step applies to
// variables, fragments (`_bq<i>_name`) and field aliases (`_bq<i>__key`).
var namespaceTag = regexp.MustCompile(`_bq[0-9]+__?`)

// splitResult fans a merged execution result back out into per-query results
// by consulting the merge side-table. Errors are routed to their originating
// query via the first path element; pathless errors could have come from any
// merged query, so every query receives them. Locations point into the
// synthetic document and are dropped.
func splitResult(merged *graphql.Result, sideTable map[string]fieldOrigin, count int) []*graphql.Result {
	results := make([]*graphql.Result, count)
	for i := range results {
		results[i] = &graphql.Result{}
	}

	mergedData, hasData := mergedDataMap(merged)
	if hasData {
		for i := range results {
			results[i].Data = map[string]interface{}{}
		}
		for tagged, value := range mergedData {
			origin, ok := sideTable[tagged]
			if !ok {
				continue
			}
			results[origin.position].Data.(map[string]interface{})[origin.key] = value
		}
	}

	if merged == nil {
		return results
	}
	for _, err := range merged.Errors {
		routed := false
		if len(err.Path) > 0 {
			if tagged, ok := err.Path[0].(string); ok {
				if origin, found := sideTable[tagged]; found {
					results[origin.position].Errors = append(results[origin.position].Errors, untagError(err, origin))
					routed = true
				}
			}
		}
		if !routed {
			for i := range results {
				results[i].Errors = append(results[i].Errors, untagError(err, fieldOrigin{key: ""}))
			}
		}
	}

	return results
}

func mergedDataMap(merged *graphql.Result) (map[string]interface{}, bool) {
	if merged == nil || merged.Data == nil {
		return nil, false
	}
	data, ok := merged.Data.(map[string]interface{})
	return data, ok
}

// untagError rewrites the error's leading path element back to the original
// response key, scrubs namespace prefixes from the message so synthetic
// names never reach the client, and strips synthetic-document locations.
func untagError(err gqlerrors.FormattedError, origin fieldOrigin) gqlerrors.FormattedError {
	out := err
	out.Message = namespaceTag.ReplaceAllString(err.Message, "")
	out.Locations = nil
	if len(err.Path) > 0 && origin.key != "" {
		path := make([]interface{}, len(err.Path))
		copy(path, err.Path)
		path[0] = origin.key
		out.Path = path
	}
	return out
}
