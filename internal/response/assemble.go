// Package response maps execution outcomes onto HTTP responses: status code
// selection, batch reassembly with correlation fields, and serialization
// through the configured codec.
package response

import (
	"net/http"

	"github.com/graphql-go/graphql"

	"gqlhttp/internal/codec"
	"gqlhttp/internal/gqlrequest"
	"gqlhttp/internal/pipeline"
	"gqlhttp/internal/runner"
)

// Options holds the immutable response-shaping configuration.
type Options struct {
	Codec codec.Codec
	// ContentType overrides the default application/json pairing when a
	// different codec is plugged in.
	ContentType string
	// PayloadKey nests each batch entry's execution result under this key;
	// empty merges the result flat into the entry for clients that expect
	// the legacy shape.
	PayloadKey string
	// LegacyErrorStatus restores the historical 400 for single-mode results
	// whose errors were produced before field resolution. Current
	// GraphQL-over-HTTP convention is 200; this is a deliberate policy
	// toggle, not the default.
	LegacyErrorStatus bool
	// MethodErrorsAsJSON shapes 405 bodies as {"errors":[...]} instead of
	// plain text.
	MethodErrorsAsJSON bool
}

func (o Options) codec() codec.Codec {
	if o.Codec == nil {
		return codec.JSON{}
	}
	return o.Codec
}

func (o Options) contentType() string {
	if o.ContentType == "" {
		return codec.ContentType
	}
	return o.ContentType
}

// BatchEntry pairs an input query with its result for reassembly.
type BatchEntry struct {
	Query  *gqlrequest.Query
	Result *runner.QueryResult
}

const serializationFallback = `{"errors":[{"message":"response serialization failed"}]}`

// Response is one assembled HTTP response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Input assembles a 400 response for a malformed request.
func (o Options) Input(message string) Response {
	return o.errorResponse(http.StatusBadRequest, message)
}

// Internal assembles a 500 response with a generic message; internal detail
// never reaches the client.
func (o Options) Internal(message string) Response {
	return o.errorResponse(http.StatusInternalServerError, message)
}

// Method assembles a 405 response naming the rejected operation type.
func (o Options) Method(err *pipeline.MethodError) Response {
	if o.MethodErrorsAsJSON {
		return o.errorResponse(http.StatusMethodNotAllowed, err.Error())
	}
	return Response{
		Status:      http.StatusMethodNotAllowed,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(err.Error()),
	}
}

// Single assembles a non-batch execution result. GraphQL-level errors stay
// inside a 200 body unless the legacy toggle applies.
func (o Options) Single(res *runner.QueryResult) Response {
	status := http.StatusOK
	if o.LegacyErrorStatus && res.PreResolution && res.Result != nil && len(res.Result.Errors) > 0 {
		status = http.StatusBadRequest
	}
	body, err := o.codec().Encode(resultBody(res))
	if err != nil {
		return fallbackResponse()
	}
	return Response{Status: status, ContentType: o.contentType(), Body: body}
}

// Batch assembles a batch response: a JSON array with one entry per input
// query in original order, each entry carrying its correlation fields merged
// with the nested (or flat) payload.
func (o Options) Batch(entries []BatchEntry) Response {
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		entry := map[string]interface{}{}
		for key, value := range e.Query.Extra {
			entry[key] = value
		}
		if e.Query.HasCorrelationID {
			entry["id"] = e.Query.CorrelationID
		}
		payload := resultBody(e.Result)
		if o.PayloadKey != "" {
			entry[o.PayloadKey] = payload
		} else {
			for key, value := range payload {
				entry[key] = value
			}
		}
		out = append(out, entry)
	}
	body, err := o.codec().Encode(out)
	if err != nil {
		return fallbackResponse()
	}
	return Response{Status: http.StatusOK, ContentType: o.contentType(), Body: body}
}

func resultBody(res *runner.QueryResult) map[string]interface{} {
	if res == nil {
		return Body(nil)
	}
	return Body(res.Result)
}

// Body shapes one execution result: data when present, errors when present,
// and never both keys absent.
func Body(result *graphql.Result) map[string]interface{} {
	body := map[string]interface{}{}
	if result == nil {
		body["data"] = nil
		return body
	}
	if len(result.Errors) > 0 {
		body["errors"] = result.Errors
	}
	if result.Data != nil {
		body["data"] = result.Data
	}
	if len(body) == 0 {
		body["data"] = nil
	}
	return body
}

func fallbackResponse() Response {
	return Response{
		Status:      http.StatusInternalServerError,
		ContentType: codec.ContentType,
		Body:        []byte(serializationFallback),
	}
}

// errorResponse shapes the {"errors":[{"message":...}]} body used for
// input, method (JSON mode), and internal failures.
func (o Options) errorResponse(status int, message string) Response {
	body, err := o.codec().Encode(map[string]interface{}{
		"errors": []map[string]interface{}{{"message": message}},
	})
	if err != nil {
		return fallbackResponse()
	}
	return Response{Status: status, ContentType: o.contentType(), Body: body}
}

// Write emits an assembled response.
func Write(w http.ResponseWriter, res Response) {
	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}
