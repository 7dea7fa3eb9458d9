package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"

	"gqlhttp/internal/gqlrequest"
	"gqlhttp/internal/pipeline"
	"gqlhttp/internal/runner"
)

func decodeObject(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("body is not a JSON object: %v\n%s", err, body)
	}
	return out
}

func decodeArray(t *testing.T, body []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("body is not a JSON array: %v\n%s", err, body)
	}
	return out
}

func okResult(data map[string]interface{}) *runner.QueryResult {
	return &runner.QueryResult{Result: &graphql.Result{Data: data}}
}

func errResult(message string, preResolution bool) *runner.QueryResult {
	return &runner.QueryResult{
		Result: &graphql.Result{
			Errors: []gqlerrors.FormattedError{gqlerrors.NewFormattedError(message)},
		},
		PreResolution: preResolution,
	}
}

func TestInput_Status400(t *testing.T) {
	res := Options{}.Input("could not decode JSON body")
	if res.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Status)
	}
	body := decodeObject(t, res.Body)
	errs := body["errors"].([]interface{})
	if errs[0].(map[string]interface{})["message"] != "could not decode JSON body" {
		t.Fatalf("unexpected body: %s", res.Body)
	}
}

func TestInternal_Status500(t *testing.T) {
	res := Options{}.Internal("internal error")
	if res.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Status)
	}
}

func TestMethod_PlainText(t *testing.T) {
	res := Options{}.Method(&pipeline.MethodError{OperationType: "mutation", Method: http.MethodGet})
	if res.Status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Status)
	}
	if res.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type: %q", res.ContentType)
	}
	if string(res.Body) != "Can only perform a mutation from a POST request" {
		t.Fatalf("unexpected body: %q", res.Body)
	}
}

func TestMethod_JSONMode(t *testing.T) {
	opts := Options{MethodErrorsAsJSON: true}
	res := opts.Method(&pipeline.MethodError{OperationType: "subscription", Method: http.MethodGet})
	if res.Status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Status)
	}
	body := decodeObject(t, res.Body)
	if _, ok := body["errors"]; !ok {
		t.Fatalf("JSON mode should shape the 405 body as errors: %s", res.Body)
	}
}

func TestSingle_Success200(t *testing.T) {
	res := Options{}.Single(okResult(map[string]interface{}{"greeting": "hello"}))
	if res.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Status)
	}
	body := decodeObject(t, res.Body)
	data := body["data"].(map[string]interface{})
	if data["greeting"] != "hello" {
		t.Fatalf("unexpected body: %s", res.Body)
	}
	if _, ok := body["errors"]; ok {
		t.Fatalf("no errors key expected on success")
	}
}

func TestSingle_ExecutionErrorsStay200(t *testing.T) {
	res := Options{}.Single(errResult("field failed", false))
	if res.Status != http.StatusOK {
		t.Fatalf("resolution-time errors stay 200, got %d", res.Status)
	}
}

func TestSingle_PreResolutionErrorsStay200ByDefault(t *testing.T) {
	res := Options{}.Single(errResult("syntax error", true))
	if res.Status != http.StatusOK {
		t.Fatalf("expected 200 without the legacy toggle, got %d", res.Status)
	}
}

func TestSingle_LegacyErrorStatus400(t *testing.T) {
	opts := Options{LegacyErrorStatus: true}
	res := opts.Single(errResult("syntax error", true))
	if res.Status != http.StatusBadRequest {
		t.Fatalf("expected legacy 400, got %d", res.Status)
	}

	// Errors produced during resolution still return 200 under the toggle.
	res = opts.Single(errResult("field failed", false))
	if res.Status != http.StatusOK {
		t.Fatalf("resolution errors are not legacy-eligible, got %d", res.Status)
	}
}

func TestBatch_NestedPayloadAndCorrelation(t *testing.T) {
	opts := Options{PayloadKey: "payload"}
	entries := []BatchEntry{
		{
			Query:  &gqlrequest.Query{CorrelationID: "a", HasCorrelationID: true, Extra: map[string]interface{}{"client": "web"}},
			Result: okResult(map[string]interface{}{"one": 1}),
		},
		{
			Query:  &gqlrequest.Query{CorrelationID: "b", HasCorrelationID: true},
			Result: errResult("bad entry", true),
		},
	}

	res := opts.Batch(entries)
	if res.Status != http.StatusOK {
		t.Fatalf("batch responses are always 200, got %d", res.Status)
	}

	out := decodeArray(t, res.Body)
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0]["id"] != "a" || out[1]["id"] != "b" {
		t.Fatalf("correlation ids must be echoed in order: %s", res.Body)
	}
	if out[0]["client"] != "web" {
		t.Fatalf("extra correlation fields must be echoed: %s", res.Body)
	}
	payload := out[0]["payload"].(map[string]interface{})
	if payload["data"].(map[string]interface{})["one"] != float64(1) {
		t.Fatalf("unexpected payload: %s", res.Body)
	}
	if _, ok := out[1]["payload"].(map[string]interface{})["errors"]; !ok {
		t.Fatalf("failing entry should carry its errors in its own slot: %s", res.Body)
	}
}

func TestBatch_FlatResults(t *testing.T) {
	opts := Options{}
	entries := []BatchEntry{
		{
			Query:  &gqlrequest.Query{CorrelationID: "a", HasCorrelationID: true},
			Result: okResult(map[string]interface{}{"one": 1}),
		},
	}

	out := decodeArray(t, opts.Batch(entries).Body)
	if _, ok := out[0]["payload"]; ok {
		t.Fatalf("flat mode must not nest under a payload key")
	}
	if out[0]["data"].(map[string]interface{})["one"] != float64(1) {
		t.Fatalf("flat mode merges the result into the entry: %v", out[0])
	}
	if out[0]["id"] != "a" {
		t.Fatalf("correlation id still echoed in flat mode: %v", out[0])
	}
}

func TestBatch_EntryWithoutCorrelationID(t *testing.T) {
	opts := Options{PayloadKey: "payload"}
	entries := []BatchEntry{
		{Query: &gqlrequest.Query{}, Result: okResult(map[string]interface{}{"one": 1})},
	}

	out := decodeArray(t, opts.Batch(entries).Body)
	if _, ok := out[0]["id"]; ok {
		t.Fatalf("entries without a caller id must not invent one: %v", out[0])
	}
}

func TestBody_Shapes(t *testing.T) {
	if body := Body(nil); body["data"] != nil {
		t.Fatalf("nil result shapes to null data: %v", body)
	}

	body := Body(&graphql.Result{})
	if _, ok := body["data"]; !ok {
		t.Fatalf("empty result still carries a data key: %v", body)
	}

	body = Body(&graphql.Result{
		Data:   map[string]interface{}{"x": 1},
		Errors: []gqlerrors.FormattedError{gqlerrors.NewFormattedError("partial")},
	})
	if _, ok := body["data"]; !ok {
		t.Fatalf("partial results keep their data: %v", body)
	}
	if _, ok := body["errors"]; !ok {
		t.Fatalf("partial results keep their errors: %v", body)
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, Response{Status: http.StatusTeapot, ContentType: "application/json", Body: []byte(`{}`)})

	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type: %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "{}" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}
