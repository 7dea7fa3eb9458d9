// Package gqlrequest normalizes differently-shaped HTTP payloads into a
// uniform request representation consumed by the rest of the transport.
package gqlrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/graphql-go/graphql/gqlerrors"

	"gqlhttp/internal/codec"
)

// Envelope is the parsed whole-request shape.
type Envelope struct {
	// Queries is ordered: length 1 for non-batch input, length N for batch.
	Queries []*Query
	// Batch is true whenever the raw input was a JSON array, even a
	// one-element array.
	Batch bool
	// Uploads holds multipart file parts, nil for other content types.
	Uploads Uploads
}

// ParseOptions controls request parsing.
type ParseOptions struct {
	Codec codec.Codec
	// MaxBatchSize caps batch array length; 0 disables the limit.
	MaxBatchSize int
	// MaxUploadMemory bounds in-memory multipart buffering in bytes.
	MaxUploadMemory int64
}

const defaultMaxUploadMemory = 32 << 20

// ParseRequest extracts one or more uniform Query records from an HTTP
// request. Parsing has no side effects observable to the caller beyond
// consuming the request body.
func ParseRequest(r *http.Request, opts ParseOptions) (*Envelope, error) {
	if r == nil {
		return nil, NewInputError("request is nil")
	}
	if opts.Codec == nil {
		opts.Codec = codec.JSON{}
	}

	if r.Method == http.MethodGet {
		q, err := queryFromValues(r.URL.Query(), opts.Codec)
		if err != nil {
			return nil, err
		}
		return &Envelope{Queries: []*Query{q}}, nil
	}

	mediaType := contentMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/graphql":
		body, err := readBody(r)
		if err != nil {
			return nil, err
		}
		// The whole body is the document; variables and operationName come
		// from the URL query string when present.
		q, err := queryFromValues(r.URL.Query(), opts.Codec)
		if err != nil {
			return nil, err
		}
		q.RawDocument = string(body)
		return &Envelope{Queries: []*Query{q}}, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, NewInputError("could not parse form body: %v", err)
		}
		q, err := queryFromValues(r.PostForm, opts.Codec)
		if err != nil {
			return nil, err
		}
		return &Envelope{Queries: []*Query{q}}, nil

	case "multipart/form-data":
		return parseMultipart(r, opts)

	default:
		body, err := readBody(r)
		if err != nil {
			return nil, err
		}
		return parseJSONBody(body, opts)
	}
}

func contentMediaType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "" {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mediaType
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, NewInputError("could not read request body: %v", err)
	}
	return body, nil
}

func parseMultipart(r *http.Request, opts ParseOptions) (*Envelope, error) {
	maxMemory := opts.MaxUploadMemory
	if maxMemory <= 0 {
		maxMemory = defaultMaxUploadMemory
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, NewInputError("could not parse multipart body: %v", err)
	}
	form := r.MultipartForm
	if form == nil {
		return nil, NewInputError("multipart body is empty")
	}

	q, err := queryFromValues(url.Values(form.Value), opts.Codec)
	if err != nil {
		return nil, err
	}

	uploads := Uploads{}
	for name, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		header := headers[0]
		file, openErr := header.Open()
		if openErr != nil {
			uploads.Close()
			return nil, NewInputError("could not open upload %q: %v", name, openErr)
		}
		uploads[name] = &Upload{
			File:        file,
			Filename:    header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
		}
	}
	if len(uploads) == 0 {
		uploads = nil
	}

	return &Envelope{Queries: []*Query{q}, Uploads: uploads}, nil
}

func parseJSONBody(body []byte, opts ParseOptions) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		// Document resolution reports the missing document.
		return &Envelope{Queries: []*Query{newQuery()}}, nil
	}

	var value interface{}
	if err := opts.Codec.Decode(trimmed, &value); err != nil {
		return nil, inputErrorFromDecode(err)
	}

	switch v := value.(type) {
	case string:
		// A top-level JSON string can never be a valid payload object or
		// array; it means the payload was serialized twice.
		return nil, NewInputError("the GraphQL body was JSON-encoded twice")

	case []interface{}:
		if opts.MaxBatchSize > 0 && len(v) > opts.MaxBatchSize {
			return nil, NewInputError("batch of %d exceeds the maximum of %d queries", len(v), opts.MaxBatchSize)
		}
		queries := make([]*Query, 0, len(v))
		for _, entry := range v {
			queries = append(queries, batchEntryQuery(entry, opts.Codec))
		}
		return &Envelope{Queries: queries, Batch: true}, nil

	case map[string]interface{}:
		q, err := queryFromMap(v, false, opts.Codec)
		if err != nil {
			return nil, err
		}
		return &Envelope{Queries: []*Query{q}}, nil

	default:
		return nil, NewInputError("request body must be a JSON object or an array of objects")
	}
}

// batchEntryQuery never fails the batch: a malformed entry becomes a Query
// that document resolution rejects, so sibling entries still execute.
func batchEntryQuery(entry interface{}, c codec.Codec) *Query {
	obj, ok := entry.(map[string]interface{})
	if !ok {
		return newQuery()
	}
	q, err := queryFromMap(obj, true, c)
	if err != nil {
		q = newQuery()
		q.MarkRejected(gqlerrors.NewFormattedError(err.Error()))
		// Keep the correlation fields even when the entry is unusable.
		if id, idOK := obj["id"].(string); idOK {
			q.CorrelationID = id
			q.HasCorrelationID = true
		}
	}
	return q
}

func queryFromMap(obj map[string]interface{}, batch bool, c codec.Codec) (*Query, error) {
	q := newQuery()
	for key, value := range obj {
		switch key {
		case "query":
			if s, ok := value.(string); ok {
				q.RawDocument = s
			}
		case "variables":
			vars, err := normalizeVariables(value, c)
			if err != nil {
				return nil, err
			}
			q.Variables = vars
		case "operationName":
			// An empty name means "use the default/only operation".
			if s, ok := value.(string); ok && s != "" {
				q.OperationName = s
			}
		case "documentId":
			if s, ok := value.(string); ok {
				q.DocumentID = s
			}
		case "extensions":
			if q.DocumentID == "" {
				q.DocumentID = persistedDocumentID(value)
			}
		case "id":
			if batch {
				if s, ok := value.(string); ok {
					q.CorrelationID = s
					q.HasCorrelationID = true
					continue
				}
			}
			q.Extra[key] = value
		default:
			if batch {
				q.Extra[key] = value
			}
		}
	}
	return q, nil
}

func queryFromValues(values url.Values, c codec.Codec) (*Query, error) {
	q := newQuery()
	q.RawDocument = values.Get("query")
	if name := values.Get("operationName"); name != "" {
		q.OperationName = name
	}
	q.DocumentID = values.Get("documentId")
	vars, err := normalizeVariables(values.Get("variables"), c)
	if err != nil {
		return nil, err
	}
	q.Variables = vars
	return q, nil
}

// normalizeVariables accepts the shapes variables arrives in: absent, an
// object, or a JSON string. "", "null" and absent all normalize to an empty
// mapping.
func normalizeVariables(value interface{}, c codec.Codec) (map[string]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || trimmed == "null" {
			return map[string]interface{}{}, nil
		}
		var decoded interface{}
		if err := c.Decode([]byte(trimmed), &decoded); err != nil {
			return nil, NewInputError("variables could not be decoded")
		}
		switch d := decoded.(type) {
		case nil:
			return map[string]interface{}{}, nil
		case map[string]interface{}:
			return d, nil
		default:
			return nil, NewInputError("variables could not be decoded")
		}
	default:
		return nil, NewInputError("variables could not be decoded")
	}
}

func persistedDocumentID(value interface{}) string {
	extensions, ok := value.(map[string]interface{})
	if !ok {
		return ""
	}
	persisted, ok := extensions["persistedQuery"].(map[string]interface{})
	if !ok {
		return ""
	}
	hash, _ := persisted["sha256Hash"].(string)
	return hash
}

func inputErrorFromDecode(err error) *InputError {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return NewInputError("could not decode JSON body: %v (at offset %d)", err, syntaxErr.Offset)
	}
	return NewInputError("could not decode JSON body: %v", err)
}
