// Package codec provides the pluggable serialization strategy used at every
// transport boundary. Handlers depend on the Codec interface only; the JSON
// implementation is the default.
package codec

import "encoding/json"

// Codec encodes and decodes payload bodies.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// JSON is the default codec backed by encoding/json.
type JSON struct {
	// Pretty enables indented output, useful for development setups.
	Pretty bool
}

// Encode serializes v.
func (c JSON) Encode(v interface{}) ([]byte, error) {
	if c.Pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// Decode deserializes data into v.
func (c JSON) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// ContentType is the media type emitted alongside JSON-encoded responses.
const ContentType = "application/json"
