package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"

	"gqlhttp/internal/codec"
	"gqlhttp/internal/document"
	"gqlhttp/internal/gqlrequest"
	"gqlhttp/internal/logging"
	"gqlhttp/internal/observability"
	"gqlhttp/internal/response"
)

// Options is the immutable per-handler configuration, built once at setup
// time. Per-mount variations go through WithOverrides, which returns a copy.
type Options struct {
	// Schema is the engine handle; required.
	Schema *graphql.Schema

	// Codec is the serialization strategy; JSON when nil.
	Codec codec.Codec

	// Providers is the ordered document-provider chain. Nil selects the
	// default ad hoc text provider; an explicit empty slice is a
	// configuration error.
	Providers []document.Provider

	// NoDocumentMessage overrides the rejection message when no provider
	// claims a query.
	NoDocumentMessage string

	// PayloadKey nests each batch entry's result; FlatBatchResults omits the
	// nesting entirely for clients that expect the legacy flat shape.
	PayloadKey       string
	FlatBatchResults bool

	// LegacyErrorStatus returns 400 instead of 200 for single-mode results
	// whose errors predate field resolution.
	LegacyErrorStatus bool

	// MethodErrorsAsJSON shapes 405 bodies as {"errors":[...]}.
	MethodErrorsAsJSON bool

	// ContentType overrides the response media type for non-JSON codecs.
	ContentType string

	// MaxBatchSize caps batch array length; 0 disables the limit.
	MaxBatchSize int

	// MaxUploadMemory bounds in-memory multipart buffering.
	MaxUploadMemory int64

	// RootValue seeds the engine's root object for every execution.
	RootValue map[string]interface{}

	// ContextFn merges per-request values into the execution context.
	ContextFn func(ctx context.Context, r *http.Request) context.Context

	// HeartbeatInterval is the idle keep-alive period for subscription
	// streams; 30 seconds when zero.
	HeartbeatInterval time.Duration

	// SSESpecCompliant prefixes subscription frames with "event: next" per
	// the GraphQL-over-SSE convention instead of raw data frames.
	SSESpecCompliant bool

	Logger  *logging.Logger
	Metrics *observability.TransportMetrics
}

const (
	defaultPayloadKey        = "payload"
	defaultHeartbeatInterval = 30 * time.Second
)

// Overrides are the per-mount settings that may diverge from the shared
// options. Nil pointers leave the base value untouched.
type Overrides struct {
	PayloadKey         *string
	FlatBatchResults   *bool
	LegacyErrorStatus  *bool
	MethodErrorsAsJSON *bool
	NoDocumentMessage  *string
	RootValue          map[string]interface{}
}

// WithOverrides returns a merged copy; the receiver is never mutated.
func (o Options) WithOverrides(ov Overrides) Options {
	out := o
	if ov.PayloadKey != nil {
		out.PayloadKey = *ov.PayloadKey
	}
	if ov.FlatBatchResults != nil {
		out.FlatBatchResults = *ov.FlatBatchResults
	}
	if ov.LegacyErrorStatus != nil {
		out.LegacyErrorStatus = *ov.LegacyErrorStatus
	}
	if ov.MethodErrorsAsJSON != nil {
		out.MethodErrorsAsJSON = *ov.MethodErrorsAsJSON
	}
	if ov.NoDocumentMessage != nil {
		out.NoDocumentMessage = *ov.NoDocumentMessage
	}
	if len(ov.RootValue) > 0 {
		merged := make(map[string]interface{}, len(o.RootValue)+len(ov.RootValue))
		for k, v := range o.RootValue {
			merged[k] = v
		}
		for k, v := range ov.RootValue {
			merged[k] = v
		}
		out.RootValue = merged
	}
	return out
}

func (o Options) parseOptions() gqlrequest.ParseOptions {
	return gqlrequest.ParseOptions{
		Codec:           o.Codec,
		MaxBatchSize:    o.MaxBatchSize,
		MaxUploadMemory: o.MaxUploadMemory,
	}
}

func (o Options) responseOptions() response.Options {
	payloadKey := o.PayloadKey
	if payloadKey == "" && !o.FlatBatchResults {
		payloadKey = defaultPayloadKey
	}
	if o.FlatBatchResults {
		payloadKey = ""
	}
	return response.Options{
		Codec:              o.Codec,
		ContentType:        o.ContentType,
		PayloadKey:         payloadKey,
		LegacyErrorStatus:  o.LegacyErrorStatus,
		MethodErrorsAsJSON: o.MethodErrorsAsJSON,
	}
}

func (o Options) codec() codec.Codec {
	if o.Codec != nil {
		return o.Codec
	}
	return codec.JSON{}
}

func (o Options) heartbeatTicker() *time.Ticker {
	interval := o.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return time.NewTicker(interval)
}
