package transport

import (
	"context"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/printer"

	"gqlhttp/internal/pipeline"
	"gqlhttp/internal/response"
)

// serveSubscription streams subscription results as server-sent events. The
// stream stays open until the client disconnects or the engine closes the
// result channel; either way the subscription is torn down before returning.
func (h *Handler) serveSubscription(w http.ResponseWriter, r *http.Request, st *pipeline.State) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Write(w, h.opts.responseOptions().Internal("streaming unsupported"))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	results := graphql.Subscribe(graphql.Params{
		Schema:         *h.opts.Schema,
		RequestString:  documentText(st),
		VariableValues: st.Variables,
		OperationName:  st.OperationName,
		Context:        ctx,
		RootObject:     h.opts.RootValue,
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.opts.Metrics != nil {
		h.opts.Metrics.SubscriptionStarted(ctx)
		defer h.opts.Metrics.SubscriptionEnded(ctx)
	}

	codec := h.opts.codec()
	heartbeat := h.opts.heartbeatTicker()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case res, open := <-results:
			if !open {
				if h.opts.SSESpecCompliant {
					_, _ = w.Write([]byte("event: complete\ndata: \n\n"))
					flusher.Flush()
				}
				return
			}
			body, err := codec.Encode(response.Body(res))
			if err != nil {
				h.logError(r, "subscription result serialization failed", err)
				return
			}
			frame := make([]byte, 0, len(body)+32)
			if h.opts.SSESpecCompliant {
				frame = append(frame, "event: next\n"...)
			}
			frame = append(frame, "data: "...)
			frame = append(frame, body...)
			frame = append(frame, "\n\n"...)
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// documentText recovers the source text executed by the subscription. Queries
// resolved from persisted documents have no raw text, so those print the
// parsed document back to source form.
func documentText(st *pipeline.State) string {
	if st.RawDocument != "" {
		return st.RawDocument
	}
	if st.Document == nil {
		return ""
	}
	text, _ := printer.Print(st.Document).(string)
	return text
}
