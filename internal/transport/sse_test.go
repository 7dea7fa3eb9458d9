package transport

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gqlhttp/internal/itemstore"
	"gqlhttp/internal/pubsub"
)

// streamRecorder is a concurrency-safe ResponseWriter for handlers that keep
// writing from their own goroutine.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	status int
	body   bytes.Buffer
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: http.Header{}}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) WriteHeader(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *streamRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(b)
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) snapshot() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.body.String()
}

func TestSubscriptionOverSSE(t *testing.T) {
	broker := pubsub.New(4)
	store := itemstore.NewStore(broker)
	schema, err := itemstore.Schema(store)
	if err != nil {
		t.Fatalf("failed to build schema: %v", err)
	}
	h := New(Options{Schema: &schema})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query":"subscription { itemAdded { name } }"}`))
	r.Header.Set("Content-Type", "application/json")
	r = r.WithContext(ctx)

	rec := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, r)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for broker.SubscriberCount(itemstore.TopicItemAdded) == 0 {
		select {
		case <-deadline:
			t.Fatalf("subscription never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	store.Add(itemstore.Item{Name: "streamed"})

	deadline = time.After(2 * time.Second)
	for {
		status, body := rec.snapshot()
		if strings.Contains(body, `"streamed"`) {
			if status != http.StatusOK {
				t.Fatalf("expected 200, got %d", status)
			}
			if !strings.Contains(body, "data: ") {
				t.Fatalf("expected an SSE data frame, got %q", body)
			}
			if rec.Header().Get("Content-Type") != "text/event-stream" {
				t.Fatalf("unexpected content type: %q", rec.Header().Get("Content-Type"))
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("event frame never written; body so far: %q", body)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler did not return after client disconnect")
	}
}

func TestSubscriptionSpecCompliantFrames(t *testing.T) {
	broker := pubsub.New(4)
	store := itemstore.NewStore(broker)
	schema, err := itemstore.Schema(store)
	if err != nil {
		t.Fatalf("failed to build schema: %v", err)
	}
	h := New(Options{Schema: &schema, SSESpecCompliant: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query":"subscription { itemAdded { name } }"}`))
	r.Header.Set("Content-Type", "application/json")
	r = r.WithContext(ctx)

	rec := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, r)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for broker.SubscriberCount(itemstore.TopicItemAdded) == 0 {
		select {
		case <-deadline:
			t.Fatalf("subscription never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	store.Add(itemstore.Item{Name: "tagged"})

	deadline = time.After(2 * time.Second)
	for {
		_, body := rec.snapshot()
		if strings.Contains(body, `"tagged"`) {
			if !strings.Contains(body, "event: next\n") {
				t.Fatalf("spec-compliant mode must tag frames with event: next, got %q", body)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("event frame never written")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestSubscriptionHeartbeat(t *testing.T) {
	broker := pubsub.New(4)
	store := itemstore.NewStore(broker)
	schema, err := itemstore.Schema(store)
	if err != nil {
		t.Fatalf("failed to build schema: %v", err)
	}
	h := New(Options{Schema: &schema, HeartbeatInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query":"subscription { itemAdded { name } }"}`))
	r.Header.Set("Content-Type", "application/json")
	r = r.WithContext(ctx)

	rec := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, r)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		_, body := rec.snapshot()
		if strings.Contains(body, ": ping\n\n") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("heartbeat never written; body so far: %q", body)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
