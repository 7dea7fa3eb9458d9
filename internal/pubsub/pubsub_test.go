package pubsub

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("items")
	defer sub.Cancel()

	b.Publish("items", "hello")

	select {
	case got := <-sub.C():
		if got != "hello" {
			t.Fatalf("unexpected event: %v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("event never delivered")
	}
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("items")
	defer sub.Cancel()

	b.Publish("users", "noise")

	select {
	case got := <-sub.C():
		t.Fatalf("unexpected cross-topic delivery: %v", got)
	default:
	}
}

func TestCancelClosesChannelAndDeregisters(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("items")

	if b.SubscriberCount("items") != 1 {
		t.Fatalf("expected 1 subscriber")
	}

	sub.Cancel()
	sub.Cancel() // idempotent

	if b.SubscriberCount("items") != 0 {
		t.Fatalf("expected deregistration after cancel")
	}
	if _, open := <-sub.C(); open {
		t.Fatalf("channel should be closed after cancel")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New(1)
	sub := b.Subscribe("items")
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		b.Publish("items", 1)
		b.Publish("items", 2) // buffer full, must not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}

	if got := <-sub.C(); got != 1 {
		t.Fatalf("expected the first event to survive, got %v", got)
	}
	select {
	case got := <-sub.C():
		t.Fatalf("second event should have been dropped, got %v", got)
	default:
	}
}

func TestSubscribeContext_CancelsOnDone(t *testing.T) {
	b := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.SubscribeContext(ctx, "items")

	cancel()

	deadline := time.After(time.Second)
	for b.SubscriberCount("items") != 0 {
		select {
		case <-deadline:
			t.Fatalf("context cancellation never removed the subscription")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if _, open := <-sub.C(); open {
		t.Fatalf("channel should be closed after context cancellation")
	}
}

func TestFanOut(t *testing.T) {
	b := New(4)
	first := b.Subscribe("items")
	second := b.Subscribe("items")
	defer first.Cancel()
	defer second.Cancel()

	b.Publish("items", "event")

	for i, sub := range []*Subscription{first, second} {
		select {
		case got := <-sub.C():
			if got != "event" {
				t.Fatalf("subscriber %d: unexpected event %v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}
