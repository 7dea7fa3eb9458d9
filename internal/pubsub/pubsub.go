// Package pubsub is the in-process topic broker backing subscription
// delivery. Registrations are internally synchronized; delivery to a slow
// subscriber drops rather than blocks the publisher.
package pubsub

import (
	"context"
	"sync"
)

// Subscription is one registration on a topic.
type Subscription struct {
	id     uint64
	topic  string
	ch     chan interface{}
	broker *Broker
	once   sync.Once
}

// C is the event channel; it closes when the subscription is cancelled.
func (s *Subscription) C() <-chan interface{} { return s.ch }

// Cancel removes the registration and closes the channel. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s.topic, s.id)
		close(s.ch)
	})
}

// Broker fans published events out to topic subscribers.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*Subscription
	nextID uint64
	buffer int
}

// New builds a broker whose subscriber channels buffer up to buffer events.
func New(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{
		topics: map[string]map[uint64]*Subscription{},
		buffer: buffer,
	}
}

// Subscribe registers on a topic.
func (b *Broker) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		topic:  topic,
		ch:     make(chan interface{}, b.buffer),
		broker: b,
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = map[uint64]*Subscription{}
		b.topics[topic] = subs
	}
	subs[sub.id] = sub
	return sub
}

// SubscribeContext registers on a topic and cancels the registration when
// ctx is done, so handler exits never leak registrations.
func (b *Broker) SubscribeContext(ctx context.Context, topic string) *Subscription {
	sub := b.Subscribe(topic)
	go func() {
		<-ctx.Done()
		sub.Cancel()
	}()
	return sub
}

// Publish delivers data to every current subscriber of topic. Subscribers
// with full buffers miss the event.
func (b *Broker) Publish(topic string, data interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- data:
		default:
		}
	}
}

// Unsubscribe cancels a subscription.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub != nil {
		sub.Cancel()
	}
}

func (b *Broker) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// SubscriberCount reports current registrations on a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
