// Package itemstore is the demo domain served by the gateway: an in-memory
// item collection exposed through a schema with query, mutation,
// subscription, and upload-import operations.
package itemstore

import (
	"sync"

	"github.com/google/uuid"

	"gqlhttp/internal/pubsub"
)

// TopicItemAdded carries newly added items to subscribers.
const TopicItemAdded = "item:added"

// Item is one stored record.
type Item struct {
	ID   string
	Name string
}

// Store is a concurrency-safe in-memory item collection that publishes
// additions to the broker.
type Store struct {
	mu     sync.RWMutex
	items  map[string]Item
	order  []string
	broker *pubsub.Broker
}

// NewStore builds an empty store. The broker may be nil when subscriptions
// are not served.
func NewStore(broker *pubsub.Broker) *Store {
	return &Store{
		items:  map[string]Item{},
		broker: broker,
	}
}

// Seed inserts items without publishing, for startup fixtures and tests.
func (s *Store) Seed(items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if _, exists := s.items[item.ID]; !exists {
			s.order = append(s.order, item.ID)
		}
		s.items[item.ID] = item
	}
}

// Get looks an item up by id.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// List returns all items in insertion order.
func (s *Store) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Add stores an item, assigning an id when absent, and publishes it.
func (s *Store) Add(item Item) Item {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	s.mu.Lock()
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
	s.mu.Unlock()

	if s.broker != nil {
		s.broker.Publish(TopicItemAdded, item)
	}
	return item
}
