package document

import (
	"context"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"gqlhttp/internal/gqlrequest"
)

// Store looks up persisted document text by id.
type Store interface {
	Get(ctx context.Context, id string) (string, bool)
}

// PersistedProvider resolves queries that reference a persisted document by
// id instead of carrying source text.
type PersistedProvider struct {
	store Store
}

// NewPersistedProvider wraps a document store as a provider.
func NewPersistedProvider(store Store) *PersistedProvider {
	if store == nil {
		panic("document: persisted provider requires a store")
	}
	return &PersistedProvider{store: store}
}

// Process claims the query when the store knows its document id. An unknown
// id declines so a later provider (or the no-document rejection) handles it.
func (p *PersistedProvider) Process(ctx context.Context, q *gqlrequest.Query) Outcome {
	if q.DocumentID == "" {
		return Declined
	}
	text, ok := p.store.Get(ctx, q.DocumentID)
	if !ok {
		return Declined
	}
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(text),
			Name: "persisted document " + q.DocumentID,
		}),
	})
	if err != nil {
		q.MarkRejected(gqlerrors.FormatErrors(err)...)
		return Claimed
	}
	q.MarkResolved(doc)
	return Claimed
}

// StaticStore serves documents from a fixed map, for configuration-seeded
// persisted queries and tests.
type StaticStore map[string]string

// Get implements Store.
func (s StaticStore) Get(_ context.Context, id string) (string, bool) {
	text, ok := s[id]
	return text, ok
}

// CacheStore is a concurrent, cost-bounded document store.
type CacheStore struct {
	cache *ristretto.Cache[string, string]
}

// NewCacheStore builds a cache store bounded to maxBytes of document text.
func NewCacheStore(maxBytes int64) (*CacheStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1e4,
		MaxCost:     maxBytes,
		BufferItems: 64,
		Cost: func(text string) int64 {
			return int64(len(text))
		},
	})
	if err != nil {
		return nil, err
	}
	return &CacheStore{cache: cache}, nil
}

// Put registers document text under id. Writes are applied asynchronously;
// call Wait when a read must observe the write.
func (s *CacheStore) Put(id, text string) {
	s.cache.Set(id, text, 0)
}

// Wait blocks until buffered writes are applied.
func (s *CacheStore) Wait() {
	s.cache.Wait()
}

// Get implements Store.
func (s *CacheStore) Get(_ context.Context, id string) (string, bool) {
	return s.cache.Get(id)
}

// Close releases the cache's internal resources.
func (s *CacheStore) Close() {
	s.cache.Close()
}
