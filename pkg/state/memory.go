package state

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is a single-node Store for tests and development.
type MemoryStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemoryStore creates an in-memory Store with the given record lifetime.
// A non-positive ttl falls back to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		cache: gocache.New(ttl, ttl),
	}
}

func (s *MemoryStore) Create(_ context.Context, data Data) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.SetDefault(token, data)
	return token, nil
}

func (s *MemoryStore) Consume(_ context.Context, provider, token string) (Data, error) {
	if token == "" {
		return Data{}, ErrStateNotFound
	}

	// The mutex makes read-then-delete atomic against concurrent consumers.
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(token)
	if !ok {
		return Data{}, ErrStateNotFound
	}
	s.cache.Delete(token)

	data, ok := v.(Data)
	if !ok || !matches(data, provider) {
		return Data{}, ErrStateNotFound
	}
	return data, nil
}
