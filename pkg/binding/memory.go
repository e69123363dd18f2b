package binding

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and development. It applies the
// same uniqueness semantics as the postgres store under a single mutex.
type MemoryStore struct {
	mu       sync.Mutex
	bindings map[uuid.UUID]Binding
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bindings: make(map[uuid.UUID]Binding),
	}
}

func (s *MemoryStore) Bind(_ context.Context, params BindParams) (Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	for id, b := range s.bindings {
		if b.Provider == params.Provider && b.ExternalID == params.ExternalID {
			if b.UserID != params.UserID {
				return Binding{}, ErrExternalAlreadyBound
			}
			b.Email = params.Email
			b.Name = params.Name
			b.AvatarURL = params.AvatarURL
			b.AccessToken = params.AccessToken
			b.RefreshToken = params.RefreshToken
			b.ExpiresAt = params.ExpiresAt
			b.UpdatedAt = now
			s.bindings[id] = b
			return b, nil
		}
	}

	for _, b := range s.bindings {
		if b.UserID == params.UserID && b.Provider == params.Provider {
			return Binding{}, ErrAlreadyBound
		}
	}

	b := Binding{
		ID:           uuid.New(),
		UserID:       params.UserID,
		Provider:     params.Provider,
		ExternalID:   params.ExternalID,
		Email:        params.Email,
		Name:         params.Name,
		AvatarURL:    params.AvatarURL,
		AccessToken:  params.AccessToken,
		RefreshToken: params.RefreshToken,
		ExpiresAt:    params.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.bindings[b.ID] = b
	return b, nil
}

func (s *MemoryStore) Unbind(_ context.Context, userID uuid.UUID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range s.bindings {
		if b.UserID == userID && b.Provider == provider {
			delete(s.bindings, id)
		}
	}
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Binding
	for _, b := range s.bindings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) FindByExternal(_ context.Context, provider, externalID string) (Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bindings {
		if b.Provider == provider && b.ExternalID == externalID {
			return b, nil
		}
	}
	return Binding{}, ErrNotFound
}

func (s *MemoryStore) FindByUserProvider(_ context.Context, userID uuid.UUID, provider string) (Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bindings {
		if b.UserID == userID && b.Provider == provider {
			return b, nil
		}
	}
	return Binding{}, ErrNotFound
}

func (s *MemoryStore) UpdateTokens(_ context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[id]
	if !ok {
		return ErrNotFound
	}
	b.AccessToken = accessToken
	b.RefreshToken = refreshToken
	b.ExpiresAt = expiresAt
	b.UpdatedAt = time.Now()
	s.bindings[id] = b
	return nil
}
