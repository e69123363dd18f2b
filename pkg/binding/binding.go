// Package binding persists the association between local users and external
// provider identities, enforcing both uniqueness invariants: one binding per
// (user, provider) and one local user per (provider, external id).
package binding

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Binding is one persistent (user, provider, external identity) association.
type Binding struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Provider     string
	ExternalID   string
	Email        string
	Name         string
	AvatarURL    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BindParams carries everything needed to create or refresh a binding.
type BindParams struct {
	UserID       uuid.UUID
	Provider     string
	ExternalID   string
	Email        string
	Name         string
	AvatarURL    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// Store persists bindings.
//
// Bind enforces the uniqueness invariants: an external identity already bound
// to a different user fails with ErrExternalAlreadyBound; a (user, provider)
// pair already bound to a different external identity fails with
// ErrAlreadyBound; rebinding the same user to the same external identity is
// an idempotent profile/token update. Unbind is idempotent.
type Store interface {
	Bind(ctx context.Context, params BindParams) (Binding, error)
	Unbind(ctx context.Context, userID uuid.UUID, provider string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Binding, error)
	FindByExternal(ctx context.Context, provider, externalID string) (Binding, error)
	FindByUserProvider(ctx context.Context, userID uuid.UUID, provider string) (Binding, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error
}
