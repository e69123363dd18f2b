package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/oauthflow/pkg/binding"
	"github.com/dmitrymomot/oauthflow/pkg/exchange"
	"github.com/dmitrymomot/oauthflow/pkg/logger"
	"github.com/dmitrymomot/oauthflow/pkg/profile"
)

// BindingInfo is the client-visible shape of a binding: tokens redacted.
type BindingInfo struct {
	Provider   string     `json:"provider"`
	ExternalID string     `json:"externalId"`
	Email      string     `json:"email,omitempty"`
	Name       string     `json:"name,omitempty"`
	AvatarURL  string     `json:"avatarUrl,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Bindings lists the caller's bindings with token fields redacted.
func (s *Service) Bindings(ctx context.Context, userID uuid.UUID) ([]BindingInfo, error) {
	list, err := s.deps.Bindings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}

	infos := make([]BindingInfo, 0, len(list))
	for _, b := range list {
		infos = append(infos, BindingInfo{
			Provider:   b.Provider,
			ExternalID: b.ExternalID,
			Email:      b.Email,
			Name:       b.Name,
			AvatarURL:  b.AvatarURL,
			ExpiresAt:  b.ExpiresAt,
			CreatedAt:  b.CreatedAt,
		})
	}
	return infos, nil
}

// BindDirect attaches an already-validated external profile to the caller
// without the redirect dance. The provider must still resolve, so garbage
// identifiers and unconfigured providers are rejected.
func (s *Service) BindDirect(ctx context.Context, userID uuid.UUID, providerName string, prof profile.Profile) (BindingInfo, error) {
	p, err := s.resolveProvider(ctx, providerName)
	if err != nil {
		return BindingInfo{}, err
	}
	if err := s.requireEnabled(ctx); err != nil {
		return BindingInfo{}, err
	}
	if prof.ExternalID == "" {
		return BindingInfo{}, ErrProfileIncomplete
	}

	if _, err := s.availableUser(ctx, userID); err != nil {
		return BindingInfo{}, err
	}

	b, err := s.bind(ctx, userID, p.Name, prof, exchange.TokenSet{})
	if err != nil {
		return BindingInfo{}, err
	}

	s.log.InfoContext(ctx, "identity bound directly",
		logger.Provider(p.Name),
		logger.UserID(userID),
		logger.Component("oauth"),
	)

	return BindingInfo{
		Provider:   b.Provider,
		ExternalID: b.ExternalID,
		Email:      b.Email,
		Name:       b.Name,
		AvatarURL:  b.AvatarURL,
		ExpiresAt:  b.ExpiresAt,
		CreatedAt:  b.CreatedAt,
	}, nil
}

// Unbind removes the caller's binding for a provider. Unbinding a pair that
// does not exist is a no-op.
func (s *Service) Unbind(ctx context.Context, userID uuid.UUID, providerName string) error {
	if err := s.validateName(providerName); err != nil {
		return err
	}
	if err := s.deps.Bindings.Unbind(ctx, userID, providerName); err != nil {
		return fmt.Errorf("failed to unbind: %w", err)
	}

	s.log.InfoContext(ctx, "identity unbound",
		logger.Provider(providerName),
		logger.UserID(userID),
		logger.Component("oauth"),
	)
	return nil
}

// RefreshResult carries the renewed access token.
type RefreshResult struct {
	AccessToken string     `json:"accessToken"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Refresh renews the access token stored on the caller's binding. The stored
// refresh token is preserved when the provider does not rotate it.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID, providerName string) (RefreshResult, error) {
	p, err := s.resolveProvider(ctx, providerName)
	if err != nil {
		return RefreshResult{}, err
	}

	b, err := s.deps.Bindings.FindByUserProvider(ctx, userID, p.Name)
	if err != nil {
		if errors.Is(err, binding.ErrNotFound) {
			return RefreshResult{}, ErrBindingNotFound
		}
		return RefreshResult{}, fmt.Errorf("failed to look up binding: %w", err)
	}
	if b.RefreshToken == "" {
		return RefreshResult{}, ErrNoRefreshToken
	}

	ts, err := s.deps.Exchange.Refresh(ctx, p, b.RefreshToken)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	if err := s.deps.Bindings.UpdateTokens(ctx, b.ID, ts.AccessToken, ts.RefreshToken, ts.ExpiresAt); err != nil {
		return RefreshResult{}, fmt.Errorf("failed to store refreshed tokens: %w", err)
	}

	s.log.InfoContext(ctx, "access token refreshed",
		logger.Provider(p.Name),
		logger.UserID(userID),
		logger.Component("oauth"),
	)

	return RefreshResult{AccessToken: ts.AccessToken, ExpiresAt: ts.ExpiresAt}, nil
}
