// Package oauth orchestrates the OAuth flows: authorize, callback, refresh,
// and direct bind management. It sequences state validation, token exchange,
// profile normalization, and binding/session side effects, and owns the flow
// error taxonomy.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/oauthflow/pkg/binding"
	"github.com/dmitrymomot/oauthflow/pkg/exchange"
	"github.com/dmitrymomot/oauthflow/pkg/profile"
	"github.com/dmitrymomot/oauthflow/pkg/provider"
	"github.com/dmitrymomot/oauthflow/pkg/state"
)

// User is the slice of a local account the orchestrator needs.
type User struct {
	ID      uuid.UUID
	Email   string
	Name    string
	Deleted bool
	Banned  bool
}

// NewUser carries the fields for auto-provisioning a local account. The
// password hash is random; OAuth-only users never use it.
type NewUser struct {
	Email        string
	Name         string
	AvatarURL    string
	PasswordHash string
}

// UserDirectory looks up local accounts, including soft-deleted ones.
// Unknown users are reported with ErrUserNotFound.
type UserDirectory interface {
	UserByID(ctx context.Context, id uuid.UUID) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
}

// Provisioner creates local accounts for first-time OAuth logins. Policy
// checks (registration open, allowed domains) happen before it is called.
type Provisioner interface {
	CreateUser(ctx context.Context, u NewUser) (User, error)
}

// SessionIssuer mints opaque bearer credentials.
type SessionIssuer interface {
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
}

// SettingsSource exposes site-level OAuth policy alongside per-provider
// configuration.
type SettingsSource interface {
	provider.Source
	OAuthEnabled(ctx context.Context) (bool, error)
	RegistrationOpen(ctx context.Context) (bool, error)
	// AllowedEmailDomains returns the provisioning allowlist; empty means
	// every domain is accepted.
	AllowedEmailDomains(ctx context.Context) ([]string, error)
}

// ProviderResolver resolves provider identifiers to endpoint metadata.
type ProviderResolver interface {
	Resolve(ctx context.Context, name string) (provider.Provider, error)
}

// Exchanger performs token endpoint calls.
type Exchanger interface {
	Exchange(ctx context.Context, p provider.Provider, code, redirectURI string) (exchange.TokenSet, error)
	Refresh(ctx context.Context, p provider.Provider, refreshToken string) (exchange.TokenSet, error)
}

// ProfileFetcher normalizes provider profiles.
type ProfileFetcher interface {
	Fetch(ctx context.Context, p provider.Provider, accessToken string) (profile.Profile, error)
}

// Dependencies are the collaborators a Service requires. All fields are
// mandatory.
type Dependencies struct {
	Providers   ProviderResolver
	Exchange    Exchanger
	Profiles    ProfileFetcher
	States      state.Store
	Bindings    binding.Store
	Users       UserDirectory
	Provisioner Provisioner
	Sessions    SessionIssuer
	Settings    SettingsSource
}

// Service drives the OAuth flows.
type Service struct {
	deps Dependencies
	log  *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger supplies a logger; without it logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New validates the dependency set and creates a Service.
func New(deps Dependencies, opts ...Option) (*Service, error) {
	switch {
	case deps.Providers == nil:
		return nil, errors.New("oauth: provider resolver is required")
	case deps.Exchange == nil:
		return nil, errors.New("oauth: token exchanger is required")
	case deps.Profiles == nil:
		return nil, errors.New("oauth: profile fetcher is required")
	case deps.States == nil:
		return nil, errors.New("oauth: state store is required")
	case deps.Bindings == nil:
		return nil, errors.New("oauth: binding store is required")
	case deps.Users == nil:
		return nil, errors.New("oauth: user directory is required")
	case deps.Provisioner == nil:
		return nil, errors.New("oauth: provisioner is required")
	case deps.Sessions == nil:
		return nil, errors.New("oauth: session issuer is required")
	case deps.Settings == nil:
		return nil, errors.New("oauth: settings source is required")
	}

	s := &Service{
		deps: deps,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// validateName rejects malformed provider identifiers before any lookup.
func (s *Service) validateName(name string) error {
	if err := provider.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// resolveProvider maps registry errors into the flow taxonomy.
func (s *Service) resolveProvider(ctx context.Context, name string) (provider.Provider, error) {
	p, err := s.deps.Providers.Resolve(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrInvalidProvider):
			return provider.Provider{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		case errors.Is(err, provider.ErrUnknownProvider):
			return provider.Provider{}, ErrUnknownProvider
		case errors.Is(err, provider.ErrNotConfigured):
			return provider.Provider{}, ErrProviderNotConfigured
		default:
			return provider.Provider{}, err
		}
	}
	return p, nil
}

func (s *Service) requireEnabled(ctx context.Context) error {
	enabled, err := s.deps.Settings.OAuthEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to read oauth settings: %w", err)
	}
	if !enabled {
		return ErrOAuthDisabled
	}
	return nil
}

// availableUser loads a user and rejects deleted or banned accounts.
func (s *Service) availableUser(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := s.deps.Users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrUserUnavailable
		}
		return User{}, fmt.Errorf("failed to load user: %w", err)
	}
	if u.Deleted || u.Banned {
		return User{}, ErrUserUnavailable
	}
	return u, nil
}

// randomPasswordHash generates a throwaway local credential for accounts
// provisioned through OAuth.
func randomPasswordHash() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(buf)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
