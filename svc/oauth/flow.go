package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/oauthflow/pkg/binding"
	"github.com/dmitrymomot/oauthflow/pkg/exchange"
	"github.com/dmitrymomot/oauthflow/pkg/logger"
	"github.com/dmitrymomot/oauthflow/pkg/profile"
	"github.com/dmitrymomot/oauthflow/pkg/sanitizer"
	"github.com/dmitrymomot/oauthflow/pkg/state"
)

// AuthorizeResult carries the provider authorization URL and the state token
// embedded in it.
type AuthorizeResult struct {
	URL   string
	State string
}

// Authorize starts a flow: it persists a correlation record and builds the
// provider authorization URL. For bind mode, userID identifies the caller.
func (s *Service) Authorize(ctx context.Context, providerName string, mode state.Mode, userID uuid.UUID, redirectURI string) (AuthorizeResult, error) {
	p, err := s.resolveProvider(ctx, providerName)
	if err != nil {
		return AuthorizeResult{}, err
	}
	if err := s.requireEnabled(ctx); err != nil {
		return AuthorizeResult{}, err
	}

	data := state.Data{Provider: p.Name, Mode: mode, UserID: userID}
	if err := data.Validate(); err != nil {
		return AuthorizeResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	token, err := s.deps.States.Create(ctx, data)
	if err != nil {
		return AuthorizeResult{}, fmt.Errorf("failed to create flow state: %w", err)
	}

	s.log.InfoContext(ctx, "oauth flow initiated",
		logger.Provider(p.Name),
		logger.FlowMode(string(mode)),
		logger.Component("oauth"),
	)

	return AuthorizeResult{
		URL:   p.AuthCodeURL(token, redirectURI),
		State: token,
	}, nil
}

// CallbackParams are the values recovered from the provider redirect.
// Provider may be empty when the transport route carries no provider
// segment; it is then resolved from the state record.
type CallbackParams struct {
	Provider    string
	Code        string
	State       string
	ErrorParam  string // provider-reported error, e.g. access_denied
	RedirectURI string // must match the one sent at authorize time
}

// CallbackResult is the outcome of a completed flow: a session token for
// login mode, the binding for bind mode.
type CallbackResult struct {
	Mode         state.Mode
	UserID       uuid.UUID
	SessionToken string
	Binding      binding.Binding
}

// Callback completes a flow. The state record is consumed exactly once
// before any outbound call, so a replayed callback can never reach the token
// exchange.
func (s *Service) Callback(ctx context.Context, params CallbackParams) (CallbackResult, error) {
	if params.ErrorParam != "" {
		// The user or provider aborted at the consent screen. Burn the
		// state if one was issued so the token cannot be replayed.
		if params.State != "" {
			_, _ = s.deps.States.Consume(ctx, "", params.State)
		}
		return CallbackResult{}, fmt.Errorf("%w: %s", ErrTokenExchangeFailed, sanitizer.ScrubMessage(params.ErrorParam))
	}
	if params.Code == "" || params.State == "" {
		return CallbackResult{}, fmt.Errorf("%w: missing code or state", ErrInvalidInput)
	}
	if params.Provider != "" {
		if err := s.validateName(params.Provider); err != nil {
			return CallbackResult{}, err
		}
	}

	data, err := s.deps.States.Consume(ctx, params.Provider, params.State)
	if err != nil {
		if errors.Is(err, state.ErrStateNotFound) {
			return CallbackResult{}, ErrStateInvalid
		}
		return CallbackResult{}, fmt.Errorf("failed to consume flow state: %w", err)
	}

	// From here the state is gone: any failure is terminal and the flow
	// must be restarted from authorize.
	if err := s.requireEnabled(ctx); err != nil {
		return CallbackResult{}, err
	}
	p, err := s.resolveProvider(ctx, data.Provider)
	if err != nil {
		return CallbackResult{}, err
	}

	ts, err := s.deps.Exchange.Exchange(ctx, p, params.Code, params.RedirectURI)
	if err != nil {
		s.log.WarnContext(ctx, "token exchange failed",
			logger.Provider(p.Name),
			logger.Error(err),
			logger.Component("oauth"),
		)
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	prof, err := s.deps.Profiles.Fetch(ctx, p, ts.AccessToken)
	if err != nil {
		if errors.Is(err, profile.ErrIncompleteProfile) {
			return CallbackResult{}, ErrProfileIncomplete
		}
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}

	switch data.Mode {
	case state.ModeBind:
		return s.completeBind(ctx, p.Name, data.UserID, prof, ts)
	default:
		return s.completeLogin(ctx, p.Name, prof, ts)
	}
}

func (s *Service) completeBind(ctx context.Context, providerName string, userID uuid.UUID, prof profile.Profile, ts exchange.TokenSet) (CallbackResult, error) {
	if _, err := s.availableUser(ctx, userID); err != nil {
		return CallbackResult{}, err
	}

	b, err := s.bind(ctx, userID, providerName, prof, ts)
	if err != nil {
		return CallbackResult{}, err
	}

	s.log.InfoContext(ctx, "identity bound",
		logger.Provider(providerName),
		logger.UserID(userID),
		logger.Component("oauth"),
	)

	return CallbackResult{Mode: state.ModeBind, UserID: userID, Binding: b}, nil
}

func (s *Service) completeLogin(ctx context.Context, providerName string, prof profile.Profile, ts exchange.TokenSet) (CallbackResult, error) {
	existing, err := s.deps.Bindings.FindByExternal(ctx, providerName, prof.ExternalID)
	switch {
	case err == nil:
		return s.loginExisting(ctx, existing, ts)
	case errors.Is(err, binding.ErrNotFound):
		return s.loginFirstTime(ctx, providerName, prof, ts)
	default:
		return CallbackResult{}, fmt.Errorf("failed to look up binding: %w", err)
	}
}

func (s *Service) loginExisting(ctx context.Context, b binding.Binding, ts exchange.TokenSet) (CallbackResult, error) {
	user, err := s.availableUser(ctx, b.UserID)
	if err != nil {
		return CallbackResult{}, err
	}

	// Keep the stored tokens fresh; a failure here must not block login.
	if err := s.deps.Bindings.UpdateTokens(ctx, b.ID, ts.AccessToken, ts.RefreshToken, ts.ExpiresAt); err != nil {
		s.log.WarnContext(ctx, "failed to refresh stored tokens on login",
			logger.Provider(b.Provider),
			logger.UserID(user.ID),
			logger.Error(err),
			logger.Component("oauth"),
		)
	}

	return s.issueSession(ctx, user.ID, b)
}

func (s *Service) loginFirstTime(ctx context.Context, providerName string, prof profile.Profile, ts exchange.TokenSet) (CallbackResult, error) {
	email := sanitizer.NormalizeEmail(prof.Email)
	if email == "" {
		return CallbackResult{}, ErrEmailRequired
	}

	user, err := s.deps.Users.UserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Deleted || user.Banned {
			return CallbackResult{}, ErrUserUnavailable
		}
	case errors.Is(err, ErrUserNotFound):
		user, err = s.provision(ctx, email, prof)
		if err != nil {
			return CallbackResult{}, err
		}
	default:
		return CallbackResult{}, fmt.Errorf("failed to look up user by email: %w", err)
	}

	b, err := s.bind(ctx, user.ID, providerName, prof, ts)
	if err != nil {
		return CallbackResult{}, err
	}

	return s.issueSession(ctx, user.ID, b)
}

// provision creates a local account for a first-time OAuth login, honoring
// the registration and domain policies.
func (s *Service) provision(ctx context.Context, email string, prof profile.Profile) (User, error) {
	open, err := s.deps.Settings.RegistrationOpen(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to read registration settings: %w", err)
	}
	if !open {
		return User{}, ErrRegistrationClosed
	}

	allowed, err := s.deps.Settings.AllowedEmailDomains(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to read domain settings: %w", err)
	}
	if len(allowed) > 0 {
		domain := sanitizer.EmailDomain(email)
		permitted := false
		for _, d := range allowed {
			if domain == d {
				permitted = true
				break
			}
		}
		if !permitted {
			return User{}, ErrDomainNotAllowed
		}
	}

	name := prof.Name
	if name == "" {
		name = sanitizer.EmailLocalPart(email)
	}

	hash, err := randomPasswordHash()
	if err != nil {
		return User{}, err
	}

	user, err := s.deps.Provisioner.CreateUser(ctx, NewUser{
		Email:        email,
		Name:         name,
		AvatarURL:    prof.AvatarURL,
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to provision user: %w", err)
	}

	s.log.InfoContext(ctx, "user provisioned via oauth",
		logger.UserID(user.ID),
		logger.Component("oauth"),
	)
	return user, nil
}

func (s *Service) bind(ctx context.Context, userID uuid.UUID, providerName string, prof profile.Profile, ts exchange.TokenSet) (binding.Binding, error) {
	b, err := s.deps.Bindings.Bind(ctx, binding.BindParams{
		UserID:       userID,
		Provider:     providerName,
		ExternalID:   prof.ExternalID,
		Email:        sanitizer.NormalizeEmail(prof.Email),
		Name:         prof.Name,
		AvatarURL:    prof.AvatarURL,
		AccessToken:  ts.AccessToken,
		RefreshToken: ts.RefreshToken,
		ExpiresAt:    ts.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, binding.ErrExternalAlreadyBound):
			return binding.Binding{}, ErrExternalAlreadyBound
		case errors.Is(err, binding.ErrAlreadyBound):
			return binding.Binding{}, ErrAlreadyBound
		default:
			return binding.Binding{}, fmt.Errorf("failed to store binding: %w", err)
		}
	}
	return b, nil
}

func (s *Service) issueSession(ctx context.Context, userID uuid.UUID, b binding.Binding) (CallbackResult, error) {
	token, err := s.deps.Sessions.Issue(ctx, userID)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("failed to issue session: %w", err)
	}

	s.log.InfoContext(ctx, "oauth login completed",
		logger.Provider(b.Provider),
		logger.UserID(userID),
		logger.Component("oauth"),
	)

	return CallbackResult{
		Mode:         state.ModeLogin,
		UserID:       userID,
		SessionToken: token,
		Binding:      b,
	}, nil
}
