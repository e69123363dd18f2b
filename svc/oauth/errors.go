package oauth

import "errors"

// Flow error taxonomy. The HTTP layer maps these to status codes; the
// callback page renders them as scrubbed user-facing messages.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrOAuthDisabled         = errors.New("oauth login is disabled")
	ErrProviderNotConfigured = errors.New("provider is not configured")
	ErrUnknownProvider       = errors.New("unknown provider")
	ErrStateInvalid          = errors.New("state is invalid or expired")
	ErrTokenExchangeFailed   = errors.New("token exchange failed")
	ErrProfileFetchFailed    = errors.New("failed to fetch provider profile")
	ErrProfileIncomplete     = errors.New("provider profile is incomplete")
	ErrEmailRequired         = errors.New("provider profile has no usable email")
	ErrUserUnavailable       = errors.New("user is unavailable")
	ErrAlreadyBound          = errors.New("provider is already bound for this user")
	ErrExternalAlreadyBound  = errors.New("external identity is already bound to another user")
	ErrRegistrationClosed    = errors.New("registration is closed")
	ErrDomainNotAllowed      = errors.New("email domain is not allowed")
)

// Collaborator contract errors.
var (
	// ErrUserNotFound must be returned by UserDirectory implementations for
	// unknown users; the login flow uses it to decide when to provision.
	ErrUserNotFound = errors.New("user not found")
	// ErrBindingNotFound indicates a refresh or lookup for a provider the
	// user never bound.
	ErrBindingNotFound = errors.New("binding not found")
	// ErrNoRefreshToken indicates a binding whose provider never issued a
	// refresh token.
	ErrNoRefreshToken = errors.New("no refresh token stored for binding")
)
