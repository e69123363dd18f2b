package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Provider identifiers arrive from untrusted input; validate shape before
// any lookup.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidateName rejects identifiers outside the allowed shape. Resolve calls
// it implicitly; operations that do not need a full Provider call it directly.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, name)
	}
	return nil
}

// Settings is the per-provider configuration a Source returns. Built-in
// providers need only credentials; custom providers also carry endpoints.
type Settings struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	Tenant       string // microsoft: substituted for the /common/ tenant segment
	AuthURL      string // custom only
	TokenURL     string // custom only
	UserInfoURL  string // custom only
	BasicAuth    bool   // custom only: Basic-header client authentication
}

// Source supplies provider settings. ErrUnknownProvider must be returned for
// identifiers the source has no definition for.
type Source interface {
	ProviderSettings(ctx context.Context, name string) (Settings, error)
}

const (
	githubUserURL    = "https://api.github.com/user"
	githubEmailsURL  = "https://api.github.com/user/emails"
	googleUserURL    = "https://www.googleapis.com/oauth2/v2/userinfo"
	microsoftUserURL = "https://graph.microsoft.com/v1.0/me"
)

var defaultScopes = map[Kind][]string{
	KindGitHub:    {"read:user", "user:email"},
	KindGoogle:    {"openid", "email", "profile"},
	KindMicrosoft: {"User.Read"},
}

// Registry resolves provider identifiers to immutable Provider metadata.
type Registry struct {
	source Source
}

// NewRegistry creates a Registry backed by the given settings source.
func NewRegistry(source Source) *Registry {
	if source == nil {
		panic("provider: nil settings source")
	}
	return &Registry{source: source}
}

// Resolve validates the identifier, loads its settings, and returns the
// assembled Provider. Identifiers outside the built-in set resolve as custom
// providers and must carry token and user-info endpoints in settings.
func (r *Registry) Resolve(ctx context.Context, name string) (Provider, error) {
	if err := ValidateName(name); err != nil {
		return Provider{}, err
	}

	settings, err := r.source.ProviderSettings(ctx, name)
	if err != nil {
		if errors.Is(err, ErrUnknownProvider) {
			return Provider{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
		return Provider{}, err
	}

	switch Kind(name) {
	case KindGitHub, KindGoogle, KindMicrosoft:
		return r.builtin(Kind(name), settings)
	default:
		return r.custom(name, settings)
	}
}

func (r *Registry) builtin(kind Kind, s Settings) (Provider, error) {
	if s.ClientID == "" || s.ClientSecret == "" {
		return Provider{}, fmt.Errorf("%w: %s credentials missing", ErrNotConfigured, kind)
	}

	p := Provider{
		Name:         string(kind),
		Kind:         kind,
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Scopes:       s.Scopes,
	}
	if len(p.Scopes) == 0 {
		p.Scopes = defaultScopes[kind]
	}

	switch kind {
	case KindGitHub:
		p.AuthURL = github.Endpoint.AuthURL
		p.TokenURL = github.Endpoint.TokenURL
		p.UserInfoURL = githubUserURL
		p.EmailsURL = githubEmailsURL
	case KindGoogle:
		p.AuthURL = google.Endpoint.AuthURL
		p.TokenURL = google.Endpoint.TokenURL
		p.UserInfoURL = googleUserURL
	case KindMicrosoft:
		// AzureAD falls back to the /common/ tenant when none is configured.
		ep := endpoints.AzureAD(s.Tenant)
		p.AuthURL = ep.AuthURL
		p.TokenURL = ep.TokenURL
		p.UserInfoURL = microsoftUserURL
	}

	return p, nil
}

func (r *Registry) custom(name string, s Settings) (Provider, error) {
	if s.TokenURL == "" || s.UserInfoURL == "" {
		return Provider{}, fmt.Errorf("%w: %s endpoints missing", ErrNotConfigured, name)
	}
	if s.ClientID == "" || s.ClientSecret == "" {
		return Provider{}, fmt.Errorf("%w: %s credentials missing", ErrNotConfigured, name)
	}

	return Provider{
		Name:         name,
		Kind:         KindCustom,
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		AuthURL:      s.AuthURL,
		TokenURL:     s.TokenURL,
		UserInfoURL:  s.UserInfoURL,
		Scopes:       s.Scopes,
		BasicAuth:    s.BasicAuth,
		FieldMap:     DefaultFieldMap(),
	}, nil
}
