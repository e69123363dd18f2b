// Package provider describes the OAuth providers the service can talk to:
// a closed set of built-ins (github, google, microsoft) with endpoint
// metadata from golang.org/x/oauth2, plus settings-driven custom providers.
package provider

import "golang.org/x/oauth2"

// Kind is the closed provider enumeration. Profile normalization dispatches
// on it; custom providers carry their field mapping as data instead.
type Kind string

const (
	KindGitHub    Kind = "github"
	KindGoogle    Kind = "google"
	KindMicrosoft Kind = "microsoft"
	KindCustom    Kind = "custom"
)

// FieldMap lists, in priority order, the payload keys a custom provider may
// use for each normalized profile field.
type FieldMap struct {
	ID             []string
	Email          []string
	Name           []string
	Avatar         []string
	AvatarTemplate []string
}

// DefaultFieldMap covers the common OIDC-ish payload shapes.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		ID:             []string{"id", "sub", "user_id", "uid"},
		Email:          []string{"email", "mail", "emailAddress"},
		Name:           []string{"name", "username", "login", "displayName", "nickname"},
		Avatar:         []string{"avatar_url", "picture", "avatar"},
		AvatarTemplate: []string{"avatar_template"},
	}
}

// Provider is immutable endpoint and credential metadata for one provider.
type Provider struct {
	Name         string
	Kind         Kind
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	EmailsURL    string // github only: private-email fallback endpoint
	Scopes       []string
	BasicAuth    bool     // authenticate token requests with a Basic header instead of body credentials
	FieldMap     FieldMap // custom kind only
}

// AuthCodeURL builds the provider authorization URL carrying the state token.
func (p Provider) AuthCodeURL(state, redirectURI string) string {
	cfg := &oauth2.Config{
		ClientID:    p.ClientID,
		Scopes:      p.Scopes,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
	}
	return cfg.AuthCodeURL(state)
}
