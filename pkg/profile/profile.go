// Package profile fetches provider user-info payloads and maps them into a
// canonical profile shape.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/oauthflow/pkg/provider"
)

const (
	defaultTimeout = 10 * time.Second

	// avatarSize replaces the {size} placeholder in avatar templates.
	avatarSize = "120"
)

// Profile is the provider-agnostic identity shape.
type Profile struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// Normalizer fetches and normalizes provider profiles.
type Normalizer struct {
	httpClient *http.Client
}

// Option configures the Normalizer.
type Option func(*Normalizer)

// WithHTTPClient replaces the outbound HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Normalizer) {
		if c != nil {
			n.httpClient = c
		}
	}
}

// New creates a Normalizer with a bounded request timeout.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Fetch retrieves the user-info payload with a bearer token and maps it
// according to the provider kind. A profile without an external id is
// rejected with ErrIncompleteProfile.
func (n *Normalizer) Fetch(ctx context.Context, p provider.Provider, accessToken string) (Profile, error) {
	payload, err := n.getJSON(ctx, p.UserInfoURL, accessToken)
	if err != nil {
		return Profile{}, err
	}

	var prof Profile
	switch p.Kind {
	case provider.KindGitHub:
		prof = Profile{
			ExternalID: stringField(payload, "id"),
			Email:      stringField(payload, "email"),
			Name:       stringField(payload, "login"),
			AvatarURL:  stringField(payload, "avatar_url"),
		}
		if prof.Email == "" && p.EmailsURL != "" {
			// Profile email is empty when the account keeps it private;
			// the dedicated emails endpoint still lists it.
			prof.Email = n.githubEmail(ctx, p.EmailsURL, accessToken)
		}
	case provider.KindGoogle:
		prof = Profile{
			ExternalID: stringField(payload, "id"),
			Email:      stringField(payload, "email"),
			Name:       stringField(payload, "name"),
			AvatarURL:  stringField(payload, "picture"),
		}
	case provider.KindMicrosoft:
		prof = Profile{
			ExternalID: stringField(payload, "id"),
			Email:      firstField(payload, "mail", "userPrincipalName"),
			Name:       firstField(payload, "displayName", "givenName"),
		}
	default:
		prof = mapCustom(payload, p.FieldMap)
	}

	if prof.ExternalID == "" {
		return Profile{}, ErrIncompleteProfile
	}
	return prof, nil
}

func mapCustom(payload map[string]any, fm provider.FieldMap) Profile {
	prof := Profile{
		ExternalID: firstField(payload, fm.ID...),
		Email:      firstField(payload, fm.Email...),
		Name:       firstField(payload, fm.Name...),
		AvatarURL:  firstField(payload, fm.Avatar...),
	}
	if prof.AvatarURL == "" {
		if tpl := firstField(payload, fm.AvatarTemplate...); tpl != "" {
			prof.AvatarURL = strings.ReplaceAll(tpl, "{size}", avatarSize)
		}
	}
	return prof
}

// githubEmail selects, in order, the primary verified address, any verified
// address, or the first listed one. Lookup failures fall back to no email.
func (n *Normalizer) githubEmail(ctx context.Context, emailsURL, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, emailsURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	var entries []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil || len(entries) == 0 {
		return ""
	}

	for _, e := range entries {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range entries {
		if e.Verified {
			return e.Email
		}
	}
	return entries[0].Email
}

func (n *Normalizer) getJSON(ctx context.Context, url, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return payload, nil
}

// stringField stringifies a payload value: numeric ids become their decimal
// representation, everything non-scalar maps to "".
func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func firstField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringField(payload, key); v != "" {
			return v
		}
	}
	return ""
}
