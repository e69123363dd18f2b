// Package exchange trades authorization codes and refresh tokens for access
// tokens at a provider's token endpoint.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/oauthflow/pkg/provider"
)

const defaultTimeout = 10 * time.Second

// TokenSet is the normalized result of a token endpoint call.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time // nil when the provider omits expires_in
}

// Client performs token endpoint calls.
type Client struct {
	httpClient *http.Client
	now        func() time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the outbound HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// New creates a Client with a bounded request timeout.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange trades an authorization code for a token set.
func (c *Client) Exchange(ctx context.Context, p provider.Provider, code, redirectURI string) (TokenSet, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	return c.request(ctx, p, form)
}

// Refresh trades a refresh token for a fresh token set. When the provider
// omits a new refresh token, the previous one is carried over.
func (c *Client) Refresh(ctx context.Context, p provider.Provider, refreshToken string) (TokenSet, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	ts, err := c.request(ctx, p, form)
	if err != nil {
		return TokenSet{}, err
	}
	if ts.RefreshToken == "" {
		ts.RefreshToken = refreshToken
	}
	return ts, nil
}

// tokenResponse covers both success and error bodies. GitHub reports errors
// with a 200 status and an "error" field, so both shapes must be decoded.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) request(ctx context.Context, p provider.Provider, form url.Values) (TokenSet, error) {
	form.Set("client_id", p.ClientID)
	if !p.BasicAuth {
		form.Set("client_secret", p.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenSet{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if p.BasicAuth {
		req.SetBasicAuth(url.QueryEscape(p.ClientID), url.QueryEscape(p.ClientSecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenSet{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TokenSet{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return TokenSet{}, fmt.Errorf("%w: status %d: %v", ErrExchangeFailed, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || tr.Error != "" {
		desc := tr.ErrorDescription
		if desc == "" {
			desc = tr.Error
		}
		if desc == "" {
			desc = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return TokenSet{}, fmt.Errorf("%w: %s", ErrExchangeFailed, desc)
	}

	if tr.AccessToken == "" {
		return TokenSet{}, fmt.Errorf("%w: no access token in response", ErrExchangeFailed)
	}

	ts := TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		expiresAt := c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
		ts.ExpiresAt = &expiresAt
	}
	return ts, nil
}
