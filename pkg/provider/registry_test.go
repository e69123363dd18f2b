package provider_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/oauthflow/pkg/provider"
)

type staticSource map[string]provider.Settings

func (s staticSource) ProviderSettings(_ context.Context, name string) (provider.Settings, error) {
	settings, ok := s[name]
	if !ok {
		return provider.Settings{}, provider.ErrUnknownProvider
	}
	return settings, nil
}

func TestRegistryResolveBuiltins(t *testing.T) {
	t.Parallel()

	registry := provider.NewRegistry(staticSource{
		"github":    {ClientID: "gh-id", ClientSecret: "gh-secret"},
		"google":    {ClientID: "g-id", ClientSecret: "g-secret"},
		"microsoft": {ClientID: "ms-id", ClientSecret: "ms-secret", Tenant: "contoso"},
	})

	t.Run("github", func(t *testing.T) {
		t.Parallel()
		p, err := registry.Resolve(context.Background(), "github")
		require.NoError(t, err)
		assert.Equal(t, provider.KindGitHub, p.Kind)
		assert.Equal(t, "https://github.com/login/oauth/access_token", p.TokenURL)
		assert.Equal(t, "https://api.github.com/user", p.UserInfoURL)
		assert.Equal(t, "https://api.github.com/user/emails", p.EmailsURL)
		assert.Equal(t, []string{"read:user", "user:email"}, p.Scopes)
		assert.False(t, p.BasicAuth)
	})

	t.Run("google", func(t *testing.T) {
		t.Parallel()
		p, err := registry.Resolve(context.Background(), "google")
		require.NoError(t, err)
		assert.Equal(t, provider.KindGoogle, p.Kind)
		assert.Equal(t, []string{"openid", "email", "profile"}, p.Scopes)
		assert.Empty(t, p.EmailsURL)
	})

	t.Run("microsoft tenant substitution", func(t *testing.T) {
		t.Parallel()
		p, err := registry.Resolve(context.Background(), "microsoft")
		require.NoError(t, err)
		assert.Equal(t, provider.KindMicrosoft, p.Kind)
		assert.Contains(t, p.TokenURL, "contoso")
		assert.NotContains(t, p.TokenURL, "common")
	})
}

func TestRegistryResolveCustom(t *testing.T) {
	t.Parallel()

	registry := provider.NewRegistry(staticSource{
		"gitea": {
			ClientID:     "id",
			ClientSecret: "secret",
			AuthURL:      "https://git.example.com/login/oauth/authorize",
			TokenURL:     "https://git.example.com/login/oauth/access_token",
			UserInfoURL:  "https://git.example.com/api/v1/user",
			BasicAuth:    true,
		},
		"halfbaked": {
			ClientID:     "id",
			ClientSecret: "secret",
		},
	})

	t.Run("resolves with field map", func(t *testing.T) {
		t.Parallel()
		p, err := registry.Resolve(context.Background(), "gitea")
		require.NoError(t, err)
		assert.Equal(t, provider.KindCustom, p.Kind)
		assert.True(t, p.BasicAuth)
		assert.Equal(t, []string{"id", "sub", "user_id", "uid"}, p.FieldMap.ID)
	})

	t.Run("missing endpoints", func(t *testing.T) {
		t.Parallel()
		_, err := registry.Resolve(context.Background(), "halfbaked")
		assert.ErrorIs(t, err, provider.ErrNotConfigured)
	})
}

func TestRegistryResolveErrors(t *testing.T) {
	t.Parallel()

	registry := provider.NewRegistry(staticSource{
		"github": {ClientSecret: "secret-only"},
	})

	t.Run("invalid identifier rejected before lookup", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"", "github'; drop", "with space", "über", strings.Repeat("a", 51)} {
			_, err := registry.Resolve(context.Background(), name)
			assert.ErrorIs(t, err, provider.ErrInvalidProvider, "identifier %q", name)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Parallel()
		_, err := registry.Resolve(context.Background(), "unknown")
		assert.ErrorIs(t, err, provider.ErrUnknownProvider)
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()
		_, err := registry.Resolve(context.Background(), "github")
		assert.ErrorIs(t, err, provider.ErrNotConfigured)
	})
}

func TestProviderAuthCodeURL(t *testing.T) {
	t.Parallel()

	p := provider.Provider{
		Name:     "github",
		Kind:     provider.KindGitHub,
		ClientID: "client-123",
		AuthURL:  "https://github.com/login/oauth/authorize",
		TokenURL: "https://github.com/login/oauth/access_token",
		Scopes:   []string{"read:user", "user:email"},
	}

	url := p.AuthCodeURL("state-token", "https://app.example.com/auth/oauth/callback")
	assert.Contains(t, url, "https://github.com/login/oauth/authorize?")
	assert.Contains(t, url, "client_id=client-123")
	assert.Contains(t, url, "state=state-token")
	assert.Contains(t, url, "response_type=code")
	assert.Contains(t, url, "redirect_uri=https%3A%2F%2Fapp.example.com%2Fauth%2Foauth%2Fcallback")
	assert.Contains(t, url, "scope=read%3Auser+user%3Aemail")
}
