// Package settings supplies site-level OAuth policy and per-provider
// credentials from the environment.
package settings

import (
	"context"

	"github.com/dmitrymomot/oauthflow/pkg/provider"
)

// Config holds the environment-driven OAuth settings.
type Config struct {
	Enabled          bool     `env:"OAUTH_ENABLED" envDefault:"true"`
	RegistrationOpen bool     `env:"REGISTRATION_OPEN" envDefault:"true"`
	AllowedDomains   []string `env:"OAUTH_ALLOWED_EMAIL_DOMAINS" envSeparator:","`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	MicrosoftClientID     string `env:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `env:"MICROSOFT_CLIENT_SECRET"`
	MicrosoftTenant       string `env:"MICROSOFT_TENANT"`

	// A single optional custom provider, registered under CustomName.
	CustomName         string   `env:"OAUTH_CUSTOM_NAME"`
	CustomClientID     string   `env:"OAUTH_CUSTOM_CLIENT_ID"`
	CustomClientSecret string   `env:"OAUTH_CUSTOM_CLIENT_SECRET"`
	CustomAuthURL      string   `env:"OAUTH_CUSTOM_AUTH_URL"`
	CustomTokenURL     string   `env:"OAUTH_CUSTOM_TOKEN_URL"`
	CustomUserInfoURL  string   `env:"OAUTH_CUSTOM_USERINFO_URL"`
	CustomScopes       []string `env:"OAUTH_CUSTOM_SCOPES" envSeparator:","`
	CustomBasicAuth    bool     `env:"OAUTH_CUSTOM_BASIC_AUTH"`
}

// EnvSource serves provider settings and policy from a loaded Config.
type EnvSource struct {
	providers map[string]provider.Settings
	cfg       Config
}

// NewEnvSource indexes the configured providers. Providers without
// credentials are left out so they resolve as unknown.
func NewEnvSource(cfg Config) *EnvSource {
	providers := make(map[string]provider.Settings)

	if cfg.GitHubClientID != "" {
		providers["github"] = provider.Settings{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
		}
	}
	if cfg.GoogleClientID != "" {
		providers["google"] = provider.Settings{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		}
	}
	if cfg.MicrosoftClientID != "" {
		providers["microsoft"] = provider.Settings{
			ClientID:     cfg.MicrosoftClientID,
			ClientSecret: cfg.MicrosoftClientSecret,
			Tenant:       cfg.MicrosoftTenant,
		}
	}
	if cfg.CustomName != "" {
		providers[cfg.CustomName] = provider.Settings{
			ClientID:     cfg.CustomClientID,
			ClientSecret: cfg.CustomClientSecret,
			AuthURL:      cfg.CustomAuthURL,
			TokenURL:     cfg.CustomTokenURL,
			UserInfoURL:  cfg.CustomUserInfoURL,
			Scopes:       cfg.CustomScopes,
			BasicAuth:    cfg.CustomBasicAuth,
		}
	}

	return &EnvSource{providers: providers, cfg: cfg}
}

func (s *EnvSource) ProviderSettings(_ context.Context, name string) (provider.Settings, error) {
	cfg, ok := s.providers[name]
	if !ok {
		return provider.Settings{}, provider.ErrUnknownProvider
	}
	return cfg, nil
}

func (s *EnvSource) OAuthEnabled(context.Context) (bool, error) {
	return s.cfg.Enabled, nil
}

func (s *EnvSource) RegistrationOpen(context.Context) (bool, error) {
	return s.cfg.RegistrationOpen, nil
}

func (s *EnvSource) AllowedEmailDomains(context.Context) ([]string, error) {
	return s.cfg.AllowedDomains, nil
}
