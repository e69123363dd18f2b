package oauth_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/oauthflow/pkg/exchange"
	"github.com/dmitrymomot/oauthflow/pkg/profile"
	"github.com/dmitrymomot/oauthflow/pkg/provider"
	"github.com/dmitrymomot/oauthflow/svc/oauth"
)

type mockUserDirectory struct {
	mock.Mock
}

func (m *mockUserDirectory) UserByID(ctx context.Context, id uuid.UUID) (oauth.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(oauth.User), args.Error(1)
}

func (m *mockUserDirectory) UserByEmail(ctx context.Context, email string) (oauth.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(oauth.User), args.Error(1)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) CreateUser(ctx context.Context, u oauth.NewUser) (oauth.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(oauth.User), args.Error(1)
}

type mockSessionIssuer struct {
	mock.Mock
}

func (m *mockSessionIssuer) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) ProviderSettings(ctx context.Context, name string) (provider.Settings, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(provider.Settings), args.Error(1)
}

func (m *mockSettings) OAuthEnabled(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockSettings) RegistrationOpen(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockSettings) AllowedEmailDomains(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockExchanger struct {
	mock.Mock
}

func (m *mockExchanger) Exchange(ctx context.Context, p provider.Provider, code, redirectURI string) (exchange.TokenSet, error) {
	args := m.Called(ctx, p, code, redirectURI)
	return args.Get(0).(exchange.TokenSet), args.Error(1)
}

func (m *mockExchanger) Refresh(ctx context.Context, p provider.Provider, refreshToken string) (exchange.TokenSet, error) {
	args := m.Called(ctx, p, refreshToken)
	return args.Get(0).(exchange.TokenSet), args.Error(1)
}

type mockProfileFetcher struct {
	mock.Mock
}

func (m *mockProfileFetcher) Fetch(ctx context.Context, p provider.Provider, accessToken string) (profile.Profile, error) {
	args := m.Called(ctx, p, accessToken)
	return args.Get(0).(profile.Profile), args.Error(1)
}
