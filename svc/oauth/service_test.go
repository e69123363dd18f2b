package oauth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/oauthflow/pkg/binding"
	"github.com/dmitrymomot/oauthflow/pkg/exchange"
	"github.com/dmitrymomot/oauthflow/pkg/profile"
	"github.com/dmitrymomot/oauthflow/pkg/provider"
	"github.com/dmitrymomot/oauthflow/pkg/state"
	"github.com/dmitrymomot/oauthflow/svc/oauth"
)

const redirectURI = "https://app.example.com/auth/oauth/callback"

type fixture struct {
	svc      *oauth.Service
	states   *state.MemoryStore
	bindings *binding.MemoryStore
	users    *mockUserDirectory
	prov     *mockProvisioner
	sessions *mockSessionIssuer
	settings *mockSettings
	exch     *mockExchanger
	profiles *mockProfileFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		states:   state.NewMemoryStore(0),
		bindings: binding.NewMemoryStore(),
		users:    new(mockUserDirectory),
		prov:     new(mockProvisioner),
		sessions: new(mockSessionIssuer),
		settings: new(mockSettings),
		exch:     new(mockExchanger),
		profiles: new(mockProfileFetcher),
	}

	svc, err := oauth.New(oauth.Dependencies{
		Providers:   provider.NewRegistry(f.settings),
		Exchange:    f.exch,
		Profiles:    f.profiles,
		States:      f.states,
		Bindings:    f.bindings,
		Users:       f.users,
		Provisioner: f.prov,
		Sessions:    f.sessions,
		Settings:    f.settings,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// withGitHub wires the settings mock for an enabled github provider.
func (f *fixture) withGitHub() {
	f.settings.On("ProviderSettings", mock.Anything, "github").
		Return(provider.Settings{ClientID: "id", ClientSecret: "secret"}, nil)
	f.settings.On("OAuthEnabled", mock.Anything).Return(true, nil)
}

// startFlow runs Authorize and returns the issued state token.
func (f *fixture) startFlow(t *testing.T, mode state.Mode, userID uuid.UUID) string {
	t.Helper()
	res, err := f.svc.Authorize(context.Background(), "github", mode, userID, redirectURI)
	require.NoError(t, err)
	return res.State
}

func githubProfile() profile.Profile {
	return profile.Profile{ExternalID: "42", Email: "a@x.com", Name: "alice"}
}

func (f *fixture) expectExchange(prof profile.Profile) {
	ts := exchange.TokenSet{AccessToken: "at", RefreshToken: "rt"}
	f.exch.On("Exchange", mock.Anything, mock.Anything, "abc", redirectURI).Return(ts, nil)
	f.profiles.On("Fetch", mock.Anything, mock.Anything, "at").Return(prof, nil)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	t.Run("builds url and persists state", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()

		res, err := f.svc.Authorize(context.Background(), "github", state.ModeLogin, uuid.Nil, redirectURI)
		require.NoError(t, err)
		assert.Contains(t, res.URL, "https://github.com/login/oauth/authorize?")
		assert.Contains(t, res.URL, "state="+res.State)

		data, err := f.states.Consume(context.Background(), "github", res.State)
		require.NoError(t, err)
		assert.Equal(t, state.ModeLogin, data.Mode)
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.settings.On("ProviderSettings", mock.Anything, "github").
			Return(provider.Settings{ClientID: "id", ClientSecret: "secret"}, nil)
		f.settings.On("OAuthEnabled", mock.Anything).Return(false, nil)

		_, err := f.svc.Authorize(context.Background(), "github", state.ModeLogin, uuid.Nil, redirectURI)
		assert.ErrorIs(t, err, oauth.ErrOAuthDisabled)
	})

	t.Run("malformed identifier rejected before any lookup", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		_, err := f.svc.Authorize(context.Background(), "github'; drop", state.ModeLogin, uuid.Nil, redirectURI)
		assert.ErrorIs(t, err, oauth.ErrInvalidInput)
		f.settings.AssertNotCalled(t, "ProviderSettings", mock.Anything, mock.Anything)
	})

	t.Run("bind mode requires user id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()

		_, err := f.svc.Authorize(context.Background(), "github", state.ModeBind, uuid.Nil, redirectURI)
		assert.ErrorIs(t, err, oauth.ErrInvalidInput)
	})
}

func TestCallbackLogin(t *testing.T) {
	t.Parallel()

	t.Run("provisions user on first login", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		newUser := oauth.User{ID: uuid.New(), Email: "a@x.com", Name: "alice"}
		f.users.On("UserByEmail", mock.Anything, "a@x.com").Return(oauth.User{}, oauth.ErrUserNotFound)
		f.settings.On("RegistrationOpen", mock.Anything).Return(true, nil)
		f.settings.On("AllowedEmailDomains", mock.Anything).Return([]string{}, nil)
		f.prov.On("CreateUser", mock.Anything, mock.MatchedBy(func(u oauth.NewUser) bool {
			return u.Email == "a@x.com" && u.Name == "alice" && u.PasswordHash != ""
		})).Return(newUser, nil)
		f.sessions.On("Issue", mock.Anything, newUser.ID).Return("session-token", nil)

		stateToken := f.startFlow(t, state.ModeLogin, uuid.Nil)
		res, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		require.NoError(t, err)
		assert.Equal(t, state.ModeLogin, res.Mode)
		assert.Equal(t, "session-token", res.SessionToken)
		assert.Equal(t, newUser.ID, res.UserID)

		b, err := f.bindings.FindByExternal(context.Background(), "github", "42")
		require.NoError(t, err)
		assert.Equal(t, newUser.ID, b.UserID)
		assert.Equal(t, "at", b.AccessToken)
	})

	t.Run("existing binding logs in without provisioning", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		user7 := oauth.User{ID: uuid.New(), Email: "a@x.com"}
		_, err := f.bindings.Bind(context.Background(), binding.BindParams{
			UserID: user7.ID, Provider: "github", ExternalID: "42", AccessToken: "stale",
		})
		require.NoError(t, err)

		f.users.On("UserByID", mock.Anything, user7.ID).Return(user7, nil)
		f.sessions.On("Issue", mock.Anything, user7.ID).Return("session-7", nil)

		stateToken := f.startFlow(t, state.ModeLogin, uuid.Nil)
		res, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		require.NoError(t, err)
		assert.Equal(t, "session-7", res.SessionToken)
		assert.Equal(t, user7.ID, res.UserID)
		f.prov.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)

		// Login refreshed the stored tokens.
		b, err := f.bindings.FindByExternal(context.Background(), "github", "42")
		require.NoError(t, err)
		assert.Equal(t, "at", b.AccessToken)
	})

	t.Run("existing email binds to existing account", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		existing := oauth.User{ID: uuid.New(), Email: "a@x.com"}
		f.users.On("UserByEmail", mock.Anything, "a@x.com").Return(existing, nil)
		f.sessions.On("Issue", mock.Anything, existing.ID).Return("session-e", nil)

		stateToken := f.startFlow(t, state.ModeLogin, uuid.Nil)
		res, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		require.NoError(t, err)
		assert.Equal(t, existing.ID, res.UserID)
		f.prov.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("email required", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(profile.Profile{ExternalID: "42", Name: "alice"})

		stateToken := f.startFlow(t, state.ModeLogin, uuid.Nil)
		_, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		assert.ErrorIs(t, err, oauth.ErrEmailRequired)
	})

	t.Run("registration closed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())
		f.users.On("UserByEmail", mock.Anything, "a@x.com").Return(oauth.User{}, oauth.ErrUserNotFound)
		f.settings.On("RegistrationOpen", mock.Anything).Return(false, nil)

		stateToken := f.startFlow(t, state.ModeLogin, uuid.Nil)
		_, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		assert.ErrorIs(t, err, oauth.ErrRegistrationClosed)
	})

	t.Run("domain not allowed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())
		f.users.On("UserByEmail", mock.Anything, "a@x.com").Return(oauth.User{}, oauth.ErrUserNotFound)
		f.settings.On("RegistrationOpen", mock.Anything).Return(true, nil)
		f.settings.On("AllowedEmailDomains", mock.Anything).Return([]string{"corp.example.com"}, nil)

		stateToken := f.startFlow(t, state.ModeLogin, uuid.Nil)
		_, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		assert.ErrorIs(t, err, oauth.ErrDomainNotAllowed)
	})

	t.Run("banned user cannot log in", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		banned := oauth.User{ID: uuid.New(), Banned: true}
		_, err := f.bindings.Bind(context.Background(), binding.BindParams{
			UserID: banned.ID, Provider: "github", ExternalID: "42",
		})
		require.NoError(t, err)
		f.users.On("UserByID", mock.Anything, banned.ID).Return(banned, nil)

		stateToken := f.startFlow(t, state.ModeLogin, uuid.Nil)
		_, err = f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		assert.ErrorIs(t, err, oauth.ErrUserUnavailable)
		f.sessions.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	})
}

func TestCallbackBind(t *testing.T) {
	t.Parallel()

	t.Run("binds identity to caller", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		user := oauth.User{ID: uuid.New()}
		f.users.On("UserByID", mock.Anything, user.ID).Return(user, nil)

		stateToken := f.startFlow(t, state.ModeBind, user.ID)
		res, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		require.NoError(t, err)
		assert.Equal(t, state.ModeBind, res.Mode)
		assert.Equal(t, user.ID, res.Binding.UserID)
		assert.Empty(t, res.SessionToken)
	})

	t.Run("external identity owned by another user", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		user9 := uuid.New()
		original, err := f.bindings.Bind(context.Background(), binding.BindParams{
			UserID: user9, Provider: "github", ExternalID: "42", AccessToken: "at9",
		})
		require.NoError(t, err)

		user7 := oauth.User{ID: uuid.New()}
		f.users.On("UserByID", mock.Anything, user7.ID).Return(user7, nil)

		stateToken := f.startFlow(t, state.ModeBind, user7.ID)
		_, err = f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		assert.ErrorIs(t, err, oauth.ErrExternalAlreadyBound)

		// The original owner keeps the binding untouched, and no row
		// appeared for the second caller.
		got, err := f.bindings.FindByExternal(context.Background(), "github", "42")
		require.NoError(t, err)
		assert.Equal(t, original.ID, got.ID)
		assert.Equal(t, user9, got.UserID)
		assert.Equal(t, "at9", got.AccessToken)

		list, err := f.bindings.ListByUser(context.Background(), user7.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("deleted user cannot bind", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		gone := oauth.User{ID: uuid.New(), Deleted: true}
		f.users.On("UserByID", mock.Anything, gone.ID).Return(gone, nil)

		stateToken := f.startFlow(t, state.ModeBind, gone.ID)
		_, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		assert.ErrorIs(t, err, oauth.ErrUserUnavailable)
	})
}

func TestCallbackStateHandling(t *testing.T) {
	t.Parallel()

	t.Run("state is single use", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		user := oauth.User{ID: uuid.New()}
		f.users.On("UserByID", mock.Anything, user.ID).Return(user, nil)

		stateToken := f.startFlow(t, state.ModeBind, user.ID)
		params := oauth.CallbackParams{Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI}

		_, err := f.svc.Callback(context.Background(), params)
		require.NoError(t, err)

		_, err = f.svc.Callback(context.Background(), params)
		assert.ErrorIs(t, err, oauth.ErrStateInvalid)
	})

	t.Run("concurrent callbacks with one state produce one success", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		user := oauth.User{ID: uuid.New()}
		f.users.On("UserByID", mock.Anything, user.ID).Return(user, nil)

		stateToken := f.startFlow(t, state.ModeBind, user.ID)
		params := oauth.CallbackParams{Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI}

		const callers = 8
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			wins   int
			losses int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Callback(context.Background(), params)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if assert.ErrorIs(t, err, oauth.ErrStateInvalid) {
					losses++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		assert.Equal(t, callers-1, losses)
	})

	t.Run("missing params leave state intact", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		user := oauth.User{ID: uuid.New()}
		f.users.On("UserByID", mock.Anything, user.ID).Return(user, nil)

		stateToken := f.startFlow(t, state.ModeBind, user.ID)

		_, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", State: stateToken, RedirectURI: redirectURI,
		})
		assert.ErrorIs(t, err, oauth.ErrInvalidInput)

		// The full callback still succeeds afterwards.
		_, err = f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		assert.NoError(t, err)
	})

	t.Run("provider error param burns state", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()

		stateToken := f.startFlow(t, state.ModeLogin, uuid.Nil)

		_, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Provider: "github", State: stateToken, ErrorParam: "access_denied", RedirectURI: redirectURI,
		})
		assert.ErrorIs(t, err, oauth.ErrTokenExchangeFailed)

		_, err = f.states.Consume(context.Background(), "github", stateToken)
		assert.ErrorIs(t, err, state.ErrStateNotFound)
	})

	t.Run("provider resolved from state record when route has none", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()
		f.expectExchange(githubProfile())

		user := oauth.User{ID: uuid.New()}
		f.users.On("UserByID", mock.Anything, user.ID).Return(user, nil)

		stateToken := f.startFlow(t, state.ModeBind, user.ID)
		res, err := f.svc.Callback(context.Background(), oauth.CallbackParams{
			Code: "abc", State: stateToken, RedirectURI: redirectURI,
		})
		require.NoError(t, err)
		assert.Equal(t, "github", res.Binding.Provider)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("updates stored tokens and keeps refresh token", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.settings.On("ProviderSettings", mock.Anything, "github").
			Return(provider.Settings{ClientID: "id", ClientSecret: "secret"}, nil)

		userID := uuid.New()
		_, err := f.bindings.Bind(context.Background(), binding.BindParams{
			UserID: userID, Provider: "github", ExternalID: "42",
			AccessToken: "old-at", RefreshToken: "rt",
		})
		require.NoError(t, err)

		expiresAt := time.Now().Add(time.Hour)
		f.exch.On("Refresh", mock.Anything, mock.Anything, "rt").
			Return(exchange.TokenSet{AccessToken: "new-at", RefreshToken: "rt", ExpiresAt: &expiresAt}, nil)

		res, err := f.svc.Refresh(context.Background(), userID, "github")
		require.NoError(t, err)
		assert.Equal(t, "new-at", res.AccessToken)
		require.NotNil(t, res.ExpiresAt)

		b, err := f.bindings.FindByUserProvider(context.Background(), userID, "github")
		require.NoError(t, err)
		assert.Equal(t, "new-at", b.AccessToken)
		assert.Equal(t, "rt", b.RefreshToken)
	})

	t.Run("no binding", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.settings.On("ProviderSettings", mock.Anything, "github").
			Return(provider.Settings{ClientID: "id", ClientSecret: "secret"}, nil)

		_, err := f.svc.Refresh(context.Background(), uuid.New(), "github")
		assert.ErrorIs(t, err, oauth.ErrBindingNotFound)
	})

	t.Run("no refresh token stored", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.settings.On("ProviderSettings", mock.Anything, "github").
			Return(provider.Settings{ClientID: "id", ClientSecret: "secret"}, nil)

		userID := uuid.New()
		_, err := f.bindings.Bind(context.Background(), binding.BindParams{
			UserID: userID, Provider: "github", ExternalID: "42", AccessToken: "at",
		})
		require.NoError(t, err)

		_, err = f.svc.Refresh(context.Background(), userID, "github")
		assert.ErrorIs(t, err, oauth.ErrNoRefreshToken)
	})
}

func TestBindingsAndUnbind(t *testing.T) {
	t.Parallel()

	t.Run("list is redacted", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := uuid.New()
		_, err := f.bindings.Bind(context.Background(), binding.BindParams{
			UserID: userID, Provider: "github", ExternalID: "42",
			Email: "a@x.com", AccessToken: "secret-at", RefreshToken: "secret-rt",
		})
		require.NoError(t, err)

		list, err := f.svc.Bindings(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "github", list[0].Provider)
		assert.Equal(t, "42", list[0].ExternalID)
		assert.Equal(t, "a@x.com", list[0].Email)
	})

	t.Run("unbind is idempotent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		userID := uuid.New()
		_, err := f.bindings.Bind(context.Background(), binding.BindParams{
			UserID: userID, Provider: "github", ExternalID: "42",
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.Unbind(context.Background(), userID, "github"))
		require.NoError(t, f.svc.Unbind(context.Background(), userID, "github"))
	})

	t.Run("unbind validates identifier", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		err := f.svc.Unbind(context.Background(), uuid.New(), "github'; drop")
		assert.ErrorIs(t, err, oauth.ErrInvalidInput)
	})
}

func TestBindDirect(t *testing.T) {
	t.Parallel()

	t.Run("binds validated profile", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()

		user := oauth.User{ID: uuid.New()}
		f.users.On("UserByID", mock.Anything, user.ID).Return(user, nil)

		info, err := f.svc.BindDirect(context.Background(), user.ID, "github", githubProfile())
		require.NoError(t, err)
		assert.Equal(t, "github", info.Provider)
		assert.Equal(t, "42", info.ExternalID)
	})

	t.Run("rejects profile without external id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.withGitHub()

		_, err := f.svc.BindDirect(context.Background(), uuid.New(), "github", profile.Profile{Email: "a@x.com"})
		assert.ErrorIs(t, err, oauth.ErrProfileIncomplete)
	})
}
