// Package oauth exposes the OAuth flows over HTTP: login/bind authorization,
// the browser callback page, and binding management for authenticated users.
package oauth

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/oauthflow/binder"
	"github.com/dmitrymomot/oauthflow/handler"
	oauthsvc "github.com/dmitrymomot/oauthflow/svc/oauth"
)

// Config holds the HTTP-surface settings.
type Config struct {
	// BaseURL overrides the origin used to build the callback redirect URI.
	// When empty the origin is reconstructed from the incoming request.
	BaseURL string `env:"OAUTH_BASE_URL"`
	// CallbackPath is the fixed path the provider redirects back to.
	CallbackPath string `env:"OAUTH_CALLBACK_PATH" envDefault:"/auth/oauth/callback"`
	// LoginRedirect is where the callback page sends the browser after a
	// successful login.
	LoginRedirect string `env:"OAUTH_LOGIN_REDIRECT" envDefault:"/"`
}

// SessionVerifier resolves bearer tokens to user ids.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

// Module wires the oauth service into HTTP routes.
type Module struct {
	svc      *oauthsvc.Service
	sessions SessionVerifier
	cfg      Config
	log      *slog.Logger
}

// Option configures the Module.
type Option func(*Module)

// WithLogger supplies a logger; without it logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(m *Module) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates the HTTP module.
func New(svc *oauthsvc.Service, sessions SessionVerifier, cfg Config, opts ...Option) *Module {
	if svc == nil {
		panic("oauth module: nil service")
	}
	if sessions == nil {
		panic("oauth module: nil session verifier")
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/auth/oauth/callback"
	}
	if cfg.LoginRedirect == "" {
		cfg.LoginRedirect = "/"
	}

	m := &Module{
		svc:      svc,
		sessions: sessions,
		cfg:      cfg,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle builds the module router. Mount it at the server root: the public
// routes live under /auth/oauth, the authenticated ones under /oauth.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Route("/auth/oauth", func(pub chi.Router) {
		pub.Post("/login", handler.Wrap(m.login,
			handler.WithBinders[handler.Context, authorizeRequest](binder.JSON()),
			handler.WithErrorHandler[handler.Context, authorizeRequest](m.jsonErrorHandler),
		))
		pub.Get("/callback", handler.Wrap(m.callback,
			handler.WithBinders[handler.Context, callbackRequest](binder.Query()),
			handler.WithErrorHandler[handler.Context, callbackRequest](m.htmlErrorHandler),
		))
	})

	r.Route("/oauth", func(priv chi.Router) {
		priv.Use(m.requireSession)
		priv.Post("/authorize", handler.Wrap(m.authorize,
			handler.WithBinders[handler.Context, authorizeRequest](binder.JSON()),
			handler.WithErrorHandler[handler.Context, authorizeRequest](m.jsonErrorHandler),
		))
		priv.Get("/bindings", handler.Wrap(m.bindings,
			handler.WithErrorHandler[handler.Context, struct{}](m.jsonErrorHandler),
		))
		priv.Post("/bind", handler.Wrap(m.bind,
			handler.WithBinders[handler.Context, bindRequest](binder.JSON()),
			handler.WithErrorHandler[handler.Context, bindRequest](m.jsonErrorHandler),
		))
		priv.Delete("/unbind", handler.Wrap(m.unbind,
			handler.WithBinders[handler.Context, unbindRequest](binder.Query()),
			handler.WithErrorHandler[handler.Context, unbindRequest](m.jsonErrorHandler),
		))
		priv.Post("/refresh", handler.Wrap(m.refresh,
			handler.WithBinders[handler.Context, authorizeRequest](binder.JSON()),
			handler.WithErrorHandler[handler.Context, authorizeRequest](m.jsonErrorHandler),
		))
	})

	return r
}

// redirectURI reconstructs the absolute callback URI the provider must
// redirect to, preferring the configured base URL over request inspection.
func (m *Module) redirectURI(r *http.Request) string {
	if m.cfg.BaseURL != "" {
		return m.cfg.BaseURL + m.cfg.CallbackPath
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + m.cfg.CallbackPath
}
