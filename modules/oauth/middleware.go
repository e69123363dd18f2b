package oauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/oauthflow/handler"
)

// userIDKey carries the authenticated user id through the request context.
var userIDKey = handler.NewContextKey("oauth.user_id")

// requireSession authenticates the request with a bearer session token and
// stores the resolved user id in the context.
func (m *Module) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
			return
		}

		userID, err := m.sessions.Verify(r.Context(), token)
		if err != nil {
			_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// currentUser reads the user id stored by requireSession.
func currentUser(ctx context.Context) (uuid.UUID, bool) {
	return handler.ContextValueOK[uuid.UUID](ctx, userIDKey)
}
