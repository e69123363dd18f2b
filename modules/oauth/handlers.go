package oauth

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/oauthflow/handler"
	"github.com/dmitrymomot/oauthflow/pkg/profile"
	"github.com/dmitrymomot/oauthflow/pkg/state"
	oauthsvc "github.com/dmitrymomot/oauthflow/svc/oauth"
)

type authorizeRequest struct {
	Provider string `json:"provider"`
}

type authorizeResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	State            string `json:"state"`
}

type callbackRequest struct {
	Code  string `query:"code"`
	State string `query:"state"`
	Error string `query:"error"`
}

type oauthData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type bindRequest struct {
	Provider  string    `json:"provider"`
	OAuthData oauthData `json:"oauthData"`
}

type unbindRequest struct {
	Provider string `query:"provider"`
}

// login starts the OAuth login flow for anonymous visitors.
func (m *Module) login(ctx handler.Context, req authorizeRequest) handler.Response {
	res, err := m.svc.Authorize(ctx, req.Provider, state.ModeLogin, uuid.Nil, m.redirectURI(ctx.Request()))
	if err != nil {
		return handler.JSONError(httpError(err))
	}
	return handler.JSON(authorizeResponse{AuthorizationURL: res.URL, State: res.State})
}

// authorize starts the bind flow for the authenticated caller.
func (m *Module) authorize(ctx handler.Context, req authorizeRequest) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	res, err := m.svc.Authorize(ctx, req.Provider, state.ModeBind, userID, m.redirectURI(ctx.Request()))
	if err != nil {
		return handler.JSONError(httpError(err))
	}
	return handler.JSON(authorizeResponse{AuthorizationURL: res.URL, State: res.State})
}

// callback completes a flow started by login or authorize. The provider
// redirects the browser here, so the answer is always an HTML page.
func (m *Module) callback(ctx handler.Context, req callbackRequest) handler.Response {
	res, err := m.svc.Callback(ctx, oauthsvc.CallbackParams{
		Code:        req.Code,
		State:       req.State,
		ErrorParam:  req.Error,
		RedirectURI: m.redirectURI(ctx.Request()),
	})
	if err != nil {
		status := httpError(err).Code
		return handler.HTML(m.failurePage(err.Error()), handler.WithHTMLStatus(status))
	}

	if res.Mode == state.ModeBind {
		return handler.HTML(m.bindResultPage(res.Binding.Provider))
	}
	return handler.HTML(m.loginResultPage(res.SessionToken))
}

// bindings lists the caller's external identities, tokens redacted.
func (m *Module) bindings(ctx handler.Context, _ struct{}) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	list, err := m.svc.Bindings(ctx, userID)
	if err != nil {
		return handler.JSONError(httpError(err))
	}
	return handler.JSON(list)
}

// bind attaches an externally-obtained profile to the caller directly.
func (m *Module) bind(ctx handler.Context, req bindRequest) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	info, err := m.svc.BindDirect(ctx, userID, req.Provider, profile.Profile{
		ExternalID: req.OAuthData.ID,
		Email:      req.OAuthData.Email,
		Name:       req.OAuthData.Name,
		AvatarURL:  req.OAuthData.AvatarURL,
	})
	if err != nil {
		return handler.JSONError(httpError(err))
	}
	return handler.JSON(info, handler.WithJSONStatus(http.StatusCreated))
}

// unbind detaches a provider from the caller.
func (m *Module) unbind(ctx handler.Context, req unbindRequest) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	if err := m.svc.Unbind(ctx, userID, req.Provider); err != nil {
		return handler.JSONError(httpError(err))
	}
	return handler.JSON(map[string]bool{"unbound": true})
}

// refresh renews the stored access token for one of the caller's bindings.
func (m *Module) refresh(ctx handler.Context, req authorizeRequest) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return handler.JSONError(handler.ErrUnauthorized)
	}
	res, err := m.svc.Refresh(ctx, userID, req.Provider)
	if err != nil {
		return handler.JSONError(httpError(err))
	}
	return handler.JSON(res)
}
