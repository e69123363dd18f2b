package oauth

import (
	"errors"

	"github.com/dmitrymomot/oauthflow/binder"
	"github.com/dmitrymomot/oauthflow/handler"
	"github.com/dmitrymomot/oauthflow/pkg/logger"
	oauthsvc "github.com/dmitrymomot/oauthflow/svc/oauth"
)

// httpError maps flow errors to transport errors in one place so every
// endpoint reports the same status for the same condition.
func httpError(err error) handler.HTTPError {
	switch {
	case errors.Is(err, oauthsvc.ErrInvalidInput):
		return handler.NewHTTPError(400, "invalid_input")
	case errors.Is(err, oauthsvc.ErrStateInvalid):
		return handler.NewHTTPError(400, "state_invalid")
	case errors.Is(err, oauthsvc.ErrOAuthDisabled):
		return handler.NewHTTPError(403, "oauth_disabled")
	case errors.Is(err, oauthsvc.ErrUserUnavailable):
		return handler.NewHTTPError(403, "user_unavailable")
	case errors.Is(err, oauthsvc.ErrRegistrationClosed):
		return handler.NewHTTPError(403, "registration_closed")
	case errors.Is(err, oauthsvc.ErrDomainNotAllowed):
		return handler.NewHTTPError(403, "domain_not_allowed")
	case errors.Is(err, oauthsvc.ErrUnknownProvider):
		return handler.NewHTTPError(404, "unknown_provider")
	case errors.Is(err, oauthsvc.ErrBindingNotFound):
		return handler.NewHTTPError(404, "binding_not_found")
	case errors.Is(err, oauthsvc.ErrAlreadyBound):
		return handler.NewHTTPError(409, "already_bound")
	case errors.Is(err, oauthsvc.ErrExternalAlreadyBound):
		return handler.NewHTTPError(409, "external_identity_already_bound")
	case errors.Is(err, oauthsvc.ErrNoRefreshToken):
		return handler.NewHTTPError(409, "no_refresh_token")
	case errors.Is(err, oauthsvc.ErrEmailRequired):
		return handler.NewHTTPError(422, "email_required")
	case errors.Is(err, oauthsvc.ErrProfileIncomplete):
		return handler.NewHTTPError(422, "profile_incomplete")
	case errors.Is(err, oauthsvc.ErrTokenExchangeFailed):
		return handler.NewHTTPError(502, "token_exchange_failed")
	case errors.Is(err, oauthsvc.ErrProfileFetchFailed):
		return handler.NewHTTPError(502, "profile_fetch_failed")
	case errors.Is(err, oauthsvc.ErrProviderNotConfigured):
		return handler.NewHTTPError(503, "provider_not_configured")
	default:
		return handler.ErrInternalServerError
	}
}

// jsonErrorHandler reports binder failures on the JSON endpoints.
func (m *Module) jsonErrorHandler(ctx handler.Context, err error) {
	httpErr := handler.ErrInternalServerError
	switch {
	case errors.Is(err, binder.ErrInvalidJSON),
		errors.Is(err, binder.ErrInvalidQuery):
		httpErr = handler.ErrBadRequest
	case errors.Is(err, binder.ErrMissingContentType),
		errors.Is(err, binder.ErrUnsupportedMediaType):
		httpErr = handler.NewHTTPError(415, "unsupported_media_type")
	default:
		m.log.ErrorContext(ctx, "request failed", logger.Error(err))
	}
	_ = handler.JSONError(httpErr).Render(ctx.ResponseWriter(), ctx.Request())
}

// htmlErrorHandler reports binder failures on the callback route, which must
// always answer with a browser-renderable page.
func (m *Module) htmlErrorHandler(ctx handler.Context, err error) {
	m.log.WarnContext(ctx, "callback request rejected", logger.Error(err))
	page := m.failurePage("invalid callback request")
	_ = handler.HTML(page, handler.WithHTMLStatus(400)).Render(ctx.ResponseWriter(), ctx.Request())
}
