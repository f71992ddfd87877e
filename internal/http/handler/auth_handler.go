package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bouza1/cloned-it/internal/domain"
	"github.com/Bouza1/cloned-it/internal/http/middleware"
	"github.com/Bouza1/cloned-it/internal/http/response"
	"github.com/Bouza1/cloned-it/internal/observability"
	"github.com/Bouza1/cloned-it/internal/security"
	"github.com/Bouza1/cloned-it/internal/service"
)

type AuthHandler struct {
	oauth             service.OAuthServiceInterface
	sessions          service.SessionManagerInterface
	audit             *observability.AuditLogger
	logger            *slog.Logger
	sessionTTL        time.Duration
	cookieSecure      bool
	postLoginRedirect string
}

func NewAuthHandler(oauth service.OAuthServiceInterface, sessions service.SessionManagerInterface, audit *observability.AuditLogger, logger *slog.Logger, sessionTTL time.Duration, cookieSecure bool, postLoginRedirect string) *AuthHandler {
	if postLoginRedirect == "" {
		postLoginRedirect = "/"
	}
	return &AuthHandler{
		oauth:             oauth,
		sessions:          sessions,
		audit:             audit,
		logger:            logger,
		sessionTTL:        sessionTTL,
		cookieSecure:      cookieSecure,
		postLoginRedirect: postLoginRedirect,
	}
}

// GoogleLogin redirects the client to Google's authorization URL.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.oauth.LoginURL()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build login url", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to start login")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// GoogleCallback completes the login: verifies state, exchanges the code,
// creates the session, and sets the session cookie.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if code == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing authorization code")
		return
	}

	sessionID, _, err := h.oauth.HandleCallback(r.Context(), state, code, middleware.ClientIP(r), r.UserAgent())
	switch {
	case errors.Is(err, security.ErrInvalidState):
		response.Error(w, r, http.StatusBadRequest, "INVALID_STATE", "invalid or expired state parameter")
		return
	case errors.Is(err, service.ErrOAuthExchange):
		response.Error(w, r, http.StatusUnauthorized, "OAUTH_FAILED", "authorization code rejected")
		return
	case errors.Is(err, service.ErrStoreUnavailable):
		response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "session store unavailable")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "oauth callback failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed")
		return
	}

	security.SetSessionCookie(w, sessionID, h.sessionTTL, h.cookieSecure)
	http.Redirect(w, r, h.postLoginRedirect, http.StatusFound)
}

// Logout deletes the presented session and clears the cookie. Safe to call
// without a session; the delete is idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := security.GetCookie(r, security.SessionCookieName)
	if sessionID != "" {
		if _, err := h.sessions.Delete(r.Context(), sessionID, domain.ReasonLogout); err != nil {
			response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "session store unavailable")
			return
		}
		h.audit.Emit(r.Context(), observability.EventLogout, observability.SeverityInfo,
			"session_prefix", security.LogPrefix(sessionID))
	}
	security.ClearSessionCookie(w, h.cookieSecure)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}
