package handler

import (
	"net/http"

	"github.com/Bouza1/cloned-it/internal/http/middleware"
	"github.com/Bouza1/cloned-it/internal/http/response"
	"github.com/Bouza1/cloned-it/internal/service"
)

type SessionHandler struct {
	stats service.SessionStatsInterface
}

func NewSessionHandler(stats service.SessionStatsInterface) *SessionHandler {
	return &SessionHandler{stats: stats}
}

// Me returns the identity snapshot attached by the session middleware.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "no session identity")
		return
	}
	response.JSON(w, r, http.StatusOK, identity)
}

// SessionsOverview reports stored-session counts for monitoring.
func (h *SessionHandler) SessionsOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.stats.Overview(r.Context())
	if err != nil {
		response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "session store unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, ov)
}
