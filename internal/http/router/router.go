package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Bouza1/cloned-it/internal/http/handler"
	"github.com/Bouza1/cloned-it/internal/http/middleware"
	"github.com/Bouza1/cloned-it/internal/http/response"
	"github.com/Bouza1/cloned-it/internal/repository"
	"github.com/Bouza1/cloned-it/internal/service"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	SessionHandler *handler.SessionHandler
	SessionManager service.SessionManagerInterface
	Store          repository.SessionStore
	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Store != nil {
			if err := dep.Store.Ping(r.Context()); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "session store is not reachable")
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", dep.AuthHandler.GoogleLogin)
		r.Get("/google/callback", dep.AuthHandler.GoogleCallback)
		r.Post("/logout", dep.AuthHandler.Logout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionAuth(dep.SessionManager))
		r.Get("/me", dep.SessionHandler.Me)
		r.Get("/admin/sessions/overview", dep.SessionHandler.SessionsOverview)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
