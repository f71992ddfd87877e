package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/Bouza1/cloned-it/internal/domain"
	"github.com/Bouza1/cloned-it/internal/http/response"
	"github.com/Bouza1/cloned-it/internal/security"
	"github.com/Bouza1/cloned-it/internal/service"
)

type contextKey string

const identityContextKey contextKey = "identity"

// SessionAuth gates a route on a valid session cookie. On success the
// identity snapshot is attached to the request context; expiry and
// fingerprint mismatches surface as 401, a store outage as 503, never
// conflated.
func SessionAuth(sessions service.SessionManagerInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := security.GetCookie(r, security.SessionCookieName)
			if sessionID == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
				return
			}
			identity, err := sessions.Validate(r.Context(), sessionID, ClientIP(r), r.UserAgent())
			if err != nil {
				if service.IsInvalidSession(err) {
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session")
					return
				}
				response.Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "session store unavailable")
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*domain.Identity)
	return id, ok
}

// ClientIP returns the request's client IP without the port. Runs behind
// chi's RealIP middleware, so RemoteAddr already reflects forwarded headers.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
