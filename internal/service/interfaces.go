package service

import (
	"context"
	"time"

	"github.com/Bouza1/cloned-it/internal/domain"
	"github.com/Bouza1/cloned-it/internal/repository"
)

// Auditor receives structured security events. Satisfied by
// observability.AuditLogger.
type Auditor interface {
	Emit(ctx context.Context, event, severity string, attrs ...any)
}

// SessionManagerInterface is the wire contract the HTTP layer programs
// against.
type SessionManagerInterface interface {
	Create(ctx context.Context, in CreateInput) (string, error)
	Validate(ctx context.Context, sessionID, clientIP, userAgent string) (*domain.Identity, error)
	Delete(ctx context.Context, sessionID, reason string) (bool, error)
	Sweep(ctx context.Context, retention time.Duration) (int64, error)
}

// SessionStatsInterface exposes the stored-session counts for the admin
// overview endpoint.
type SessionStatsInterface interface {
	Overview(ctx context.Context) (repository.Overview, error)
}

// OAuthServiceInterface drives the Google login flow in front of session
// creation.
type OAuthServiceInterface interface {
	LoginURL() (string, error)
	HandleCallback(ctx context.Context, state, code, clientIP, userAgent string) (string, *domain.Identity, error)
}
