package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Bouza1/cloned-it/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// Overview summarizes the stored session population for the admin stats
// endpoint. Expired sessions are those past their absolute expiry but not
// yet lazily purged.
type Overview struct {
	Total   int64 `json:"total_sessions"`
	Active  int64 `json:"active_sessions"`
	Expired int64 `json:"expired_sessions"`
}

// SessionStore is the key-value persistence boundary for sessions. The
// record layout (domain.Session field names) is the only persisted-state
// contract; implementations are interchangeable behind it.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	// UpdateLastActive performs a single-field write; it must not touch
	// expires_at or any other field.
	UpdateLastActive(ctx context.Context, sessionID string, lastActive time.Time) error
	// Delete is idempotent and reports whether a record was removed.
	Delete(ctx context.Context, sessionID string) (bool, error)
	// DeleteInactiveBefore removes sessions whose last_active is strictly
	// before cutoff, in batches of at most batchSize, and returns the total
	// removed. Partial progress survives a mid-sweep failure.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
	Overview(ctx context.Context, now time.Time) (Overview, error)
	Ping(ctx context.Context) error
}
