package domain

import "time"

// Session binds an opaque session ID to a user identity with absolute expiry
// and optional client-fingerprint binding. The JSON field names are the
// persisted-state contract and must survive any storage backend swap.
type Session struct {
	ID         string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Picture    string    `json:"picture,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	ExpiresAt  time.Time `json:"expires_at"`
	IPHash     string    `json:"ip_hash,omitempty"`
	UAHash     string    `json:"ua_hash,omitempty"`
}

// Identity is the profile snapshot returned by a successful validation.
// It is denormalized at login time and never refreshed from the identity
// provider afterwards.
type Identity struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

func (s *Session) Identity() Identity {
	return Identity{
		UserID:  s.UserID,
		Email:   s.Email,
		Name:    s.Name,
		Picture: s.Picture,
	}
}

// IsExpired reports whether the absolute expiry has passed at t.
func (s *Session) IsExpired(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}

// Deletion reasons carried on audit events.
const (
	ReasonLogout            = "logout"
	ReasonExpired           = "expired"
	ReasonSecurityViolation = "security_violation"
	ReasonInactivitySweep   = "inactivity_sweep"
)
