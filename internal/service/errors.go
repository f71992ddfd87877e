package service

import "errors"

// Session error taxonomy. All are terminal for the presented session except
// ErrStoreUnavailable, which the caller may retry with backoff and must
// never treat as "not logged in".
var (
	ErrMissingField      = errors.New("missing required field")
	ErrNotFound          = errors.New("session not found")
	ErrExpired           = errors.New("session expired")
	ErrIPMismatch        = errors.New("session ip mismatch")
	ErrUserAgentMismatch = errors.New("session user-agent mismatch")
	ErrStoreUnavailable  = errors.New("session store unavailable")
)

// IsSecurityViolation reports whether err is a fingerprint mismatch, the
// only error class audited at elevated severity.
func IsSecurityViolation(err error) bool {
	return errors.Is(err, ErrIPMismatch) || errors.Is(err, ErrUserAgentMismatch)
}

// IsInvalidSession reports whether err means the caller must treat the
// request as unauthenticated (as opposed to an infrastructure failure).
func IsInvalidSession(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) || IsSecurityViolation(err)
}
