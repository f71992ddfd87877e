package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// sessionIDBytes yields 256 bits of entropy per session ID. Collision
// probability is treated as zero; uniqueness is never re-checked.
const sessionIDBytes = 32

// NewSessionID returns a cryptographically random, URL-safe session
// identifier. The full value must never be logged; use LogPrefix.
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// LogPrefix returns the loggable 8-character prefix of a session ID or other
// sensitive token. The remainder must never reach a log sink.
func LogPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
