package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// fingerprintLen is the number of hex characters kept from the SHA-256
// digest. 64 bits is enough to detect a client change without the stored
// value being reversible to the raw IP or User-Agent.
const fingerprintLen = 16

// Fingerprint returns the short one-way hash used to bind a session to the
// client's IP or User-Agent. Empty input yields an empty fingerprint, which
// stores as "no binding" rather than a hash of the empty string.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// FingerprintEqual compares two fingerprints in constant time.
func FingerprintEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
