package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Prefix identifies the HMAC-SHA256 signature scheme on the wire.
const Prefix = "sha256="

// Sign computes the signature for the exact raw payload bytes:
// "sha256=" + hex(HMAC-SHA256(payload, secret)).
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// IsValid verifies a presented signature against the raw payload using
// constant-time comparison. Any mismatch (wrong prefix, wrong length,
// wrong bytes) is a uniform false; callers must not distinguish reasons
// in client-visible behavior.
func IsValid(payload []byte, secret, presented string) bool {
	expected := Sign(payload, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
