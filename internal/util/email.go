package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net/mail"
	"strings"
)

// NormalizeEmail is the single canonical form used for OTP digests, store keys and
// dev-cache lookups. Every caller must go through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email, once normalized, is a bare RFC 5322 address.
func ValidEmail(email string) bool {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return false
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil {
		return false
	}
	return addr.Address == normalized
}

// EmailHash returns a stable hex reference for an address, safe to put in logs and events.
func EmailHash(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}
