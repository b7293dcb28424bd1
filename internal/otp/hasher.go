package otp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"creator-auth/internal/config"
	"creator-auth/internal/util"
)

// Hasher computes the secret-keyed commitment stored in place of a plaintext code.
// It is immutable and safe for concurrent use.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// ComputeDigest returns hex(HMAC-SHA256(secret, normalizedEmail + ":" + code)).
func (h *Hasher) ComputeDigest(email, code string) (string, error) {
	if h == nil || len(h.secret) == 0 {
		return "", fmt.Errorf("%w: otp secret is not set", config.ErrConfiguration)
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(util.NormalizeEmail(email)))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the digest for a submitted code and compares it with the stored one
// in constant time.
func (h *Hasher) Verify(email, code, storedDigest string) (bool, error) {
	digest, err := h.ComputeDigest(email, code)
	if err != nil {
		return false, err
	}
	return DigestsEqual(digest, storedDigest), nil
}

// DigestsEqual compares two hex-encoded digests. Length is not secret, so unequal lengths
// return early; equal-length inputs are compared without data-dependent branching.
func DigestsEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	rawA, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	rawB, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(rawA, rawB) == 1
}
