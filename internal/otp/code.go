package otp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// CodeLength is the number of decimal digits in a one-time code.
	CodeLength = 6

	codeSpace = 1_000_000
	// Largest multiple of codeSpace that fits in a uint32; draws at or above it are rejected
	// so every code in [0, codeSpace) is equally likely.
	rejectionLimit = (1 << 32) / codeSpace * codeSpace
)

// GenerateCode returns a uniformly distributed, left-zero-padded 6-digit code drawn from
// crypto/rand.
func GenerateCode() (string, error) {
	return GenerateCodeFrom(rand.Reader)
}

// GenerateCodeFrom draws a code from r, which must be a cryptographically secure source
// outside of tests.
func GenerateCodeFrom(r io.Reader) (string, error) {
	var buf [4]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		v := binary.BigEndian.Uint32(buf[:])
		if uint64(v) < rejectionLimit {
			return fmt.Sprintf("%0*d", CodeLength, v%codeSpace), nil
		}
	}
}

// ValidCodeFormat reports whether code is exactly CodeLength ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
