package otp

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-auth/internal/config"
)

const testSecret = "otp-test-secret"

func TestComputeDigestIsHMACHex(t *testing.T) {
	h := NewHasher(testSecret)

	digest, err := h.ComputeDigest("user@example.com", "123456")
	require.NoError(t, err)

	raw, err := hex.DecodeString(digest)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, strings.ToLower(digest), digest)
}

func TestComputeDigestNormalizesEmail(t *testing.T) {
	h := NewHasher(testSecret)
	code := "048213"

	base, err := h.ComputeDigest("user@example.com", code)
	require.NoError(t, err)

	for _, variant := range []string{"User@Example.com ", "  USER@EXAMPLE.COM", "user@example.com\n"} {
		d, err := h.ComputeDigest(variant, code)
		require.NoError(t, err)
		assert.True(t, DigestsEqual(base, d), "variant %q", variant)
	}
}

func TestComputeDigestDistinctCodes(t *testing.T) {
	h := NewHasher(testSecret)

	d1, err := h.ComputeDigest("user@example.com", "111111")
	require.NoError(t, err)
	d2, err := h.ComputeDigest("user@example.com", "111112")
	require.NoError(t, err)

	assert.False(t, DigestsEqual(d1, d2))
}

func TestComputeDigestDependsOnSecret(t *testing.T) {
	d1, err := NewHasher("secret-a").ComputeDigest("user@example.com", "123456")
	require.NoError(t, err)
	d2, err := NewHasher("secret-b").ComputeDigest("user@example.com", "123456")
	require.NoError(t, err)

	assert.False(t, DigestsEqual(d1, d2))
}

func TestComputeDigestWithoutSecret(t *testing.T) {
	_, err := NewHasher("").ComputeDigest("user@example.com", "123456")
	assert.ErrorIs(t, err, config.ErrConfiguration)

	var nilHasher *Hasher
	_, err = nilHasher.ComputeDigest("user@example.com", "123456")
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestRequestAndVerifyDigestsMatchAcrossCasing(t *testing.T) {
	h := NewHasher(testSecret)
	code, err := GenerateCode()
	require.NoError(t, err)

	stored, err := h.ComputeDigest("User@Example.com ", code)
	require.NoError(t, err)

	ok, err := h.Verify("user@example.com", code, stored)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDigestsEqual(t *testing.T) {
	a := hex.EncodeToString([]byte{0xde, 0xad, 0xbe, 0xef})

	assert.True(t, DigestsEqual(a, a))
	assert.True(t, DigestsEqual(a, strings.ToUpper(a)))
	assert.False(t, DigestsEqual(a, hex.EncodeToString([]byte{0xde, 0xad, 0xbe, 0xee})))
	assert.False(t, DigestsEqual(a, hex.EncodeToString([]byte{0x00, 0xad, 0xbe, 0xef})))
}

func TestDigestsEqualDifferentLengths(t *testing.T) {
	assert.False(t, DigestsEqual("abcd", "abcdef"))
	assert.False(t, DigestsEqual("", "00"))
	assert.False(t, DigestsEqual("abc", "abcd"))
}

func TestDigestsEqualInvalidHex(t *testing.T) {
	assert.False(t, DigestsEqual("zz", "zz"))
	assert.False(t, DigestsEqual("abc", "abc"))
}
