package otp

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uint32Bytes(values ...uint32) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}
	return buf.Bytes()
}

func TestGenerateCodeFormat(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.True(t, ValidCodeFormat(code), "code %q", code)
	}
}

func TestGenerateCodeCoversFullRange(t *testing.T) {
	cases := []struct {
		draw uint32
		want string
	}{
		{0, "000000"},
		{42, "000042"},
		{999_999, "999999"},
		{1_000_000, "000000"},
		{rejectionLimit - 1, "999999"},
	}
	for _, tc := range cases {
		code, err := GenerateCodeFrom(bytes.NewReader(uint32Bytes(tc.draw)))
		require.NoError(t, err)
		assert.Equal(t, tc.want, code, "draw %d", tc.draw)
	}
}

func TestGenerateCodeRejectsBiasedTail(t *testing.T) {
	// The first draw falls in the rejected tail, so the second one is used.
	r := bytes.NewReader(uint32Bytes(rejectionLimit, 7))
	code, err := GenerateCodeFrom(r)
	require.NoError(t, err)
	assert.Equal(t, "000007", code)
}

func TestGenerateCodeShortRead(t *testing.T) {
	_, err := GenerateCodeFrom(bytes.NewReader([]byte{0x01}))
	assert.Error(t, err)
}

func TestValidCodeFormat(t *testing.T) {
	assert.True(t, ValidCodeFormat("000000"))
	assert.True(t, ValidCodeFormat("123456"))
	assert.False(t, ValidCodeFormat("12345"))
	assert.False(t, ValidCodeFormat("1234567"))
	assert.False(t, ValidCodeFormat("12a456"))
	assert.False(t, ValidCodeFormat("１２３４５６"))
}
