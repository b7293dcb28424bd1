package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"User@Example.com ", "user@example.com"},
		{"  USER@EXAMPLE.COM\t", "user@example.com"},
		{"user@example.com", "user@example.com"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeEmail(tc.in), "input %q", tc.in)
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("creator@brand.io"))
	assert.True(t, ValidEmail(" Creator@Brand.io "))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail("Name <creator@brand.io>"))
}

func TestEmailHashIgnoresCasing(t *testing.T) {
	assert.Equal(t, EmailHash("user@example.com"), EmailHash("User@Example.com "))
	assert.Len(t, EmailHash("user@example.com"), 64)
}
