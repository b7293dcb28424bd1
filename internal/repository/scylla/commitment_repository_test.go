package scylla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRowTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresAt time.Time
		want      int
	}{
		{"whole minutes", now.Add(10 * time.Minute), 600},
		{"rounds up partial seconds", now.Add(1500 * time.Millisecond), 2},
		{"already expired", now.Add(-time.Second), 1},
		{"expires now", now, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rowTTL(tc.expiresAt, now))
		})
	}
}
