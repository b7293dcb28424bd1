package model

import (
	"context"
	"errors"
	"time"
)

var ErrCommitmentNotFound = errors.New("otp commitment not found")

// -------------------- OTP COMMITMENT --------------------

// OTPCommitment is the server's record of a pending one-time code. At most one is live per
// normalized email; each new request overwrites it.
type OTPCommitment struct {
	EmailNormalized string    `json:"email" db:"email"`
	CodeDigest      string    `json:"code_digest" db:"code_digest"` // hex HMAC-SHA256, never the code
	ExpiresAt       time.Time `json:"expires_at" db:"expires_at"`
	LastSentAt      time.Time `json:"last_sent_at" db:"last_sent_at"`
}

// Expired reports whether the commitment is no longer usable at now.
func (c *OTPCommitment) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// -------------------- AUDIT EVENT --------------------

type EventType string

const (
	EventOTPRequested EventType = "otp.requested"
	EventOTPVerified  EventType = "otp.verified"
	EventOTPRejected  EventType = "otp.rejected"
	EventOTPThrottled EventType = "otp.throttled"
)

// AuthEvent is an audit record. Reason may be more specific than what the caller was told.
type AuthEvent struct {
	ID         string    `json:"id" ch:"id"`
	Type       EventType `json:"type" ch:"type"`
	EmailHash  string    `json:"email_hash" ch:"email_hash"`
	UserID     string    `json:"user_id,omitempty" ch:"user_id"`
	Reason     string    `json:"reason,omitempty" ch:"reason"`
	Bucket     int       `json:"bucket" ch:"bucket"`
	OccurredAt time.Time `json:"occurred_at" ch:"occurred_at"`
}

// -------------------- REPOSITORY INTERFACES --------------------

// CommitmentStore persists OTP commitments keyed by normalized email.
type CommitmentStore interface {
	Upsert(ctx context.Context, commitment *OTPCommitment) error
	Get(ctx context.Context, email string) (*OTPCommitment, error)
	Delete(ctx context.Context, email string) error
	HealthCheck(ctx context.Context) error
}

// AttemptLimiter counts verification attempts within a window.
type AttemptLimiter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}
