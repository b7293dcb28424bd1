package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"creator-auth/internal/model"
	"creator-auth/internal/util"
)

// CommitmentRepository stores OTP commitments in the otp_commitments table, one row per
// normalized email. Rows carry a TTL matching the commitment expiry.
type CommitmentRepository struct {
	client *ScyllaClient
	now    func() time.Time
}

func NewCommitmentRepository(client *ScyllaClient) *CommitmentRepository {
	return &CommitmentRepository{client: client, now: time.Now}
}

func (r *CommitmentRepository) Upsert(ctx context.Context, commitment *model.OTPCommitment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	email := util.NormalizeEmail(commitment.EmailNormalized)
	query := r.client.Query(ctx, r.client.Statements.UpsertCommitment,
		email, commitment.CodeDigest, commitment.ExpiresAt.UTC(), commitment.LastSentAt.UTC(),
		rowTTL(commitment.ExpiresAt, r.now()))

	if err := r.client.ExecuteWithRetry(ctx, query, 2); err != nil {
		util.Error("Failed to store OTP commitment",
			util.String("email_hash", util.EmailHash(email)),
			util.ErrorField(err))
		return fmt.Errorf("failed to store OTP commitment: %w", err)
	}
	return nil
}

func (r *CommitmentRepository) Get(ctx context.Context, email string) (*model.OTPCommitment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c := &model.OTPCommitment{}
	query := r.client.Query(ctx, r.client.Statements.GetCommitment, util.NormalizeEmail(email))
	err := r.client.ScanWithRetry(ctx, query, &c.EmailNormalized, &c.CodeDigest, &c.ExpiresAt, &c.LastSentAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, model.ErrCommitmentNotFound
		}
		return nil, fmt.Errorf("failed to get OTP commitment: %w", err)
	}
	return c, nil
}

func (r *CommitmentRepository) Delete(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := r.client.Query(ctx, r.client.Statements.DeleteCommitment, util.NormalizeEmail(email))
	if err := r.client.ExecuteWithRetry(ctx, query, 2); err != nil {
		return fmt.Errorf("failed to delete OTP commitment: %w", err)
	}
	return nil
}

func (r *CommitmentRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

// rowTTL is the CQL TTL in seconds, rounded up and never below one.
func rowTTL(expiresAt, now time.Time) int {
	remaining := expiresAt.Sub(now)
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
