package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"creator-auth/internal/client"
	"creator-auth/internal/model"
	"creator-auth/internal/util"
)

const (
	commitmentPrefix = "otp_commitment:"

	fieldDigest     = "digest"
	fieldExpiresAt  = "expires_at"
	fieldLastSentAt = "last_sent_at"
)

// CommitmentStore keeps one hash per normalized email. The key expires together with the
// commitment, so Redis handles expiry cleanup.
type CommitmentStore struct {
	client *client.RedisClient
}

func NewCommitmentStore(client *client.RedisClient) *CommitmentStore {
	return &CommitmentStore{client: client}
}

func (s *CommitmentStore) Upsert(ctx context.Context, commitment *model.OTPCommitment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	email := util.NormalizeEmail(commitment.EmailNormalized)
	key := commitmentPrefix + email

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		fieldDigest, commitment.CodeDigest,
		fieldExpiresAt, strconv.FormatInt(commitment.ExpiresAt.UnixMilli(), 10),
		fieldLastSentAt, strconv.FormatInt(commitment.LastSentAt.UnixMilli(), 10),
	)
	pipe.PExpireAt(ctx, key, commitment.ExpiresAt)

	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to store OTP commitment",
			zap.String("email_hash", util.EmailHash(email)),
			zap.Error(err))
		return fmt.Errorf("failed to store OTP commitment: %w", err)
	}

	util.Debug("OTP commitment stored",
		zap.String("email_hash", util.EmailHash(email)),
		zap.Time("expires_at", commitment.ExpiresAt))
	return nil
}

func (s *CommitmentStore) Get(ctx context.Context, email string) (*model.OTPCommitment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	email = util.NormalizeEmail(email)

	fields, err := s.client.HGetAll(ctx, commitmentPrefix+email)
	if err != nil {
		util.Error("Failed to load OTP commitment",
			zap.String("email_hash", util.EmailHash(email)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load OTP commitment: %w", err)
	}
	if len(fields) == 0 || fields[fieldDigest] == "" {
		return nil, model.ErrCommitmentNotFound
	}

	expiresAt, err := parseMillis(fields[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("corrupt OTP commitment expiry: %w", err)
	}
	lastSentAt, err := parseMillis(fields[fieldLastSentAt])
	if err != nil {
		return nil, fmt.Errorf("corrupt OTP commitment send time: %w", err)
	}

	return &model.OTPCommitment{
		EmailNormalized: email,
		CodeDigest:      fields[fieldDigest],
		ExpiresAt:       expiresAt,
		LastSentAt:      lastSentAt,
	}, nil
}

func (s *CommitmentStore) Delete(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	email = util.NormalizeEmail(email)
	if err := s.client.Del(ctx, commitmentPrefix+email); err != nil {
		util.Error("Failed to delete OTP commitment",
			zap.String("email_hash", util.EmailHash(email)),
			zap.Error(err))
		return fmt.Errorf("failed to delete OTP commitment: %w", err)
	}
	return nil
}

func (s *CommitmentStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
