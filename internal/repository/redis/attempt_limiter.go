package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"creator-auth/internal/client"
	"creator-auth/internal/util"
)

const attemptPrefix = "otp_attempts:"

// AttemptLimiter is a fixed-window counter: the first increment starts the window.
type AttemptLimiter struct {
	client *client.RedisClient
}

func NewAttemptLimiter(client *client.RedisClient) *AttemptLimiter {
	return &AttemptLimiter{client: client}
}

func (l *AttemptLimiter) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := l.client.IncrWithExpire(ctx, attemptPrefix+key, window)
	if err != nil {
		util.Error("Failed to increment OTP attempts", zap.Error(err))
		return 0, fmt.Errorf("failed to increment OTP attempts: %w", err)
	}
	return int(count), nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := l.client.Del(ctx, attemptPrefix+key); err != nil {
		util.Error("Failed to reset OTP attempts", zap.Error(err))
		return fmt.Errorf("failed to reset OTP attempts: %w", err)
	}
	return nil
}
