package memory

import (
	"context"
	"sync"
	"time"

	"creator-auth/internal/clock"
	"creator-auth/internal/model"
	"creator-auth/internal/util"
)

// CommitmentStore keeps OTP commitments in process memory. It backs local development and
// tests; it is rejected by config validation in production.
type CommitmentStore struct {
	mu          sync.Mutex
	commitments map[string]model.OTPCommitment
}

func NewCommitmentStore() *CommitmentStore {
	return &CommitmentStore{commitments: make(map[string]model.OTPCommitment)}
}

func (s *CommitmentStore) Upsert(ctx context.Context, commitment *model.OTPCommitment) error {
	key := util.NormalizeEmail(commitment.EmailNormalized)
	stored := *commitment
	stored.EmailNormalized = key

	s.mu.Lock()
	s.commitments[key] = stored
	s.mu.Unlock()
	return nil
}

func (s *CommitmentStore) Get(ctx context.Context, email string) (*model.OTPCommitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commitments[util.NormalizeEmail(email)]
	if !ok {
		return nil, model.ErrCommitmentNotFound
	}
	return &c, nil
}

func (s *CommitmentStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	delete(s.commitments, util.NormalizeEmail(email))
	s.mu.Unlock()
	return nil
}

func (s *CommitmentStore) HealthCheck(ctx context.Context) error {
	return nil
}

type counter struct {
	count   int
	resetAt time.Time
}

// AttemptLimiter is a fixed-window counter held in memory.
type AttemptLimiter struct {
	clock    clock.Clock
	mu       sync.Mutex
	counters map[string]counter
}

func NewAttemptLimiter(clk clock.Clock) *AttemptLimiter {
	if clk == nil {
		clk = clock.System{}
	}
	return &AttemptLimiter{clock: clk, counters: make(map[string]counter)}
}

func (l *AttemptLimiter) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.counters[key]
	if c.resetAt.IsZero() || !now.Before(c.resetAt) {
		c = counter{resetAt: now.Add(window)}
	}
	c.count++
	l.counters[key] = c
	return c.count, nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.counters, key)
	l.mu.Unlock()
	return nil
}
