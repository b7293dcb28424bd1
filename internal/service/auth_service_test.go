package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"creator-auth/internal/clock"
	"creator-auth/internal/devotp"
	"creator-auth/internal/events"
	"creator-auth/internal/model"
	"creator-auth/internal/notify"
	"creator-auth/internal/otp"
	"creator-auth/internal/repository/memory"
	"creator-auth/internal/session"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu         sync.Mutex
	deliveries []notify.Delivery
	err        error
}

func (r *recordingSender) SendCode(ctx context.Context, d notify.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *recordingSender) last() notify.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deliveries[len(r.deliveries)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	err    error
	events []model.AuthEvent
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(ctx context.Context, event *model.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return s.err
}

func (s *recordingSink) reasons(typ model.EventType) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.Type == typ {
			out = append(out, e.Reason)
		}
	}
	return out
}

type harness struct {
	svc    *AuthService
	clk    *clock.Fake
	store  *memory.CommitmentStore
	sender *recordingSender
	sink   *recordingSink
	codes  []string
}

func newHarness(t *testing.T, production bool) *harness {
	t.Helper()

	h := &harness{
		clk:    clock.NewFake(t0),
		store:  memory.NewCommitmentStore(),
		sender: &recordingSender{},
		sink:   &recordingSink{},
		codes:  []string{"123456", "654321", "111111", "222222"},
	}

	signer, err := session.NewSigner(session.Config{
		Secret: "session-secret",
		TTL:    time.Hour,
		Issuer: "creator-auth",
		Clock:  h.clk,
	})
	require.NoError(t, err)

	next := 0
	svc, err := NewAuthService(Dependencies{
		Store:   h.store,
		Limiter: memory.NewAttemptLimiter(h.clk),
		Hasher:  otp.NewHasher("otp-secret"),
		Signer:  signer,
		Sender:  h.sender,
		DevCache: devotp.New(devotp.Options{
			Production: production,
			Clock:      h.clk,
			Schedule:   func(time.Duration, func()) {},
		}),
		Events: events.NewPublisher(nil, h.clk, h.sink),
		Clock:  h.clk,
		Settings: Settings{
			OTPTTL:            10 * time.Minute,
			ResendInterval:    60 * time.Second,
			MaxVerifyAttempts: 5,
			PreviewBaseURL:    "http://localhost:8080/api/v1/auth/dev/otp/preview",
		},
		Logger: zap.NewNop(),
		GenerateCode: func() (string, error) {
			code := h.codes[next%len(h.codes)]
			next++
			return code, nil
		},
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestRequestAndVerifyOTP(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	issued, err := h.svc.RequestOTP(ctx, "  Creator@Example.COM ")
	require.NoError(t, err)
	assert.True(t, issued.ExpiresAt.Equal(t0.Add(10*time.Minute)))
	assert.True(t, issued.LastSentAt.Equal(t0))

	delivery := h.sender.last()
	assert.Equal(t, "creator@example.com", delivery.Email)
	assert.Equal(t, "123456", delivery.Code)
	assert.NotEmpty(t, delivery.MessageID)

	stored, err := h.store.Get(ctx, "creator@example.com")
	require.NoError(t, err)
	assert.NotContains(t, stored.CodeDigest, "123456")

	h.clk.Advance(2 * time.Minute)
	result, err := h.svc.VerifyOTP(ctx, "creator@example.com", "123456")
	require.NoError(t, err)

	wantUser, _ := NewEmailUserResolver().ResolveUser(ctx, "creator@example.com")
	assert.Equal(t, wantUser, result.UserID)
	assert.True(t, result.ExpiresAt.Equal(h.clk.Now().Add(time.Hour)))

	sess, err := h.svc.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, wantUser, sess.UserID)

	_, err = h.store.Get(ctx, "creator@example.com")
	assert.ErrorIs(t, err, model.ErrCommitmentNotFound)

	_, err = h.svc.VerifyOTP(ctx, "creator@example.com", "123456")
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, []string{events.ReasonMissing}, h.sink.reasons(model.EventOTPRejected))
	assert.Len(t, h.sink.reasons(model.EventOTPRequested), 1)
	assert.Len(t, h.sink.reasons(model.EventOTPVerified), 1)
}

func TestRequestOTPRejectsInvalidEmail(t *testing.T) {
	h := newHarness(t, false)

	for _, email := range []string{"", "not-an-email", "Name <a@b.co>"} {
		_, err := h.svc.RequestOTP(context.Background(), email)
		assert.ErrorIs(t, err, ErrInvalidInput, email)
	}
	assert.Empty(t, h.sender.deliveries)
}

func TestRequestOTPEnforcesResendInterval(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)

	h.clk.Advance(30 * time.Second)
	_, err = h.svc.RequestOTP(ctx, "A@example.com")
	require.ErrorIs(t, err, ErrResendTooSoon)

	var tooSoon *ResendTooSoonError
	require.True(t, errors.As(err, &tooSoon))
	assert.Equal(t, 30*time.Second, tooSoon.RetryAfter)
	assert.Equal(t, []string{events.ReasonResendTooSoon}, h.sink.reasons(model.EventOTPThrottled))

	h.clk.Advance(30 * time.Second)
	_, err = h.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "654321", h.sender.last().Code)

	_, err = h.svc.VerifyOTP(ctx, "a@example.com", "123456")
	assert.ErrorIs(t, err, ErrVerificationFailed)

	_, err = h.svc.VerifyOTP(ctx, "a@example.com", "654321")
	assert.NoError(t, err)
}

func TestVerifyOTPExpired(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)

	h.clk.Advance(10 * time.Minute)
	_, err = h.svc.VerifyOTP(ctx, "a@example.com", "123456")
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, []string{events.ReasonExpired}, h.sink.reasons(model.EventOTPRejected))

	_, err = h.store.Get(ctx, "a@example.com")
	assert.ErrorIs(t, err, model.ErrCommitmentNotFound)
}

func TestVerifyOTPUniformFailures(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)

	for _, code := range []string{"000000", "12345", "12a456", ""} {
		_, err := h.svc.VerifyOTP(ctx, "a@example.com", code)
		assert.ErrorIs(t, err, ErrVerificationFailed, code)
		assert.Equal(t, "invalid or expired code", err.Error())
	}
	assert.Equal(t,
		[]string{events.ReasonMismatch, events.ReasonMalformed, events.ReasonMalformed, events.ReasonMalformed},
		h.sink.reasons(model.EventOTPRejected))

	_, err = h.svc.VerifyOTP(ctx, "a@example.com", "123456")
	assert.NoError(t, err)
}

func TestVerifyOTPAttemptsExceeded(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := h.svc.VerifyOTP(ctx, "a@example.com", "999999")
		require.ErrorIs(t, err, ErrVerificationFailed)
	}

	_, err = h.svc.VerifyOTP(ctx, "a@example.com", "123456")
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Contains(t, h.sink.reasons(model.EventOTPRejected), events.ReasonAttemptsExceeded)

	_, err = h.store.Get(ctx, "a@example.com")
	assert.ErrorIs(t, err, model.ErrCommitmentNotFound)

	// a new code resets the counter
	h.clk.Advance(time.Minute)
	_, err = h.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)
	_, err = h.svc.VerifyOTP(ctx, "a@example.com", h.sender.last().Code)
	assert.NoError(t, err)
}

func TestRequestOTPDeliveryFailureRollsBack(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.sender.err = errors.New("smtp down")

	_, err := h.svc.RequestOTP(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	_, err = h.store.Get(ctx, "a@example.com")
	assert.ErrorIs(t, err, model.ErrCommitmentNotFound)
	_, ok := h.svc.DevOTP("a@example.com")
	assert.False(t, ok)

	h.sender.err = nil
	_, err = h.svc.RequestOTP(ctx, "a@example.com")
	assert.NoError(t, err)
}

func TestDevOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("development exposes last code", func(t *testing.T) {
		h := newHarness(t, false)
		_, err := h.svc.RequestOTP(ctx, "Dev@Example.com")
		require.NoError(t, err)

		entry, ok := h.svc.DevOTP("dev@example.com")
		require.True(t, ok)
		assert.Equal(t, "123456", entry.Code)
		assert.Equal(t, "http://localhost:8080/api/v1/auth/dev/otp/preview?email=dev%40example.com", entry.PreviewURL)

		h.clk.Advance(61 * time.Second)
		_, ok = h.svc.DevOTP("dev@example.com")
		assert.False(t, ok)
	})

	t.Run("production never exposes codes", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.svc.RequestOTP(ctx, "dev@example.com")
		require.NoError(t, err)

		_, ok := h.svc.DevOTP("dev@example.com")
		assert.False(t, ok)
		assert.False(t, h.svc.DevOTPEnabled())
	})
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = h.svc.Authenticate(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = h.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)
	result, err := h.svc.VerifyOTP(ctx, "a@example.com", "123456")
	require.NoError(t, err)

	h.clk.Advance(time.Hour)
	_, err = h.svc.Authenticate(ctx, result.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestFailingEventSinkDoesNotFailLogin(t *testing.T) {
	h := newHarness(t, false)
	h.sink.err = errors.New("clickhouse unavailable")
	ctx := context.Background()

	_, err := h.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)
	_, err = h.svc.VerifyOTP(ctx, "a@example.com", "123456")
	assert.NoError(t, err)
}

func TestEmailUserResolverIsStable(t *testing.T) {
	r := NewEmailUserResolver()
	ctx := context.Background()

	a, err := r.ResolveUser(ctx, "User@Example.com")
	require.NoError(t, err)
	b, err := r.ResolveUser(ctx, " user@example.com ")
	require.NoError(t, err)
	c, err := r.ResolveUser(ctx, "other@example.com")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewAuthServiceRequiresCollaborators(t *testing.T) {
	_, err := NewAuthService(Dependencies{})
	assert.Error(t, err)
}
