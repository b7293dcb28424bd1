package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"creator-auth/internal/clock"
	"creator-auth/internal/devotp"
	"creator-auth/internal/events"
	"creator-auth/internal/model"
	"creator-auth/internal/notify"
	"creator-auth/internal/otp"
	"creator-auth/internal/session"
	"creator-auth/internal/util"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrResendTooSoon      = errors.New("otp requested too recently")
	ErrVerificationFailed = errors.New("invalid or expired code")
	ErrSessionInvalid     = errors.New("unauthenticated")
	ErrDeliveryFailed     = errors.New("otp delivery failed")
)

// ResendTooSoonError carries how long the caller must wait before requesting another code.
type ResendTooSoonError struct {
	RetryAfter time.Duration
}

func (e *ResendTooSoonError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrResendTooSoon, e.RetryAfter.Round(time.Second))
}

func (e *ResendTooSoonError) Is(target error) bool {
	return target == ErrResendTooSoon
}

// OTPIssued is returned to the requester. The code itself only travels to the mailer.
type OTPIssued struct {
	ExpiresAt  time.Time `json:"expires_at"`
	LastSentAt time.Time `json:"last_sent_at"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Settings struct {
	OTPTTL            time.Duration
	ResendInterval    time.Duration
	MaxVerifyAttempts int
	PreviewBaseURL    string
}

// Dependencies groups everything AuthService is built from. Events, DevCache and Users are
// optional.
type Dependencies struct {
	Store    model.CommitmentStore
	Limiter  model.AttemptLimiter
	Hasher   *otp.Hasher
	Signer   *session.Signer
	Sender   notify.CodeSender
	DevCache *devotp.Cache
	Users    UserResolver
	Events   *events.Publisher
	Clock    clock.Clock
	Settings Settings
	Logger   *zap.Logger

	// GenerateCode defaults to otp.GenerateCode.
	GenerateCode func() (string, error)
}

// AuthService runs the email OTP login flow: issue a code, verify it, mint a session.
type AuthService struct {
	store    model.CommitmentStore
	limiter  model.AttemptLimiter
	hasher   *otp.Hasher
	signer   *session.Signer
	sender   notify.CodeSender
	devCache *devotp.Cache
	users    UserResolver
	events   *events.Publisher
	clock    clock.Clock
	settings Settings
	logger   *zap.Logger
	generate func() (string, error)
}

func NewAuthService(deps Dependencies) (*AuthService, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("auth service: commitment store is required")
	case deps.Limiter == nil:
		return nil, errors.New("auth service: attempt limiter is required")
	case deps.Hasher == nil:
		return nil, errors.New("auth service: hasher is required")
	case deps.Signer == nil:
		return nil, errors.New("auth service: signer is required")
	case deps.Sender == nil:
		return nil, errors.New("auth service: code sender is required")
	}

	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Users == nil {
		deps.Users = NewEmailUserResolver()
	}
	if deps.Logger == nil {
		deps.Logger = util.Get()
	}
	if deps.GenerateCode == nil {
		deps.GenerateCode = otp.GenerateCode
	}
	if deps.Settings.OTPTTL <= 0 {
		deps.Settings.OTPTTL = 10 * time.Minute
	}
	if deps.Settings.MaxVerifyAttempts <= 0 {
		deps.Settings.MaxVerifyAttempts = 5
	}

	return &AuthService{
		store:    deps.Store,
		limiter:  deps.Limiter,
		hasher:   deps.Hasher,
		signer:   deps.Signer,
		sender:   deps.Sender,
		devCache: deps.DevCache,
		users:    deps.Users,
		events:   deps.Events,
		clock:    deps.Clock,
		settings: deps.Settings,
		logger:   deps.Logger,
		generate: deps.GenerateCode,
	}, nil
}

// RequestOTP issues a fresh code for email, superseding any earlier one.
func (s *AuthService) RequestOTP(ctx context.Context, email string) (*OTPIssued, error) {
	email = util.NormalizeEmail(email)
	if !util.ValidEmail(email) {
		return nil, fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	emailHash := util.EmailHash(email)
	now := s.clock.Now().UTC()

	existing, err := s.store.Get(ctx, email)
	switch {
	case err == nil:
		if wait := existing.LastSentAt.Add(s.settings.ResendInterval).Sub(now); wait > 0 {
			s.publish(ctx, model.EventOTPThrottled, emailHash, "", events.ReasonResendTooSoon)
			return nil, &ResendTooSoonError{RetryAfter: wait}
		}
	case errors.Is(err, model.ErrCommitmentNotFound):
	default:
		return nil, fmt.Errorf("failed to load OTP commitment: %w", err)
	}

	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}
	digest, err := s.hasher.ComputeDigest(email, code)
	if err != nil {
		return nil, err
	}

	commitment := &model.OTPCommitment{
		EmailNormalized: email,
		CodeDigest:      digest,
		ExpiresAt:       now.Add(s.settings.OTPTTL),
		LastSentAt:      now,
	}
	if err := s.store.Upsert(ctx, commitment); err != nil {
		return nil, fmt.Errorf("failed to store OTP commitment: %w", err)
	}
	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn("Failed to reset verify attempts",
			util.String("email_hash", emailHash),
			util.ErrorField(err))
	}

	delivery := notify.Delivery{
		MessageID: uuid.NewString(),
		Email:     email,
		Code:      code,
		ExpiresAt: commitment.ExpiresAt,
	}
	if err := s.sender.SendCode(ctx, delivery); err != nil {
		// undelivered codes do not count against the resend interval
		if delErr := s.store.Delete(ctx, email); delErr != nil {
			s.logger.Error("Failed to roll back OTP commitment",
				util.String("email_hash", emailHash),
				util.ErrorField(delErr))
		}
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	s.devCache.Put(email, devotp.Entry{
		Code:       code,
		PreviewURL: s.previewURL(email),
		ExpiresAt:  commitment.ExpiresAt,
		LastSentAt: commitment.LastSentAt,
	})

	s.logger.Info("OTP issued",
		util.String("email_hash", emailHash),
		util.String("message_id", delivery.MessageID),
		util.Time("expires_at", commitment.ExpiresAt))
	s.publish(ctx, model.EventOTPRequested, emailHash, "", "")

	return &OTPIssued{
		ExpiresAt:  commitment.ExpiresAt,
		LastSentAt: commitment.LastSentAt,
	}, nil
}

// VerifyOTP checks code against the stored commitment and, on a match, consumes the
// commitment and returns a signed session. Every rejection is ErrVerificationFailed; the
// specific reason only reaches logs and audit events.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	email = util.NormalizeEmail(email)
	emailHash := util.EmailHash(email)

	if !util.ValidEmail(email) || !otp.ValidCodeFormat(code) {
		return nil, s.reject(ctx, emailHash, events.ReasonMalformed)
	}

	attempts, err := s.limiter.Increment(ctx, email, s.settings.OTPTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to count verify attempts: %w", err)
	}
	if attempts > s.settings.MaxVerifyAttempts {
		if err := s.store.Delete(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to invalidate OTP commitment: %w", err)
		}
		return nil, s.reject(ctx, emailHash, events.ReasonAttemptsExceeded)
	}

	commitment, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrCommitmentNotFound) {
			return nil, s.reject(ctx, emailHash, events.ReasonMissing)
		}
		return nil, fmt.Errorf("failed to load OTP commitment: %w", err)
	}

	if commitment.Expired(s.clock.Now()) {
		if err := s.store.Delete(ctx, email); err != nil {
			s.logger.Warn("Failed to delete expired OTP commitment",
				util.String("email_hash", emailHash),
				util.ErrorField(err))
		}
		return nil, s.reject(ctx, emailHash, events.ReasonExpired)
	}

	ok, err := s.hasher.Verify(email, code, commitment.CodeDigest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.reject(ctx, emailHash, events.ReasonMismatch)
	}

	if err := s.store.Delete(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to consume OTP commitment: %w", err)
	}
	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn("Failed to reset verify attempts",
			util.String("email_hash", emailHash),
			util.ErrorField(err))
	}
	s.devCache.Delete(email)

	userID, err := s.users.ResolveUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	token, expiresAt, err := s.signer.Sign(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	s.logger.Info("OTP verified",
		util.String("email_hash", emailHash),
		util.String("user_id", userID))
	s.publish(ctx, model.EventOTPVerified, emailHash, userID, "")

	return &LoginResult{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}, nil
}

// Authenticate resolves a session token to its session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}
	sess := s.signer.Verify(token)
	if sess == nil {
		return nil, ErrSessionInvalid
	}
	return sess, nil
}

// DevOTP returns the last code issued to email. It always reports false in production.
func (s *AuthService) DevOTP(email string) (devotp.Entry, bool) {
	return s.devCache.Get(email)
}

func (s *AuthService) DevOTPEnabled() bool {
	return s.devCache.Enabled()
}

func (s *AuthService) SessionTTL() time.Duration {
	return s.signer.TTL()
}

func (s *AuthService) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}

func (s *AuthService) reject(ctx context.Context, emailHash, reason string) error {
	s.logger.Info("OTP verification rejected",
		util.String("email_hash", emailHash),
		util.String("reason", reason))
	s.publish(ctx, model.EventOTPRejected, emailHash, "", reason)
	return ErrVerificationFailed
}

func (s *AuthService) publish(ctx context.Context, typ model.EventType, emailHash, userID, reason string) {
	s.events.Publish(ctx, model.AuthEvent{
		Type:       typ,
		EmailHash:  emailHash,
		UserID:     userID,
		Reason:     reason,
		OccurredAt: s.clock.Now().UTC(),
	})
}

func (s *AuthService) previewURL(email string) string {
	if s.settings.PreviewBaseURL == "" {
		return ""
	}
	return s.settings.PreviewBaseURL + "?email=" + url.QueryEscape(email)
}
