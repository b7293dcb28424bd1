package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"creator-auth/internal/clock"
	"creator-auth/internal/config"
	"creator-auth/internal/util"
)

// Session is the identity recovered from a valid token.
type Session struct {
	UserID    string    `json:"user_id"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims is the signed payload. The subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
}

type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
	Clock  clock.Clock
}

// Signer issues and verifies stateless HS256 session tokens. It holds no mutable state and
// is safe for concurrent use.
type Signer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  clock.Clock
	parser *jwt.Parser
}

func NewSigner(cfg Config) (*Signer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: session secret is not set", config.ErrConfiguration)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: session ttl must be positive", config.ErrConfiguration)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(clk.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Signer{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		clock:  clk,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Sign issues a token binding userID to an expiry. Tampering with either invalidates the MAC.
func (s *Signer) Sign(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}

	// JWT timestamps have second precision.
	now := s.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify returns the session carried by token, or nil when the token is malformed, forged,
// expired or otherwise unacceptable. The cause is only logged at debug level.
func (s *Signer) Verify(tokenString string) *Session {
	if tokenString == "" {
		return nil
	}

	var claims Claims
	token, err := s.parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		util.Debug("Session token rejected", util.String("reason", rejectionReason(err)))
		return nil
	}
	if !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		util.Debug("Session token rejected", util.String("reason", "incomplete_claims"))
		return nil
	}

	sess := &Session{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	return sess
}

// TTL is the lifetime given to newly signed tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "not_yet_valid"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature_mismatch"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer_mismatch"
	default:
		return "invalid"
	}
}
