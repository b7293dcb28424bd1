package handler

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"creator-auth/internal/service"
	"creator-auth/internal/session"
)

type contextKey struct{}

// TokenVerifier is the part of the auth service the authenticator needs.
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

// Authenticator resolves the caller's session. The session cookie is consulted first, then
// an Authorization: Bearer header. Callers never learn why a credential was refused.
type Authenticator struct {
	verifier   TokenVerifier
	cookieName string
	logger     *zap.Logger
}

func NewAuthenticator(verifier TokenVerifier, cookieName string, logger *zap.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, cookieName: cookieName, logger: logger}
}

// Resolve returns the session for r or service.ErrSessionInvalid.
func (a *Authenticator) Resolve(r *http.Request) (*session.Session, error) {
	ctx := r.Context()

	if cookie, err := r.Cookie(a.cookieName); err == nil && cookie.Value != "" {
		if sess, err := a.verifier.Authenticate(ctx, cookie.Value); err == nil {
			return sess, nil
		}
	}

	if token, ok := bearerToken(r); ok {
		if sess, err := a.verifier.Authenticate(ctx, token); err == nil {
			return sess, nil
		}
	}

	return nil, service.ErrSessionInvalid
}

// Middleware rejects unauthenticated requests with 401 and stores the session in the
// request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.Resolve(r)
		if err != nil {
			respondWithError(w, a.logger, http.StatusUnauthorized, err, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// SessionFromContext returns the session stored by Middleware.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
