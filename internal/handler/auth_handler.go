package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"creator-auth/internal/service"
	"creator-auth/internal/util"
)

const maxBodyBytes = 4 << 10

// CookieConfig describes the session cookie set on login.
type CookieConfig struct {
	Name   string
	Secure bool
	Domain string
}

// AuthHandler serves the OTP login endpoints.
type AuthHandler struct {
	authService   *service.AuthService
	authenticator *Authenticator
	cookie        CookieConfig
	logger        *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, cookie CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		authenticator: NewAuthenticator(authService, cookie.Name, logger),
		cookie:        cookie,
		logger:        logger,
	}
}

type otpRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RegisterRoutes mounts the auth routes under /auth.
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/otp/request", h.RequestOTP)
		r.Post("/otp/verify", h.VerifyOTP)
		r.Post("/logout", h.Logout)
		r.Get("/dev/otp", h.DevOTP)
		r.Get("/dev/otp/preview", h.DevOTPPreview)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticator.Middleware)
			r.Get("/session", h.Session)
		})
	})
}

// RequestOTP handles POST /auth/otp/request
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	issued, err := h.authService.RequestOTP(r.Context(), req.Email)
	if err != nil {
		var tooSoon *service.ResendTooSoonError
		if errors.As(err, &tooSoon) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(tooSoon.RetryAfter.Seconds()))))
		}
		respondWithError(w, h.logger, getStatusCode(err), err, "Failed to send code")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(issued, "Code sent"))
}

// VerifyOTP handles POST /auth/otp/verify. A successful login sets the session cookie and
// also returns the token for clients that send it as a bearer credential.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.authService.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		respondWithError(w, h.logger, getStatusCode(err), err, "Verification failed")
		return
	}

	http.SetCookie(w, h.sessionCookie(result.Token, result.ExpiresAt))
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(result, "Signed in"))
}

// Session handles GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		respondWithError(w, h.logger, http.StatusUnauthorized, service.ErrSessionInvalid, "Authentication required")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(sess, ""))
}

// Logout handles POST /auth/logout. Tokens are stateless, so logging out clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "Signed out"))
}

// DevOTP handles GET /auth/dev/otp?email=. It does not exist in production.
func (h *AuthHandler) DevOTP(w http.ResponseWriter, r *http.Request) {
	if !h.authService.DevOTPEnabled() {
		respondWithError(w, h.logger, http.StatusNotFound, errNotFound, "endpoint not found")
		return
	}

	email := r.URL.Query().Get("email")
	if !util.ValidEmail(util.NormalizeEmail(email)) {
		respondWithError(w, h.logger, http.StatusBadRequest, service.ErrInvalidInput, "email query parameter is required")
		return
	}

	entry, ok := h.authService.DevOTP(email)
	if !ok {
		respondWithError(w, h.logger, http.StatusNotFound, errNotFound, "No recent code for this address")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(entry, ""))
}

// DevOTPPreview handles GET /auth/dev/otp/preview?email=. It renders the message a mailer
// would have sent, standing in for a hosted email preview during development.
func (h *AuthHandler) DevOTPPreview(w http.ResponseWriter, r *http.Request) {
	if !h.authService.DevOTPEnabled() {
		respondWithError(w, h.logger, http.StatusNotFound, errNotFound, "endpoint not found")
		return
	}

	entry, ok := h.authService.DevOTP(r.URL.Query().Get("email"))
	if !ok {
		respondWithError(w, h.logger, http.StatusNotFound, errNotFound, "No recent code for this address")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Your sign-in code is %s\nIt expires at %s\n",
		entry.Code, entry.ExpiresAt.UTC().Format(time.RFC1123))
}

// HealthCheck reports whether the commitment store is reachable.
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("Health check failed", util.ErrorField(err))
		respondWithJSON(w, h.logger, http.StatusServiceUnavailable, Response{Success: false, Message: "Service unhealthy"})
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(map[string]string{
		"status":  "healthy",
		"service": "creator-auth",
	}, ""))
}

func (h *AuthHandler) sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		Expires:  expiresAt,
		MaxAge:   int(h.authService.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
