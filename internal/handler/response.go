package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"creator-auth/internal/service"
	"creator-auth/internal/util"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// errorResponse only ever exposes the public text of known errors; anything unexpected is
// reported as an internal error.
func errorResponse(err error, message string) Response {
	return Response{
		Success: false,
		Error:   publicError(err),
		Message: message,
	}
}

func publicError(err error) string {
	for _, known := range []error{
		service.ErrInvalidInput,
		service.ErrResendTooSoon,
		service.ErrVerificationFailed,
		service.ErrSessionInvalid,
		service.ErrDeliveryFailed,
		errBadRequest,
		errNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}

var (
	errBadRequest = errors.New("invalid request body")
	errNotFound   = errors.New("not found")
)

func respondWithJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, statusCode int, err error, message string) {
	if statusCode >= http.StatusInternalServerError {
		logger.Error("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", statusCode),
			util.String("message", message))
	} else {
		logger.Debug("HTTP error response",
			util.String("error", publicError(err)),
			util.Int("status_code", statusCode))
	}
	respondWithJSON(w, logger, statusCode, errorResponse(err, message))
}

// getStatusCode determines the appropriate HTTP status code for an error
func getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrResendTooSoon):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrVerificationFailed), errors.Is(err, service.ErrSessionInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrDeliveryFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
