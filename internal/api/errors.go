package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"kaptam/internal/database"
	"kaptam/internal/service"

	"github.com/rs/zerolog"
)

const (
	msgNotFound        = "Reservation not found"
	msgEndpointMissing = "Endpoint not found"
	msgInternal        = "Internal server error"
	msgTooManyRequests = "Too many requests, please try again later."
	msgNoAuthHeader    = "No authorization header provided"
	msgInvalidToken    = "Invalid or expired token"
	msgBadCredentials  = "Invalid credentials"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Success: false, Message: message})
}

// errorWriter maps service and store errors onto HTTP responses.
type errorWriter struct {
	logger *zerolog.Logger
	// development exposes raw error text on 500s
	development bool
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status, message := e.classify(err)
	if status >= http.StatusInternalServerError {
		e.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeError(w, status, message)
}

func (e errorWriter) classify(err error) (int, string) {
	var (
		validation *service.ValidationError
		maxBytes   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.Is(err, service.ErrCapacityExceeded):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "Request body too large"
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgBadCredentials
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, msgInvalidToken
	case errors.Is(err, service.ErrCodeGenerationExhausted):
		return http.StatusInternalServerError, "Failed to generate reservation code"
	}

	if e.development {
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, msgInternal
}
