package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tripwise-backend/internal/services"

	"github.com/rs/zerolog/log"
)

const maxJSONBody = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// NoticeResponse carries the message shown after a successful write
type NoticeResponse struct {
	Notice services.Notice `json:"notice"`
	Data   any             `json:"data,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondNotice sends a notice with optional data
func respondNotice(w http.ResponseWriter, statusCode int, notice services.Notice, data any) {
	respondJSON(w, statusCode, NoticeResponse{Notice: notice, Data: data})
}

// decodeJSON reads a JSON request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// errorStatus maps a service error to the status code and message sent to
// the client. ok is false for unexpected errors.
func errorStatus(err error) (int, string, bool) {
	var inputErr *services.InputError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Message, true
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password.", true
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, "This email is already registered.", true
	case errors.Is(err, services.ErrUsernameTaken):
		return http.StatusConflict, "This username is already taken. Please choose another.", true
	case errors.Is(err, services.ErrUsernameRequired):
		return http.StatusForbidden, "Please set a username first.", true
	case errors.Is(err, services.ErrAlreadyFriends):
		return http.StatusConflict, "You are already friends with this user.", true
	case errors.Is(err, services.ErrNotFriends):
		return http.StatusForbidden, "You can only message your friends.", true
	case errors.Is(err, services.ErrUnknownBatch):
		return http.StatusNotFound, "Unknown upload batch.", true
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Not found.", true
	}
	return http.StatusInternalServerError, "", false
}

// respondServiceError sends the response for a failed service call.
// Unexpected errors are logged and answered with fallback.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, message, ok := errorStatus(err)
	if !ok {
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(fallback)
		message = fallback
	}
	respondError(w, message, status)
}
