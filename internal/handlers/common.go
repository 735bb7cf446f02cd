package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
)

// ErrorResponse is the wire shape of every error.
type ErrorResponse struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code"`
}

// statusFor maps the error taxonomy onto HTTP statuses. This is the only
// place the mapping lives.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeState, apperr.CodeNoDevice, apperr.CodeAlreadyDelivered:
		return http.StatusConflict
	case apperr.CodeExpired:
		return http.StatusGone
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeStorage, apperr.CodeInference:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondAppError logs the failure and writes its coded wire form.
// Unclassified errors are logged with full context but surface only as a
// generic internal fault.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)

	evt := log.Error().Err(err).Str("path", r.URL.Path)
	if code == apperr.CodeInternal {
		evt.Msg("Unhandled operation failure")
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
			Code:  apperr.CodeInternal,
		})
		return
	}
	evt.Str("code", string(code)).Msg("Operation rejected")

	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	respondJSON(w, statusFor(code), ErrorResponse{Error: message, Code: code})
}

// respondError sends a plain error response for request-parsing failures.
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: apperr.CodeValidation})
}

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
