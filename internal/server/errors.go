package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/user/stickynotes/internal/model"
	"go.uber.org/zap"
)

// Error codes for structured error responses
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrCodeInternal      = "INTERNAL_ERROR"
	internalErrorMessage = "Internal server error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: true, Code: code, Message: message})
}

// writeStoreError maps a storage or decoding error onto a response.
// Unexpected errors are logged in full and answered with a generic message.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "Request body too large")
	case model.IsValidation(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Bad Request: "+err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, internalErrorMessage)
	}
}
