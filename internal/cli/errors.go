package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/user/stickynotes/internal/config"
	"github.com/user/stickynotes/internal/model"
	"github.com/user/stickynotes/internal/server"
)

// Error codes for structured error responses
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConfig          = "CONFIG_ERROR"
	ErrCodeStorage         = "STORAGE_ERROR"
	ErrCodeConfirmRequired = "CONFIRMATION_REQUIRED"
	ErrCodeFileExists      = "FILE_EXISTS"
	ErrCodeAlreadyRunning  = "ALREADY_RUNNING"
	ErrCodeCommand         = "COMMAND_ERROR"
)

// JSONError represents a structured error response for --json output
type JSONError struct {
	Error   bool                   `json:"error"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ExitWithError outputs an error message and exits.
// If --json flag is set, outputs structured JSON error to stdout.
// Otherwise outputs plain text to stderr.
func ExitWithError(code int, errCode, message string, details map[string]interface{}) {
	if GetJSONOutput() {
		errResp := JSONError{
			Error:   true,
			Code:    errCode,
			Message: message,
			Details: details,
		}
		data, _ := json.Marshal(errResp)
		fmt.Println(string(data))
	} else {
		fmt.Fprintln(os.Stderr, "Error:", message)
	}
	Exit(code)
}

// ExitValidationError outputs a validation error
func ExitValidationError(message string, details map[string]interface{}) {
	ExitWithError(2, ErrCodeValidation, message, details)
}

// ExitConfirmRequired outputs an error for a destructive command run
// without --confirm.
func ExitConfirmRequired(action string) {
	ExitWithError(1, ErrCodeConfirmRequired,
		fmt.Sprintf("%s is destructive; re-run with --confirm", action),
		map[string]interface{}{"action": action})
}

// classifyError maps an error returned by a command onto an exit code and
// error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return 2, ErrCodeValidation
	case errors.Is(err, config.ErrInvalidConfig):
		return 1, ErrCodeConfig
	case errors.Is(err, model.ErrNotFound):
		return 4, ErrCodeNotFound
	case errors.Is(err, server.ErrAlreadyRunning):
		return 1, ErrCodeAlreadyRunning
	case errors.Is(err, model.ErrInit),
		errors.Is(err, model.ErrNotInitialized),
		errors.Is(err, model.ErrStorageClosed):
		return 1, ErrCodeStorage
	default:
		return 1, ErrCodeCommand
	}
}
