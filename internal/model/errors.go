// Package model provides the note record shared by every storage backend.
package model

import "errors"

// Error types for note storage operations
var (
	ErrValidation       = errors.New("validation failed")
	ErrMissingID        = errors.New("note id is required")
	ErrMissingPageGroup = errors.New("note pageGroup is required")
	ErrImportNotArray   = errors.New("import data must be an array")
	ErrDuplicateID      = errors.New("duplicate note id in import data")
	ErrInvalidNote      = errors.New("note must be a JSON object")
	ErrInit             = errors.New("storage initialization failed")
	ErrNotInitialized   = errors.New("storage not initialized")
	ErrStorageClosed    = errors.New("storage is closed")
	ErrNotFound         = errors.New("not found")
)

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
