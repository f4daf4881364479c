package model

import (
	"strings"

	"github.com/google/uuid"
)

// IDPrefix marks ids generated on the client side for new notes.
const IDPrefix = "note-"

// GenerateID creates a new random note ID.
// Example: note-3f2b9c1e-8a47-4d5e-9b1f-0c6d2e7a4b10
func GenerateID() string {
	return IDPrefix + uuid.NewString()
}

// IsGeneratedID returns true if id has the shape produced by GenerateID.
func IsGeneratedID(id string) bool {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
