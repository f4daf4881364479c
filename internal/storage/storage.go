// Package storage provides persistent storage for sticky notes.
//
// Every backend implements Storage with the same externally observed
// behavior; callers pick exactly one at startup through New.
package storage

import (
	"context"

	"github.com/user/stickynotes/internal/model"
)

// Storage defines the interface for note persistence.
type Storage interface {
	// Init prepares the underlying resource. Calling it again on a ready
	// backend is a no-op. Failures wrap model.ErrInit.
	Init(ctx context.Context) error

	// Read operations. A group with no notes yields an empty slice.
	GetNotesForPage(ctx context.Context, pageGroup string) ([]model.Note, error)
	GetAllNotes(ctx context.Context) ([]model.Note, error)

	// SaveNote inserts the note or fully replaces the note with the same id.
	// It returns the stored record.
	SaveNote(ctx context.Context, note model.Note) (model.Note, error)

	// DeleteNote removes a note. pageGroup may be empty for backends that
	// can locate a note by id alone. Deleting an absent note is a no-op.
	DeleteNote(ctx context.Context, id, pageGroup string) error

	// Bulk removal.
	ClearPageNotes(ctx context.Context, pageGroup string) error
	ClearAllNotes(ctx context.Context) error

	// ImportData discards all stored notes, then stores every entry that has
	// both an id and a pageGroup.
	ImportData(ctx context.Context, notes []model.Note) error

	// Close releases resources.
	Close() error
}
