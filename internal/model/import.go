package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeNote parses a single note from JSON. The payload must be an object.
func DecodeNote(data []byte) (Note, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Note{}, fmt.Errorf("%w: %w", ErrValidation, ErrInvalidNote)
	}

	var n Note
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return Note{}, fmt.Errorf("%w: invalid note: %v", ErrValidation, err)
	}
	return n, nil
}

// DecodeImport parses an import payload. Anything other than a JSON array
// is rejected. The result has one entry per array element; an element
// that is not a note decodes to the zero Note, which PrepareImport drops.
func DecodeImport(data []byte) ([]Note, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrImportNotArray)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid import data: %v", ErrValidation, err)
	}

	notes := make([]Note, len(raw))
	for i, elem := range raw {
		var n Note
		if err := json.Unmarshal(elem, &n); err != nil {
			continue
		}
		notes[i] = n
	}
	return notes, nil
}

// PrepareImport returns the entries of an import payload that will be
// stored: entries without an id or pageGroup are dropped, the rest are
// normalized. Two kept entries sharing an id fail the whole import before
// anything is written.
func PrepareImport(notes []Note) ([]Note, error) {
	kept := make([]Note, 0, len(notes))
	seen := make(map[string]struct{}, len(notes))

	for _, n := range notes {
		if Validate(n) != nil {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("%w: %w: %s", ErrValidation, ErrDuplicateID, n.ID)
		}
		seen[n.ID] = struct{}{}
		n = Normalize(n)
		n.CreatedAt = nil
		n.UpdatedAt = nil
		kept = append(kept, n)
	}

	return kept, nil
}

// GroupByPage partitions notes by pageGroup, preserving input order
// within each group.
func GroupByPage(notes []Note) map[string][]Note {
	groups := make(map[string][]Note)
	for _, n := range notes {
		groups[n.PageGroup] = append(groups[n.PageGroup], n)
	}
	return groups
}
