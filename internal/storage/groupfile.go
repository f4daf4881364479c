package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/stickynotes/internal/model"
)

const (
	groupFileExt = ".json"
	// tmpFileSuffix marks in-flight writes; watchers and readers skip them.
	tmpFileSuffix = ".tmp"
)

// writeJSONAtomic overwrites path with the indented JSON encoding of v.
// The data is written to a temp file in the same directory, synced, and
// renamed over the target, so readers see either the old or the new file.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+"-*"+tmpFileSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // Clean up on error

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// readGroupFile reads all notes of one partition file.
// Returns an empty slice if the file doesn't exist.
func readGroupFile(path string) ([]model.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Note{}, nil
		}
		return nil, fmt.Errorf("failed to read group file: %w", err)
	}

	var notes []model.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("failed to parse group file %s: %w", filepath.Base(path), err)
	}
	if notes == nil {
		notes = []model.Note{}
	}

	return notes, nil
}

// writeGroupFile overwrites a partition file with notes.
func writeGroupFile(path string, notes []model.Note) error {
	if notes == nil {
		notes = []model.Note{}
	}
	return writeJSONAtomic(path, notes)
}

// removeFile deletes path, treating a missing file as success.
func removeFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", filepath.Base(path), err)
	}
	return nil
}
