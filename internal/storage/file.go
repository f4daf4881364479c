package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/user/stickynotes/internal/model"
	"go.uber.org/zap"
)

const defaultReadWorkers = 8

// FileOptions configures a FileStorage.
type FileOptions struct {
	// NotesDir holds one JSON file per page group.
	NotesDir string
	// IndexPath is the manifest listing every group file.
	IndexPath string
	// ReadWorkers bounds concurrent group reads in GetAllNotes.
	ReadWorkers int
	// SerializeWrites wraps mutating operations in an in-process mutex.
	SerializeWrites bool
	Logger          *zap.Logger
}

// FileStorage stores each page group in its own JSON file, with a manifest
// of the groups that have files.
//
// Without SerializeWrites the read-modify-write cycles of concurrent saves
// to the same group can lose updates. Each individual file write is atomic,
// but a group file and the manifest are never updated together.
type FileStorage struct {
	notesDir string
	index    *manifestStore
	workers  int
	logger   *zap.Logger

	writeMu *sync.Mutex // nil unless SerializeWrites

	mu     sync.Mutex
	pool   *ants.Pool
	ready  bool
	closed bool
}

// NewFileStorage creates a flat-file backend. Nothing touches the disk
// until Init.
func NewFileStorage(opts FileOptions) *FileStorage {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.ReadWorkers
	if workers <= 0 {
		workers = defaultReadWorkers
	}

	s := &FileStorage{
		notesDir: opts.NotesDir,
		index:    &manifestStore{path: opts.IndexPath},
		workers:  workers,
		logger:   logger.With(zap.String("storage", "file")),
	}
	if opts.SerializeWrites {
		s.writeMu = &sync.Mutex{}
	}
	return s
}

// NotesDir returns the directory holding the group files.
func (s *FileStorage) NotesDir() string {
	return s.notesDir
}

// IndexPath returns the manifest path.
func (s *FileStorage) IndexPath() string {
	return s.index.path
}

// Init creates the notes directory and an empty manifest if missing.
func (s *FileStorage) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ErrStorageClosed
	}
	if s.ready {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.notesDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create notes directory: %w", model.ErrInit, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.index.path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create index directory: %w", model.ErrInit, err)
	}
	if !s.index.Exists() {
		if err := s.index.Save(manifest{}); err != nil {
			return fmt.Errorf("%w: %w", model.ErrInit, err)
		}
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return fmt.Errorf("%w: failed to create read pool: %w", model.ErrInit, err)
	}
	s.pool = pool
	s.ready = true

	s.logger.Info("file storage initialized", zap.String("dir", s.notesDir))
	return nil
}

// Close releases the read pool. The files stay on disk.
func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.pool != nil {
		s.pool.Release()
		s.pool = nil
	}
	return nil
}

// check returns an error unless the storage is open and initialized.
func (s *FileStorage) check(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ErrStorageClosed
	}
	if !s.ready {
		return model.ErrNotInitialized
	}
	return ctx.Err()
}

// lockWrites acquires the write mutex when SerializeWrites is on.
func (s *FileStorage) lockWrites() func() {
	if s.writeMu == nil {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

func (s *FileStorage) groupPath(pageGroup string) string {
	return filepath.Join(s.notesDir, groupFileName(pageGroup))
}

func (s *FileStorage) keyPath(key string) string {
	return filepath.Join(s.notesDir, key+groupFileExt)
}

// GetNotesForPage returns the group's notes. Groups whose names encode
// alike share a file, so the file's contents are filtered by pageGroup.
func (s *FileStorage) GetNotesForPage(ctx context.Context, pageGroup string) ([]model.Note, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	notes, err := readGroupFile(s.groupPath(pageGroup))
	if err != nil {
		return nil, err
	}

	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.PageGroup == pageGroup {
			out = append(out, n)
		}
	}
	return out, nil
}

// GetAllNotes reads every group listed in the manifest. Groups are read
// concurrently; a group that fails to load is logged and skipped.
func (s *FileStorage) GetAllNotes(ctx context.Context) ([]model.Note, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	m, err := s.index.Load()
	if err != nil {
		return nil, err
	}
	keys := m.Keys()

	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return nil, model.ErrStorageClosed
	}

	results := make([][]model.Note, len(keys))
	var wg sync.WaitGroup

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		i, key := i, key
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			notes, err := readGroupFile(s.keyPath(key))
			if err != nil {
				s.logger.Warn("skipping unreadable group file", zap.String("group", key), zap.Error(err))
				return
			}
			results[i] = notes
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to schedule group read: %w", err)
		}
	}
	wg.Wait()

	all := []model.Note{}
	for _, notes := range results {
		all = append(all, notes...)
	}
	return all, nil
}

// SaveNote inserts or replaces the note in its group's file and lists the
// group in the manifest. A note saved under a new group is removed from
// the file of its previous group.
func (s *FileStorage) SaveNote(ctx context.Context, note model.Note) (model.Note, error) {
	if err := s.check(ctx); err != nil {
		return model.Note{}, err
	}
	if err := model.Validate(note); err != nil {
		return model.Note{}, err
	}
	note = model.Normalize(note)

	defer s.lockWrites()()

	key := encodeGroup(note.PageGroup)
	path := s.keyPath(key)
	notes, err := readGroupFile(path)
	if err != nil {
		return model.Note{}, err
	}

	replaced := false
	for i := range notes {
		if notes[i].ID == note.ID {
			notes[i] = note
			replaced = true
			break
		}
	}
	if !replaced {
		notes = append(notes, note)
	}

	if err := writeGroupFile(path, notes); err != nil {
		return model.Note{}, err
	}
	if err := s.index.Add(key); err != nil {
		return model.Note{}, err
	}
	if !replaced {
		if err := s.removeFromOtherGroups(note.ID, key); err != nil {
			return model.Note{}, fmt.Errorf("failed to move note %s: %w", note.ID, err)
		}
	}

	return note, nil
}

// removeFromOtherGroups drops the note with id from every listed group
// file except skipKey.
func (s *FileStorage) removeFromOtherGroups(id, skipKey string) error {
	m, err := s.index.Load()
	if err != nil {
		return err
	}

	for _, key := range m.Keys() {
		if key == skipKey {
			continue
		}
		notes, err := readGroupFile(s.keyPath(key))
		if err != nil {
			s.logger.Warn("skipping unreadable group file", zap.String("group", key), zap.Error(err))
			continue
		}
		kept := withoutID(notes, id)
		if len(kept) == len(notes) {
			continue
		}
		if err := s.rewriteGroup(key, kept); err != nil {
			return err
		}
	}
	return nil
}

// rewriteGroup replaces a group file's contents. An empty file is removed
// along with its manifest entry.
func (s *FileStorage) rewriteGroup(key string, notes []model.Note) error {
	path := s.keyPath(key)
	if len(notes) == 0 {
		if err := removeFile(path); err != nil {
			return err
		}
		return s.index.Remove(key)
	}
	return writeGroupFile(path, notes)
}

func withoutID(notes []model.Note, id string) []model.Note {
	kept := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	return kept
}

// DeleteNote removes a note from its group's file. pageGroup is required.
// Removing the last note of a file deletes the file and its manifest entry.
func (s *FileStorage) DeleteNote(ctx context.Context, id, pageGroup string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if pageGroup == "" {
		return fmt.Errorf("%w: %w: required for file storage deletion", model.ErrValidation, model.ErrMissingPageGroup)
	}

	defer s.lockWrites()()

	key := encodeGroup(pageGroup)
	notes, err := readGroupFile(s.keyPath(key))
	if err != nil {
		return err
	}

	kept := withoutID(notes, id)
	if len(kept) == len(notes) && len(notes) > 0 {
		return nil
	}
	return s.rewriteGroup(key, kept)
}

// ClearPageNotes removes the group's notes. The file and manifest entry
// go too unless another group shares the file.
func (s *FileStorage) ClearPageNotes(ctx context.Context, pageGroup string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	defer s.lockWrites()()

	key := encodeGroup(pageGroup)
	notes, err := readGroupFile(s.keyPath(key))
	if err != nil {
		s.logger.Warn("group file unreadable, removing it", zap.String("group", key), zap.Error(err))
		notes = nil
	}

	kept := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.PageGroup != pageGroup {
			kept = append(kept, n)
		}
	}
	return s.rewriteGroup(key, kept)
}

// ClearAllNotes deletes every group file and empties the manifest.
func (s *FileStorage) ClearAllNotes(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	defer s.lockWrites()()
	return s.clearAll()
}

// clearAll removes listed groups and any unlisted group files left behind
// by an interrupted write, then resets the manifest.
func (s *FileStorage) clearAll() error {
	m, err := s.index.Load()
	if err != nil {
		s.logger.Warn("index unreadable, clearing notes directory only", zap.Error(err))
		m = manifest{}
	}
	for _, key := range m.Keys() {
		if err := removeFile(s.keyPath(key)); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(s.notesDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to list notes directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), tmpFileSuffix) {
			continue
		}
		if groupKeyFromFile(entry.Name()) == "" {
			continue
		}
		if err := removeFile(filepath.Join(s.notesDir, entry.Name())); err != nil {
			return err
		}
	}

	return s.index.Save(manifest{})
}

// ImportData replaces all notes. Entries without an id or pageGroup are
// skipped; the payload is checked before anything is removed.
func (s *FileStorage) ImportData(ctx context.Context, notes []model.Note) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	kept, err := model.PrepareImport(notes)
	if err != nil {
		return err
	}

	defer s.lockWrites()()

	if err := s.clearAll(); err != nil {
		return fmt.Errorf("failed to clear before import: %w", err)
	}

	// Grouped by file name: groups whose names encode alike share a file.
	byFile := make(map[string][]model.Note)
	for _, n := range kept {
		key := encodeGroup(n.PageGroup)
		byFile[key] = append(byFile[key], n)
	}

	m := manifest{}
	for key, group := range byFile {
		if err := writeGroupFile(s.keyPath(key), group); err != nil {
			return err
		}
		m[key] = true
	}
	if err := s.index.Save(m); err != nil {
		return err
	}

	s.logger.Info("imported notes", zap.Int("count", len(kept)), zap.Int("groups", len(m)))
	return nil
}
