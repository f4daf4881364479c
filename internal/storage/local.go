package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/user/stickynotes/internal/model"
	"go.uber.org/zap"
)

// Key prefixes
const (
	notePrefix = "note:"
	pagePrefix = "page:"
	// pageKeySep ends the group part of an index key.
	pageKeySep = "\x00"
)

// makeNoteKey returns the primary key of a note.
func makeNoteKey(id string) []byte {
	return []byte(notePrefix + id)
}

// makePageKey returns the index key linking a group to a note.
// Format: page:<len(group)>:<group>\x00<id>
// The length fixes where the group ends, so a group containing the
// separator never shares a prefix with another group.
func makePageKey(pageGroup, id string) []byte {
	return append(makePagePrefix(pageGroup), id...)
}

// makePagePrefix returns the prefix shared by all index keys of a group.
func makePagePrefix(pageGroup string) []byte {
	return []byte(pagePrefix + strconv.Itoa(len(pageGroup)) + ":" + pageGroup + pageKeySep)
}

// badgerLogger adapts zap to the badger.Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (bl *badgerLogger) Errorf(msg string, items ...any) {
	bl.logger.Errorf(msg, items...)
}

func (bl *badgerLogger) Warningf(msg string, items ...any) {
	bl.logger.Warnf(msg, items...)
}

func (bl *badgerLogger) Infof(msg string, items ...any) {
	bl.logger.Infof(msg, items...)
}

func (bl *badgerLogger) Debugf(msg string, items ...any) {
	bl.logger.Debugf(msg, items...)
}

// LocalOptions configures a LocalStorage.
type LocalOptions struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *zap.Logger
}

// LocalStorage keeps notes in an embedded BadgerDB store, with a secondary
// index on pageGroup.
type LocalStorage struct {
	opts   LocalOptions
	logger *zap.Logger

	mu     sync.Mutex
	db     *badger.DB
	closed bool
}

// NewLocalStorage creates an embedded key-value backend. The store is
// opened by Init.
func NewLocalStorage(opts LocalOptions) *LocalStorage {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStorage{
		opts:   opts,
		logger: logger.With(zap.String("storage", "local")),
	}
}

// Init opens the store, creating its directory on first use.
func (s *LocalStorage) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ErrStorageClosed
	}
	if s.db != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var opts badger.Options
	if s.opts.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if s.opts.Dir == "" {
			return fmt.Errorf("%w: local storage directory is required", model.ErrInit)
		}
		if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
			return fmt.Errorf("%w: failed to create store directory: %w", model.ErrInit, err)
		}
		opts = badger.DefaultOptions(s.opts.Dir)
	}
	opts.Logger = &badgerLogger{logger: s.logger.Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("%w: failed to open store: %w", model.ErrInit, err)
	}
	s.db = db

	s.logger.Info("local storage initialized", zap.String("dir", s.opts.Dir), zap.Bool("in_memory", s.opts.InMemory))
	return nil
}

// Close closes the store.
func (s *LocalStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *LocalStorage) conn(ctx context.Context) (*badger.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, model.ErrStorageClosed
	}
	if s.db == nil {
		return nil, model.ErrNotInitialized
	}
	return s.db, ctx.Err()
}

// getNote reads a note by id. Returns badger.ErrKeyNotFound if absent.
func getNote(txn *badger.Txn, id string) (model.Note, error) {
	item, err := txn.Get(makeNoteKey(id))
	if err != nil {
		return model.Note{}, err
	}

	var n model.Note
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &n)
	})
	if err != nil {
		return model.Note{}, fmt.Errorf("failed to decode note %s: %w", id, err)
	}
	return n, nil
}

// GetNotesForPage scans the group's index entries.
func (s *LocalStorage) GetNotesForPage(ctx context.Context, pageGroup string) ([]model.Note, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	notes := []model.Note{}
	prefix := makePagePrefix(pageGroup)

	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			id := string(bytes.TrimPrefix(iter.Item().Key(), prefix))
			n, err := getNote(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Stale index entry
				continue
			}
			if err != nil {
				return err
			}
			notes = append(notes, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read page notes: %w", err)
	}
	return notes, nil
}

// GetAllNotes iterates every primary record.
func (s *LocalStorage) GetAllNotes(ctx context.Context) ([]model.Note, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	notes := []model.Note{}
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(notePrefix)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var n model.Note
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			})
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", iter.Item().Key(), err)
			}
			notes = append(notes, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	return notes, nil
}

// SaveNote writes the record and its index entry in one transaction,
// dropping the old index entry when the note moved to another group.
func (s *LocalStorage) SaveNote(ctx context.Context, note model.Note) (model.Note, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return model.Note{}, err
	}
	if err := model.Validate(note); err != nil {
		return model.Note{}, err
	}
	note = model.Normalize(note)

	data, err := json.Marshal(note)
	if err != nil {
		return model.Note{}, fmt.Errorf("failed to encode note: %w", err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		old, err := getNote(txn, note.ID)
		switch {
		case err == nil:
			if old.PageGroup != note.PageGroup {
				if err := txn.Delete(makePageKey(old.PageGroup, old.ID)); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(makeNoteKey(note.ID), data); err != nil {
			return err
		}
		return txn.Set(makePageKey(note.PageGroup, note.ID), nil)
	})
	if err != nil {
		return model.Note{}, fmt.Errorf("failed to save note: %w", err)
	}
	return note, nil
}

// DeleteNote removes a note by id. pageGroup is not needed.
func (s *LocalStorage) DeleteNote(ctx context.Context, id, _ string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Update(func(txn *badger.Txn) error {
		old, err := getNote(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(makeNoteKey(id)); err != nil {
			return err
		}
		return txn.Delete(makePageKey(old.PageGroup, id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// ClearPageNotes deletes every note listed under the group's index.
func (s *LocalStorage) ClearPageNotes(ctx context.Context, pageGroup string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	prefix := makePagePrefix(pageGroup)
	var ids []string

	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			ids = append(ids, string(bytes.TrimPrefix(iter.Item().Key(), prefix)))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list page notes: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(makeNoteKey(id)); err != nil {
			return fmt.Errorf("failed to clear page notes: %w", err)
		}
		if err := wb.Delete(makePageKey(pageGroup, id)); err != nil {
			return fmt.Errorf("failed to clear page notes: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to clear page notes: %w", err)
	}
	return nil
}

// ClearAllNotes drops every note and index key.
func (s *LocalStorage) ClearAllNotes(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := db.DropPrefix([]byte(notePrefix), []byte(pagePrefix)); err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}
	return nil
}

// ImportData replaces all notes. The payload is checked before anything
// is dropped; the new records are written through a write batch.
func (s *LocalStorage) ImportData(ctx context.Context, notes []model.Note) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	kept, err := model.PrepareImport(notes)
	if err != nil {
		return err
	}

	if err := db.DropPrefix([]byte(notePrefix), []byte(pagePrefix)); err != nil {
		return fmt.Errorf("failed to clear before import: %w", err)
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()
	for _, n := range kept {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to encode note %s: %w", n.ID, err)
		}
		if err := wb.Set(makeNoteKey(n.ID), data); err != nil {
			return fmt.Errorf("failed to import note %s: %w", n.ID, err)
		}
		if err := wb.Set(makePageKey(n.PageGroup, n.ID), nil); err != nil {
			return fmt.Errorf("failed to import note %s: %w", n.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to import notes: %w", err)
	}

	s.logger.Info("imported notes", zap.Int("count", len(kept)))
	return nil
}
