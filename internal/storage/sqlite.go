package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/user/stickynotes/internal/model"
	"go.uber.org/zap"
)

const (
	createNotesTableSQL = `
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			pageGroup TEXT NOT NULL,
			content TEXT,
			x REAL,
			y REAL,
			color TEXT,
			createdAt DATETIME DEFAULT CURRENT_TIMESTAMP,
			updatedAt DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	createPageGroupIndexSQL = `CREATE INDEX IF NOT EXISTS idx_notes_pageGroup ON notes(pageGroup)`

	selectNotesSQL = `SELECT id, pageGroup, content, x, y, color, createdAt, updatedAt FROM notes`

	upsertNoteSQL = `
		INSERT INTO notes (id, pageGroup, content, x, y, color)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pageGroup = excluded.pageGroup,
			content = excluded.content,
			x = excluded.x,
			y = excluded.y,
			color = excluded.color,
			updatedAt = CURRENT_TIMESTAMP
		RETURNING createdAt, updatedAt
	`

	insertNoteSQL = `INSERT INTO notes (id, pageGroup, content, x, y, color) VALUES (?, ?, ?, ?, ?, ?)`
)

// sqliteTimeFormats are the layouts a DATETIME column may come back in.
var sqliteTimeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// SQLiteStorage stores notes in a single SQLite table.
type SQLiteStorage struct {
	dbPath string
	logger *zap.Logger

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewSQLiteStorage creates a relational backend for the database at dbPath.
// The file is opened by Init.
func NewSQLiteStorage(dbPath string, logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStorage{
		dbPath: dbPath,
		logger: logger.With(zap.String("storage", "sqlite")),
	}
}

// DBPath returns the database file path.
func (s *SQLiteStorage) DBPath() string {
	return s.dbPath
}

// Init opens the database and creates the notes table if it does not exist.
func (s *SQLiteStorage) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ErrStorageClosed
	}
	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return fmt.Errorf("%w: failed to create data directory: %w", model.ErrInit, err)
	}

	db, err := sql.Open("sqlite3", s.dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("%w: failed to open database: %w", model.ErrInit, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: failed to open database: %w", model.ErrInit, err)
	}

	exists, err := tableExists(ctx, db, "notes")
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: %w", model.ErrInit, err)
	}
	if !exists {
		if err := createNotesTable(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("%w: %w", model.ErrInit, err)
		}
	}

	s.db = db
	s.logger.Info("sqlite storage initialized", zap.String("path", s.dbPath))
	return nil
}

// tableExists checks sqlite_master for a table.
func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

func createNotesTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createNotesTableSQL); err != nil {
		return fmt.Errorf("failed to create notes table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createPageGroupIndexSQL); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
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

// conn returns the open handle or the reason there is none.
func (s *SQLiteStorage) conn(ctx context.Context) (*sql.DB, error) {
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

// GetNotesForPage returns the notes of one group.
func (s *SQLiteStorage) GetNotesForPage(ctx context.Context, pageGroup string) ([]model.Note, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return queryNotes(ctx, db, selectNotesSQL+` WHERE pageGroup = ?`, pageGroup)
}

// GetAllNotes returns every stored note.
func (s *SQLiteStorage) GetAllNotes(ctx context.Context) ([]model.Note, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return queryNotes(ctx, db, selectNotesSQL)
}

func queryNotes(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]model.Note, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	return notes, nil
}

func scanNote(rows *sql.Rows) (model.Note, error) {
	var (
		n                    model.Note
		content, color       sql.NullString
		x, y                 sql.NullFloat64
		createdAt, updatedAt sql.NullString
	)
	if err := rows.Scan(&n.ID, &n.PageGroup, &content, &x, &y, &color, &createdAt, &updatedAt); err != nil {
		return model.Note{}, fmt.Errorf("failed to scan note: %w", err)
	}
	n.Content = content.String
	n.X = x.Float64
	n.Y = y.Float64
	n.Color = model.ParseColor(color.String)
	n.CreatedAt = parseTimestamp(createdAt)
	n.UpdatedAt = parseTimestamp(updatedAt)
	return n, nil
}

// parseTimestamp converts a DATETIME column value, or returns nil if it
// is empty or unparseable.
func parseTimestamp(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	for _, layout := range sqliteTimeFormats {
		if t, err := time.Parse(layout, v.String); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// SaveNote upserts the note and returns it with the database timestamps.
func (s *SQLiteStorage) SaveNote(ctx context.Context, note model.Note) (model.Note, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return model.Note{}, err
	}
	if err := model.Validate(note); err != nil {
		return model.Note{}, err
	}
	note = model.Normalize(note)

	var createdAt, updatedAt sql.NullString
	err = db.QueryRowContext(ctx, upsertNoteSQL,
		note.ID, note.PageGroup, note.Content, note.X, note.Y, string(note.Color),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return model.Note{}, fmt.Errorf("failed to save note: %w", err)
	}

	note.CreatedAt = parseTimestamp(createdAt)
	note.UpdatedAt = parseTimestamp(updatedAt)
	return note, nil
}

// DeleteNote removes a note by id. pageGroup is not needed.
func (s *SQLiteStorage) DeleteNote(ctx context.Context, id, _ string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// ClearPageNotes deletes every note of one group.
func (s *SQLiteStorage) ClearPageNotes(ctx context.Context, pageGroup string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM notes WHERE pageGroup = ?`, pageGroup); err != nil {
		return fmt.Errorf("failed to clear page notes: %w", err)
	}
	return nil
}

// ClearAllNotes deletes every note.
func (s *SQLiteStorage) ClearAllNotes(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}
	return nil
}

// ImportData replaces all notes in one transaction. On any failure the
// table is left as it was.
func (s *SQLiteStorage) ImportData(ctx context.Context, notes []model.Note) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	kept, err := model.PrepareImport(notes)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertNoteSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range kept {
		if _, err := stmt.ExecContext(ctx, n.ID, n.PageGroup, n.Content, n.X, n.Y, string(n.Color)); err != nil {
			return fmt.Errorf("failed to insert note %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	s.logger.Info("imported notes", zap.Int("count", len(kept)))
	return nil
}
