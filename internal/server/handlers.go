package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/stickynotes/internal/model"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	Timestamp string `json:"timestamp"`
}

// ImportResponse is the body of a successful import.
type ImportResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// pageGroupParam reads the group query parameter, accepting the legacy
// pageUrl name.
func pageGroupParam(r *http.Request) string {
	q := r.URL.Query()
	if g := q.Get("pageGroup"); g != "" {
		return g
	}
	return q.Get("pageUrl")
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return data, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Storage:   s.cfg.Storage.Type,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	var (
		notes []model.Note
		err   error
	)
	if group := pageGroupParam(r); group != "" {
		notes, err = s.store.GetNotesForPage(r.Context(), group)
	} else {
		notes, err = s.store.GetAllNotes(r.Context())
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// handleSaveNote creates or updates the note in the body. POST answers
// 201, PUT answers 200.
func (s *Server) handleSaveNote(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		note, err := s.decodeNote(r)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.save(w, r, note, status)
	}
}

// handleSaveNoteByID updates the note named in the path; the path id wins
// over any id in the body.
func (s *Server) handleSaveNoteByID(w http.ResponseWriter, r *http.Request) {
	note, err := s.decodeNote(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	note.ID = r.PathValue("id")
	s.save(w, r, note, http.StatusOK)
}

func (s *Server) decodeNote(r *http.Request) (model.Note, error) {
	data, err := readBody(r)
	if err != nil {
		return model.Note{}, err
	}
	return model.DecodeNote(data)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, note model.Note, status int) {
	if err := model.Validate(note); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	saved, err := s.store.SaveNote(r.Context(), note)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, status, saved)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNote(r.Context(), r.PathValue("id"), pageGroupParam(r)); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearNotes(w http.ResponseWriter, r *http.Request) {
	var err error
	if group := pageGroupParam(r); group != "" {
		err = s.store.ClearPageNotes(r.Context(), group)
	} else {
		err = s.store.ClearAllNotes(r.Context())
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport replaces all notes with the posted array. count is the
// number of submitted entries, including any that were skipped.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	notes, err := model.DecodeImport(data)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.ImportData(r.Context(), notes); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ImportResponse{
		Message: "Import successful.",
		Count:   len(notes),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, "Not Found")
}
