package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/user/stickynotes/internal/model"
	"go.uber.org/zap"
)

const defaultRemoteTimeout = 10 * time.Second

// RemoteOptions configures a RemoteStorage.
type RemoteOptions struct {
	// BaseURL is the API root, e.g. http://localhost:3000/api.
	BaseURL string
	// Token is sent as a bearer token when set.
	Token   string
	Timeout time.Duration
	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
	Logger *zap.Logger
}

// RemoteStorage implements Storage against a notes HTTP API.
type RemoteStorage struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger

	mu     sync.Mutex
	ready  bool
	closed bool
}

// apiError is the error body returned by the notes API.
type apiError struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRemoteStorage creates a REST client backend.
func NewRemoteStorage(opts RemoteOptions) *RemoteStorage {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultRemoteTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &RemoteStorage{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		client:  client,
		logger:  logger.With(zap.String("storage", "remote")),
	}
}

// Init checks that the API answers its health endpoint.
func (s *RemoteStorage) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.ErrStorageClosed
	}
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.do(ctx, http.MethodGet, "/health", nil, nil, nil); err != nil {
		return fmt.Errorf("%w: remote API not reachable: %w", model.ErrInit, err)
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()

	s.logger.Info("remote storage initialized", zap.String("url", s.baseURL))
	return nil
}

// Close marks the client closed and drops idle connections.
func (s *RemoteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}

func (s *RemoteStorage) check(ctx context.Context) error {
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

// GetNotesForPage fetches the notes of one group.
func (s *RemoteStorage) GetNotesForPage(ctx context.Context, pageGroup string) ([]model.Note, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	notes := []model.Note{}
	if err := s.do(ctx, http.MethodGet, "/notes", pageQuery(pageGroup), nil, &notes); err != nil {
		return nil, err
	}
	return nonNil(notes), nil
}

// GetAllNotes fetches every note.
func (s *RemoteStorage) GetAllNotes(ctx context.Context) ([]model.Note, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	notes := []model.Note{}
	if err := s.do(ctx, http.MethodGet, "/notes", nil, nil, &notes); err != nil {
		return nil, err
	}
	return nonNil(notes), nil
}

// SaveNote upserts the note through PUT /notes/{id}.
func (s *RemoteStorage) SaveNote(ctx context.Context, note model.Note) (model.Note, error) {
	if err := s.check(ctx); err != nil {
		return model.Note{}, err
	}
	if err := model.Validate(note); err != nil {
		return model.Note{}, err
	}
	note = model.Normalize(note)

	var saved model.Note
	if err := s.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(note.ID), nil, note, &saved); err != nil {
		return model.Note{}, err
	}
	return saved, nil
}

// DeleteNote removes a note. pageGroup is forwarded when set.
func (s *RemoteStorage) DeleteNote(ctx context.Context, id, pageGroup string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	var query url.Values
	if pageGroup != "" {
		query = pageQuery(pageGroup)
	}
	return s.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), query, nil, nil)
}

// ClearPageNotes deletes every note of one group.
func (s *RemoteStorage) ClearPageNotes(ctx context.Context, pageGroup string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.do(ctx, http.MethodDelete, "/notes", pageQuery(pageGroup), nil, nil)
}

// ClearAllNotes deletes every note.
func (s *RemoteStorage) ClearAllNotes(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.do(ctx, http.MethodDelete, "/notes", nil, nil, nil)
}

// ImportData replaces all notes on the server. Duplicate ids are rejected
// locally before the request is sent.
func (s *RemoteStorage) ImportData(ctx context.Context, notes []model.Note) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := model.PrepareImport(notes); err != nil {
		return err
	}
	if notes == nil {
		notes = []model.Note{}
	}
	return s.do(ctx, http.MethodPost, "/notes/import", nil, notes, nil)
}

func pageQuery(pageGroup string) url.Values {
	return url.Values{"pageGroup": []string{pageGroup}}
}

func nonNil(notes []model.Note) []model.Note {
	if notes == nil {
		return []model.Note{}
	}
	return notes
}

// do sends one request and decodes a JSON response into out when out is
// not nil. Non-2xx responses are mapped onto the model errors.
func (s *RemoteStorage) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	s.logger.Debug("remote request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError converts an error response into an error wrapping the
// matching sentinel.
func statusError(resp *http.Response) error {
	var body apiError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", model.ErrValidation, body.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", model.ErrNotFound, body.Message)
	default:
		return fmt.Errorf("remote API returned %d: %s", resp.StatusCode, body.Message)
	}
}
