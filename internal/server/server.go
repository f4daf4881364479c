// Package server exposes a note storage backend over the JSON HTTP API
// used by the sticky notes widget.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/user/stickynotes/internal/config"
	"github.com/user/stickynotes/internal/storage"
	"go.uber.org/zap"
)

const (
	healthPath      = "/api/health"
	shutdownTimeout = 10 * time.Second
)

// Server serves the notes API over one storage backend.
type Server struct {
	cfg     config.Config
	store   storage.Storage
	logger  *zap.Logger
	handler http.Handler
}

// New creates a server. store must already be initialized; the server
// never closes it.
func New(cfg config.Config, store storage.Storage, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger.With(zap.String("component", "server")),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = withBodyLimit(cfg.Server.MaxBodyBytes, h)
	h = withAuth(cfg.Auth, h)
	h = withCORS(cfg.CORS, h)
	h = withLogging(s.logger, h)
	s.handler = h

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+healthPath, s.handleHealth)
	mux.HandleFunc("GET /api/notes", s.handleGetNotes)
	mux.HandleFunc("POST /api/notes", s.handleSaveNote(http.StatusCreated))
	mux.HandleFunc("PUT /api/notes", s.handleSaveNote(http.StatusOK))
	mux.HandleFunc("PUT /api/notes/{id}", s.handleSaveNoteByID)
	mux.HandleFunc("DELETE /api/notes/{id}", s.handleDeleteNote)
	mux.HandleFunc("DELETE /api/notes", s.handleClearNotes)
	mux.HandleFunc("POST /api/notes/import", s.handleImport)
	mux.HandleFunc("/", s.handleNotFound)
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on the configured address and serves until ctx
// is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully, waiting for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("notes API listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("storage", s.cfg.Storage.Type),
		zap.Bool("auth", s.cfg.Auth.Enabled),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
