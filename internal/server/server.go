// Package server implements the HTTP API that exposes review sessions to
// agents (create, wait) and to the browser review page (snapshot, comments,
// decisions, live events).
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/holdpoint/internal/core/browser"
	"github.com/colonyops/holdpoint/internal/core/eventbus"
	"github.com/colonyops/holdpoint/internal/core/git"
	"github.com/colonyops/holdpoint/internal/core/review"
)

//go:embed ui/index.html
var indexHTML []byte

// Options wire the server's collaborators.
type Options struct {
	Service   *review.Service
	Extractor *git.Extractor
	// Opener launches the review URL on session creation. nil disables it.
	Opener *browser.Opener
	// Bus feeds the websocket event stream. nil disables it.
	Bus    *eventbus.EventBus
	Logger zerolog.Logger
}

// Server is the holdpoint HTTP API server.
type Server struct {
	baseURL   string
	mux       *http.ServeMux
	server    *http.Server
	service   *review.Service
	extractor *git.Extractor
	opener    *browser.Opener
	hub       *wsHub
	log       zerolog.Logger
}

// New creates a server listening at addr.
func New(addr string, opts Options) *Server {
	s := &Server{
		baseURL:   fmt.Sprintf("http://%s", addr),
		mux:       http.NewServeMux(),
		service:   opts.Service,
		extractor: opts.Extractor,
		opener:    opts.Opener,
		log:       opts.Logger,
	}

	if opts.Bus != nil {
		s.hub = newWSHub(opts.Bus, opts.Logger)
	}

	s.registerRoutes()
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
		// No write timeout: the wait endpoint holds connections open for
		// as long as a review stays undecided.
		IdleTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{id}/wait", s.handleWait)
	s.mux.HandleFunc("POST /api/sessions/{id}/comments", s.handleAddComment)
	s.mux.HandleFunc("DELETE /api/sessions/{id}/comments/{commentID}", s.handleDeleteComment)
	s.mux.HandleFunc("POST /api/sessions/{id}/feedback", s.handleSetFeedback)
	s.mux.HandleFunc("POST /api/sessions/{id}/complete", s.handleComplete)
	s.mux.HandleFunc("POST /api/sessions/{id}/cancel", s.handleCancel)

	if s.hub != nil {
		s.mux.HandleFunc("GET /api/ws", s.hub.handleWS)
	}

	s.mux.HandleFunc("GET /review/{id}", s.handleIndex)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", s.server.Addr).Msg("holdpoint server listening")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// writeError writes a JSON error response with a status derived from the
// error taxonomy.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, review.ErrSessionNotFound), errors.Is(err, review.ErrCommentNotFound):
		return http.StatusNotFound
	case errors.Is(err, review.ErrAlreadyFinalized):
		return http.StatusConflict
	case errors.Is(err, review.ErrInvalidRequest), errors.Is(err, review.ErrNoFiles):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty request body", review.ErrInvalidRequest)
	}
	defer func() { _ = r.Body.Close() }()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", review.ErrInvalidRequest, err)
	}
	return nil
}
