// Package web serves the moderation HTTP surface: the signed interaction
// callback endpoint, the JSON moderation/query API, and the websocket
// feed dashboards subscribe to.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/spindex/spindex/internal/guard"
	"github.com/spindex/spindex/internal/moderation"
	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

// ModerationService is the slice of the engine the API layer drives.
type ModerationService interface {
	Approve(ctx context.Context, submissionID,
		moderatorID string) (*moderation.Result, error)

	Reject(ctx context.Context, submissionID, moderatorID, category,
		reason string) (*moderation.Result, error)

	AddNote(ctx context.Context, submissionID,
		note string) (*moderation.Result, error)
}

// Announcer posts the new-submission announcement with its moderation
// buttons. Implemented by the notify dispatcher; nil disables it.
type Announcer interface {
	NotifySubmission(ctx context.Context, rec submission.Record)
}

// Config holds the web server's collaborators.
type Config struct {
	// Addr is the HTTP bind address.
	Addr string

	// Storage backs the query endpoints and submission intake.
	Storage store.Storage

	// Engine executes moderation actions.
	Engine ModerationService

	// Announcer receives newly created submissions. Optional.
	Announcer Announcer

	// Interactions is the signed callback handler mounted at
	// /interactions. Optional.
	Interactions http.Handler

	// CSRF guards state-changing API calls.
	CSRF *guard.CSRFGuard

	// Limiter bounds per-moderator request rates.
	Limiter *guard.RateLimiter

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Server is the daemon's HTTP server.
type Server struct {
	cfg     Config
	storage store.Storage
	engine  ModerationService
	hub     *Hub
	logger  *slog.Logger
	mux     *http.ServeMux
	srv     *http.Server
}

// NewServer assembles the server and its routes. The websocket hub is
// created but not started; Start runs it.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		storage: cfg.Storage,
		engine:  cfg.Engine,
		logger:  log,
		mux:     http.NewServeMux(),
	}

	s.hub = NewHub(log)
	s.registerAPIV1Routes()

	if cfg.Interactions != nil {
		s.mux.Handle("/interactions", cfg.Interactions)
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)

	return s
}

// Feed exposes the websocket hub as a status notifier so the engine can
// fan status changes out to connected dashboards.
func (s *Server) Feed() moderation.StatusNotifier {
	return s.hub
}

// Handler returns the server's root handler, mainly for tests and for
// embedding under another mux.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the hub and serves HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	go s.hub.Run()

	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Web server listening", "addr", s.cfg.Addr)

	return s.srv.ListenAndServe()
}

// Shutdown stops the hub, then drains in-flight HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()

	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}

	return nil
}
