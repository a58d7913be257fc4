// Package api exposes the management HTTP surface used by the financial
// backend: alert ingress, health, and reviewer introspection.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
	"github.com/Nikaat/skenas-support-bot/internal/session"
	"github.com/Nikaat/skenas-support-bot/internal/workflow"
)

// Default server configuration.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr   string
	APIKey string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAPIKey sets the Bearer token required on mutating endpoints.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// Server is the management HTTP server.
type Server struct {
	httpServer *http.Server
	workflow   *workflow.Workflow
	sessions   *session.Manager
	apiKey     string
}

// NewServer creates the management API server.
func NewServer(wf *workflow.Workflow, sessions *session.Manager, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		workflow: wf,
		sessions: sessions,
		apiKey:   cfg.APIKey,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/bot-status", s.requireAuth(s.handleBotStatus))
	mux.HandleFunc("/admin-phone-numbers", s.requireAuth(s.handleAdminPhoneNumbers))
	mux.HandleFunc("/notify", s.requireAuth(s.handleNotify))
	mux.HandleFunc("/test-notification", s.requireAuth(s.handleTestNotification))
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// requireAuth enforces Bearer authentication when an API key is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+s.apiKey {
			slog.Warn("Unauthorized API request", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("unauthorized"))
			return
		}
		next(w, r)
	}
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
		slog.Info("API server stopped")
		return nil
	}
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
