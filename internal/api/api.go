// Package api provides HTTP handlers and the main API server logic for MenuFlow.
//
// It exposes the Twilio inbound webhook, manual response injection, and
// read-only observability endpoints over sessions, messages, and the loaded
// flow definition.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/menuflow/menuflow/internal/engine"
	"github.com/menuflow/menuflow/internal/messaging"
	"github.com/menuflow/menuflow/internal/store"
)

// Default configuration constants
const (
	// DefaultAddr is the default API server listen address
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the HTTP endpoints around the conversation engine.
type Server struct {
	addr       string
	engine     *engine.Engine
	msgService messaging.Service
	st         store.Store
	httpServer *http.Server
}

// NewServer creates an API server over the given engine, messaging service,
// and store.
func NewServer(eng *engine.Engine, msgService messaging.Service, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	return &Server{
		addr:       cfg.Addr,
		engine:     eng,
		msgService: msgService,
		st:         st,
	}
}

// routes builds the HTTP mux for the server.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/twilio", s.twilioWebhookHandler)
	mux.HandleFunc("/response", s.responseHandler)
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/messages", s.messagesHandler)
	mux.HandleFunc("/receipts", s.receiptsHandler)
	mux.HandleFunc("/flow", s.flowHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("API server listener failed", "error", err, "addr", s.addr)
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
		slog.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("API server shutdown failed", "error", err)
			return err
		}
		return nil
	}
}
