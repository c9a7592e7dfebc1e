// Package server exposes the optional status/control HTTP surface and the
// live websocket alert feed.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server is the headless HTTP + WebSocket surface for tokensentry. It is a
// thin wrapper: all behavior lives in the engine components it fronts.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered on a ServeMux.
func New(addr string, h *Handler, hub *Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("GET /alerts/recent", h.RecentAlerts)
	mux.HandleFunc("POST /control/pause", h.Pause)
	mux.HandleFunc("POST /control/resume", h.Resume)
	mux.HandleFunc("PATCH /control/settings", h.UpdateSettings)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// complete within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}
