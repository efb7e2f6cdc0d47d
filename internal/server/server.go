package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"trustlabel/internal/api"
	"trustlabel/internal/config"
	"trustlabel/internal/logging"
	"trustlabel/internal/notifier"
)

// Server exposes the queue API and the websocket endpoint over HTTP.
type Server struct {
	bind     string
	secret   string
	logger   *slog.Logger
	queueSvc *api.QueueService
	hub      *notifier.Hub

	listener net.Listener
	server   *http.Server
}

// New wires the HTTP routes over a queue service and a notifier hub.
func New(cfg *config.Config, svc *api.QueueService, hub *notifier.Hub, logger *slog.Logger) (*Server, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("server: config and queue service are required")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("server: api_bind is required")
	}

	srv := &Server{
		bind:     bind,
		secret:   cfg.Paths.AuthSecret,
		logger:   logging.NewComponentLogger(logger, "server"),
		queueSvc: svc,
		hub:      hub,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/queue", srv.authenticated(srv.handleQueue))
	mux.HandleFunc("/api/queue/", srv.authenticated(srv.handleQueueItem))
	mux.HandleFunc("/api/metrics", srv.authenticated(srv.handleMetrics))
	if hub != nil {
		mux.HandleFunc("/api/ws", notifier.ServeWS(hub, srv.secret, logger))
		mux.HandleFunc("/api/ws/stats", srv.authenticated(srv.handleConnectionStats))
	}

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Start begins serving and shuts the listener down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound listener address, useful when binding to port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}
