// Package server composes the authenticating proxy: credential check,
// usage recording, upstream forwarding, and the query endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/janus/pkg/auth"
	"mercator-hq/janus/pkg/config"
	"mercator-hq/janus/pkg/proxy"
	"mercator-hq/janus/pkg/proxy/middleware"
	"mercator-hq/janus/pkg/telemetry/metrics"
	"mercator-hq/janus/pkg/usage"
	"mercator-hq/janus/pkg/usage/recorder"
)

// Server is the authenticating proxy server. Every inbound request passes
// through a linear pipeline: authenticate, record the outcome, forward on
// success. The query endpoints /validate, /api_usage, /ping and /metrics
// are dispatched before the catch-all forwarding path.
type Server struct {
	config        *config.Config
	authenticator *auth.Authenticator
	recorder      *recorder.Recorder
	storage       usage.Storage
	forwarder     *proxy.Forwarder
	collector     *metrics.Collector
	logger        *slog.Logger

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a proxy server from its assembled parts. The storage
// passed here must be the same one backing the recorder; /api_usage reads
// from it directly.
func NewServer(
	cfg *config.Config,
	authenticator *auth.Authenticator,
	rec *recorder.Recorder,
	storage usage.Storage,
	forwarder *proxy.Forwarder,
	collector *metrics.Collector,
) *Server {
	return &Server{
		config:        cfg,
		authenticator: authenticator,
		recorder:      rec,
		storage:       storage,
		forwarder:     forwarder,
		collector:     collector,
		logger:        slog.Default().With("component", "server"),
		shutdownChan:  make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server",
			"address", s.config.Server.ListenAddress,
			"upstream", s.forwarder.Target().String(),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server, then drains the usage
// recorder so buffered records reach storage before the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		if err := s.recorder.Close(); err != nil {
			s.logger.Error("error draining usage recorder", "error", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/validate", s.handleValidate)
	mux.HandleFunc("/api_usage", s.handleUsage)
	mux.HandleFunc("/ping", s.handlePing)
	if s.config.Telemetry.Metrics.Enabled {
		mux.Handle("/metrics", s.collector.Handler())
	}
	mux.HandleFunc("/", s.handleProxy)

	var handler http.Handler = mux
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
