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

	"spxcore/fractal/pkg/config"
	"spxcore/fractal/pkg/governance"
	"spxcore/fractal/pkg/intel"
	"spxcore/fractal/pkg/telemetry/health"
	"spxcore/fractal/pkg/telemetry/metrics"
)

// Dependencies carries the collaborators the server exposes over HTTP.
type Dependencies struct {
	// Service is the governance service. Required.
	Service *governance.Service

	// Timeline serves collected intelligence entries. Optional; the
	// timeline endpoint returns empty results when nil.
	Timeline *intel.Timeline

	// Health aggregates component health checks. Optional.
	Health *health.Checker

	// Metrics owns the Prometheus registry. Optional; when nil the
	// metrics endpoint is not mounted and request metrics are skipped.
	Metrics *metrics.Collector

	// MetricsPath is the mount path for the metrics endpoint.
	MetricsPath string

	// Build information served by the version endpoint.
	Version   string
	Commit    string
	BuildTime string
}

// Server is the HTTP API server for the governance service.
type Server struct {
	config       *config.ServerConfig
	deps         Dependencies
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new API server.
func NewServer(cfg *config.ServerConfig, deps Dependencies) *Server {
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}
	return &Server{
		config:       cfg,
		deps:         deps,
		logger:       slog.Default().With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown. Shutdown is
// triggered by context cancellation, SIGINT/SIGTERM, or a Shutdown call.
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
		Addr:           s.config.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", s.config.ListenAddress)

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

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests up to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Proposal lifecycle
	mux.HandleFunc("POST /api/v1/symbols/{symbol}/proposals", s.handlePropose)
	mux.HandleFunc("GET /api/v1/proposals", s.handleListProposals)
	mux.HandleFunc("GET /api/v1/proposals/{id}", s.handleGetProposal)
	mux.HandleFunc("POST /api/v1/proposals/{id}/apply", s.handleApply)
	mux.HandleFunc("POST /api/v1/proposals/{id}/reject", s.handleReject)
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/proposals/latest", s.handleLatestProposal)
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/proposals/stats", s.handleProposalStats)

	// Policies
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/policy", s.handleCurrentPolicy)
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/policy/history", s.handlePolicyHistory)

	// Governance lock
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/lock", s.handleLockStatus)

	// Learning and drift diagnostics
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/learning", s.handleLearningVector)
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/drift", s.handleDriftReport)

	// Ledger
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/applications", s.handleListApplications)
	mux.HandleFunc("GET /api/v1/applications/{id}", s.handleGetApplication)
	mux.HandleFunc("POST /api/v1/applications/{id}/rollback", s.handleRollback)
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/ledger/verify", s.handleVerifyLedger)

	// Integrity faults
	mux.HandleFunc("GET /api/v1/faults", s.handleListFaults)
	mux.HandleFunc("DELETE /api/v1/faults/{symbol}", s.handleClearFault)

	// Intelligence timeline
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/timeline", s.handleTimeline)

	// Operational endpoints
	mux.HandleFunc("/healthz", s.deps.Health.LivenessHandler())
	mux.HandleFunc("/readyz", s.deps.Health.ReadinessHandler())
	mux.HandleFunc("/version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))
	if s.deps.Metrics != nil {
		mux.Handle(s.deps.MetricsPath, s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux

	handler = timeoutMiddleware(s.config.RequestTimeout)(handler)
	if s.deps.Metrics != nil {
		handler = metricsMiddleware(s.deps.Metrics.HTTP, mux)(handler)
	}
	handler = requestIDMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)

	return handler
}
