package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/strata/pkg/archive"
	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/telemetry/health"
	"mercator-hq/strata/pkg/telemetry/metrics"
	"mercator-hq/strata/pkg/telemetry/tracing"
)

// Runner starts an archive pass.
type Runner interface {
	Run(ctx context.Context) (archive.RunResult, error)
}

// Options holds the collaborators of a Server.
type Options struct {
	// Engine answers status and stub queries. Required.
	Engine *archive.Engine

	// Runner runs archive-now requests. Required.
	Runner Runner

	// Checker serves /readyz. Nil reports ready with no checks.
	Checker *health.Checker

	// Gatherer is served at MetricsPath. Nil disables the endpoint.
	Gatherer    prometheus.Gatherer
	MetricsPath string

	// HTTPMetrics records request metrics. Optional.
	HTTPMetrics *metrics.HTTPMetrics

	// Tracer traces requests. Optional.
	Tracer trace.Tracer

	// Version, Commit and BuildTime are served at /version.
	Version   string
	Commit    string
	BuildTime string
}

// Server is the admin HTTP server.
type Server struct {
	config     config.ServerConfig
	opts       Options
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
	mu         sync.RWMutex
	isRunning  bool
	shutdown   sync.Once
}

// New creates an admin server.
func New(cfg config.ServerConfig, opts Options) *Server {
	if opts.Checker == nil {
		opts.Checker = health.New(0)
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Server{
		config: cfg,
		opts:   opts,
		logger: slog.Default().With("component", "server"),
	}
}

// Handler returns the router with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(recoveryMiddleware(s.logger))
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	if s.opts.Tracer != nil {
		r.Use(tracing.HTTPMiddleware(s.opts.Tracer))
	}
	if s.opts.HTTPMetrics != nil {
		r.Use(s.opts.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", s.opts.Checker.LivenessHandler())
	r.Get("/readyz", s.opts.Checker.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.opts.Version, s.opts.Commit, s.opts.BuildTime))
	if s.opts.Gatherer != nil {
		r.Handle(s.opts.MetricsPath, metrics.Handler(s.opts.Gatherer))
	}

	h := &handlers{engine: s.opts.Engine, runner: s.opts.Runner, logger: s.logger}
	r.Route("/archive", func(r chi.Router) {
		r.Get("/", h.confirm)
		r.Post("/", h.archiveNow)
		r.Get("/status", h.status)
		r.Get("/items", h.listItems)
		r.Get("/items/{id}", h.getItem)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdown.Do(func() {
		s.mu.RLock()
		srv := s.httpServer
		s.mu.RUnlock()
		if srv == nil {
			return
		}

		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("admin server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
