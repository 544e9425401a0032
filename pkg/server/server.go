// Package server assembles the HTTP server: routes, middleware chain, and
// graceful shutdown.
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/config"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/limits/ratelimit"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/registry"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/handlers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/middleware"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/metrics"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/tracing"
)

// Dependencies holds everything the server wires into its routes.
type Dependencies struct {
	// Providers is the set of configured upstream adapters.
	Providers *handlers.ProviderSet

	// Registry holds the policies and the active one.
	Registry *registry.Registry

	// Sink receives policy and engine events. Nil disables event emission.
	Sink events.Sink

	// Metrics instruments the stream engine. Nil disables instrumentation.
	Metrics *metrics.StreamMetrics

	// MetricsRegistry backs the /metrics endpoint. Nil disables the route.
	MetricsRegistry *prometheus.Registry

	// Limiter applies per-client admission control. Nil disables it.
	Limiter *ratelimit.Limiter

	// Tracer exports request spans. Nil or disabled skips span creation.
	Tracer *tracing.Tracer

	// Logger is the server's structured logger. Nil uses slog.Default.
	Logger *slog.Logger
}

// Server is the policy-enforcing LLM proxy server.
type Server struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
}

// New creates a server from validated configuration and its dependencies.
func New(cfg *config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
}

// Start runs the HTTP server and blocks until ctx is cancelled, a shutdown
// signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Proxy.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Proxy.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.Proxy.IdleTimeout,
		MaxHeaderBytes:    s.cfg.Proxy.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server",
			"address", s.cfg.Proxy.ListenAddress,
			"policy", s.cfg.Policy.Name,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.Proxy.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Proxy.ShutdownTimeout)
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

		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the route table and middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	chatHandler := handlers.NewChatHandler(
		s.deps.Providers,
		s.deps.Registry,
		s.cfg.Stream.StreamEngine(),
		s.deps.Sink,
		s.deps.Metrics,
		s.logger,
	)

	mux.Handle("/v1/chat/completions", chatHandler)
	mux.Handle("/healthz", handlers.NewHealthHandler())
	mux.Handle("/readyz", handlers.NewReadyHandler(s.deps.Providers, s.deps.Registry))
	mux.Handle("/v1/policy", handlers.NewPolicyHandler(s.deps.Registry))

	if s.cfg.Telemetry.Metrics.Enabled && s.deps.MetricsRegistry != nil {
		mux.Handle(s.cfg.Telemetry.Metrics.Path, metrics.Handler(s.deps.MetricsRegistry))
	}

	// Middleware order, outermost first: recovery, request ID, tracing,
	// logging, rate limiting.
	var handler http.Handler = mux
	handler = middleware.RateLimit(s.deps.Limiter)(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.Tracing(s.deps.Tracer)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(s.logger)(handler)

	return handler
}
