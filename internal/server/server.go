// Package server exposes the catalog client over HTTP so several local
// tools can share one session and one rate limit.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"spacetrack/pkg/config"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/query"
	"spacetrack/pkg/ratelimit"
	"spacetrack/pkg/spacetrack"
)

// Querier runs catalog queries. *spacetrack.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, q *query.Builder) (*spacetrack.Result, error)
}

// StatsSource reports gate counters. *ratelimit.Gate satisfies it.
type StatsSource interface {
	Stats() ratelimit.Stats
}

// Server is the query proxy
type Server struct {
	router  *chi.Mux
	server  *http.Server
	cfg     config.ServerConfig
	client  Querier
	gate    StatsSource
	limiter *clientLimiter
	logger  logger.Logger
	started time.Time
}

// New creates the proxy. gate may be nil, in which case /stats answers 404.
func New(cfg config.ServerConfig, client Querier, gate StatsSource, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}

	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		client:  client,
		gate:    gate,
		limiter: newClientLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:  log.WithField("component", "server"),
		started: time.Now(),
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(s.logRequests)
	s.router.Use(s.recovery)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "the requested resource was not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)

	s.router.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Get("/query", s.handleQuery)
		r.Get("/query/{class}", s.handleQuery)
	})
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
}

// Run serves until ctx ends, then shuts down within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.limiter.janitor(ctx, clientCleanupEvery)
		return nil
	})

	g.Go(func() error {
		logger.LogComponentStart(s.logger, "server", map[string]interface{}{
			"addr":  s.server.Addr,
			"rps":   s.cfg.RequestsPerSecond,
			"burst": s.cfg.Burst,
		})
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger.LogComponentStop(s.logger, "server", "context done")
		return s.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
