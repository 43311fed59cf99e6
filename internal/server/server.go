package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/scheduler"
	"github.com/minjaelee/kis-sentinel/internal/store"
	"github.com/minjaelee/kis-sentinel/internal/trend"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	Poll    *scheduler.PollJob
	Scorer  *trend.Scorer
	Store   *store.Store
	Window  int
	TopN    int
	DevMode bool
}

// Server is the read-only status HTTP surface. It exposes the latest
// computed reports; it never triggers upstream calls itself.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	poll   *scheduler.PollJob
	scorer *trend.Scorer
	store  *store.Store
	window int
	topN   int
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		poll:   cfg.Poll,
		scorer: cfg.Scorer,
		store:  cfg.Store,
		window: cfg.Window,
		topN:   cfg.TopN,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/status", s.handleSystemStatus)
		r.Get("/report/holdings", s.handleHoldingsReport)
		r.Get("/report/trends", s.handleTrendReport)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
