// Package server exposes the running sync engine over HTTP: a health probe
// and a JSON snapshot of the current run's statistics. Read-only; all
// mutation happens through the scheduler and the CLI.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/halcyondata/visionsync/internal/breaker"
	"github.com/halcyondata/visionsync/internal/stats"
	"github.com/halcyondata/visionsync/internal/syncer"
)

// Server serves the status API.
type Server struct {
	router  chi.Router
	server  *http.Server
	run     *stats.Run
	breaker *breaker.Breaker
	log     zerolog.Logger

	mu         sync.RWMutex
	lastResult *syncer.RunResult
}

// New creates the status server on the given port.
func New(port int, run *stats.Run, brk *breaker.Breaker, log zerolog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		run:     run,
		breaker: brk,
		log:     log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
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
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/result", s.handleResult)
	})
}

// SetLastResult records the most recent completed run for /api/result.
func (s *Server) SetLastResult(result syncer.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = &result
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.server.Addr).Msg("Status server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("Status server failed")
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler. Test hook.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status":       "ok",
		"breaker_open": s.breaker.Open(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.run.Snapshot())
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	result := s.lastResult
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, `{"error":"no completed run yet"}`, http.StatusNotFound)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
