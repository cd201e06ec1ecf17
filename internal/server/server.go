// Package server exposes the router over HTTP for the browser frontend.
// It serves plain JSON completions, SSE and WebSocket streaming, a model
// catalog, and a recent-request audit view.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/resumekit/airouter/internal/config"
	"github.com/resumekit/airouter/internal/router"
	"github.com/resumekit/airouter/internal/store"
)

// Server wires the router, registry, and audit store behind an HTTP API.
type Server struct {
	cfg    *config.Config
	router *router.Router
	models ModelLister
	store  store.Store
	log    zerolog.Logger
	http   *http.Server
}

// ModelLister exposes the per-provider model catalog.
type ModelLister interface {
	Catalog(ctx context.Context) map[string][]string
}

// New constructs the server and its route table.
func New(cfg *config.Config, rt *router.Router, models ModelLister, st store.Store, log zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		router: rt,
		models: models,
		store:  st,
		log:    log,
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/route", s.handleRoute)
		r.Post("/route/stream", s.handleRouteStream)
		r.Get("/route/ws", s.handleWebSocket)
		r.Get("/models", s.handleModels)
		r.Get("/requests", s.handleRequests)
	})

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler returns the route table for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
