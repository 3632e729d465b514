// Package api exposes the operator-facing HTTP surface: health, the manual
// campaign trigger, and a per-region preview of the rendered email.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/colively/campaign-engine/internal/campaign"
	"github.com/colively/campaign-engine/internal/config"
	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/render"
)

// Runner executes manual campaign runs.
type Runner interface {
	RunManual(ctx context.Context, opts campaign.ManualOptions) domain.CampaignRun
}

// PreviewSource is the best-of-country listing query behind the preview.
type PreviewSource interface {
	TopListingsByCountry(ctx context.Context, code string, limit int) ([]*domain.Listing, error)
}

// PreviewAssembler builds the renderable recommendation for a preview.
type PreviewAssembler interface {
	Assemble(ctx context.Context, listingID, regionUsed string) (*domain.Recommendation, bool)
}

// Server is the trigger API server.
type Server struct {
	config    config.ServerConfig
	runner    Runner
	preview   PreviewSource
	assembler PreviewAssembler
	renderer  *render.Renderer
	handler   http.Handler
	server    *http.Server
}

// NewServer creates the API server and builds its routes.
func NewServer(
	cfg config.ServerConfig,
	runner Runner,
	preview PreviewSource,
	assembler PreviewAssembler,
	renderer *render.Renderer,
) *Server {
	s := &Server{
		config:    cfg,
		runner:    runner,
		preview:   preview,
		assembler: assembler,
		renderer:  renderer,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*.colively.com"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/campaign/trigger", s.handleTrigger)
		r.Get("/regions/{code}/preview", s.handlePreview)
	})

	return r
}

// ListenAndServe starts the HTTP server. Triggered runs can take minutes, so
// the write timeout is generous.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
