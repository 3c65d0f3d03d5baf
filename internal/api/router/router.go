// Package router wires the HTTP surface: webhook endpoints, health
// check and the Prometheus scrape handler.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harborhomes/leadrouter/internal/http/handlers"
	httpmiddleware "github.com/harborhomes/leadrouter/internal/http/middleware"
	"github.com/harborhomes/leadrouter/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Webhooks       *handlers.GHLWebhookHandler
	MetricsHandler http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Webhooks.HealthCheck)
	r.Route("/webhooks/ghl", func(r chi.Router) {
		r.Post("/message", cfg.Webhooks.HandleMessage)
		r.Post("/tag", cfg.Webhooks.HandleTag)
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
