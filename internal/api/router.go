// Package api provides the HTTP API for routekit.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/breatheroute/routekit/internal/api/handler"
	"github.com/breatheroute/routekit/internal/api/middleware"
	"github.com/breatheroute/routekit/internal/api/models"
	"github.com/breatheroute/routekit/internal/api/response"
	"github.com/breatheroute/routekit/internal/provider/resilience"
	"github.com/breatheroute/routekit/internal/routing"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics
	Service   *routing.Service
	Registry  *resilience.Registry
	// RateLimit is the number of routing requests allowed per client IP per minute.
	// Zero disables limiting.
	RateLimit int
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP) // Before rate limiting, which keys on the client IP
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewMethodNotAllowed(middleware.GetRequestID(r.Context()), r.Method+" is not allowed on this endpoint"))
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	routingHandler := handler.NewRoutingHandler(cfg.Service, cfg.Registry)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", routingHandler.ListProviders)
			r.Route("/{provider}", func(r chi.Router) {
				r.Get("/", routingHandler.GetProvider)

				// Every call fans out to an upstream provider.
				r.Group(func(r chi.Router) {
					r.Use(middleware.RateLimitByIP(middleware.PerMinute(cfg.RateLimit)))
					r.Use(middleware.RequireJSON)
					r.Post("/directions", routingHandler.Directions)
					r.Post("/isochrones", routingHandler.Isochrones)
					r.Post("/matrix", routingHandler.Matrix)
				})
			})
		})
	})

	return r
}
