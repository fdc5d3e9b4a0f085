// Package api provides the HTTP API for Star Seeker.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/starseeker/starseeker/internal/api/handler"
	"github.com/starseeker/starseeker/internal/api/middleware"
	"github.com/starseeker/starseeker/internal/api/response"
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/network"
	"github.com/starseeker/starseeker/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics records HTTP metrics (optional).
	Metrics *middleware.Metrics
	// Gatherer backs GET /metrics. The endpoint is not mounted when nil.
	Gatherer prometheus.Gatherer

	// RateLimit is the per-IP request budget per minute (default: 100).
	RateLimit int
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	Network  *network.Service
	Gates    *favourites.GateManager
	Routes   *favourites.RouteManager
	Registry *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "starseeker-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Network:   cfg.Network,
		Gates:     cfg.Gates,
		Routes:    cfg.Routes,
		Registry:  cfg.Registry,
	})
	gatesHandler := handler.NewGatesHandler(cfg.Network, cfg.Gates)
	routesHandler := handler.NewRoutesHandler(cfg.Network, cfg.Routes)
	favouritesHandler := handler.NewFavouritesHandler(cfg.Network, cfg.Gates, cfg.Routes)

	standardRateLimit := middleware.PerMinute(cfg.RateLimit).ByIP()
	upstreamRateLimit := middleware.UpstreamReads.ByIP()

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
			r.With(standardRateLimit).Post("/cache/invalidate", opsHandler.InvalidateCache)
		})

		// Reads that may reach the gate network API.
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Use(upstreamRateLimit)

			r.Get("/gates", gatesHandler.ListGates)
			r.Get("/gates/{code}", gatesHandler.GetGate)
			r.Get("/routes", routesHandler.FindRoutes)
			r.Get("/transport/cost", routesHandler.TransportCost)
		})

		r.Route("/favourites", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Use(middleware.RequireJSON)

			r.Route("/gates", func(r chi.Router) {
				r.Get("/", favouritesHandler.ListGates)
				r.Put("/{code}/toggle", favouritesHandler.ToggleGate)
				r.Delete("/{code}", favouritesHandler.RemoveGate)
			})
			r.Route("/routes", func(r chi.Router) {
				r.Get("/", favouritesHandler.ListRoutes)
				r.Post("/toggle", favouritesHandler.ToggleRoute)
				r.Delete("/{id}", favouritesHandler.RemoveRoute)
			})
		})

		r.Route("/history/routes", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", favouritesHandler.ListHistory)
			r.Delete("/", favouritesHandler.ClearHistory)
		})
	})

	return r
}
