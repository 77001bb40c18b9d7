// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the search service over HTTP: source registry
// introspection, search, health, and prometheus metrics. Handlers map the
// typed errors of the lower layers onto HTTP status codes; portal rate
// limits surface as 429 with a Retry-After hint.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/oven-one/municipal-intel/internal/search"
	"github.com/oven-one/municipal-intel/pkg/types"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second

	// writeTimeout leaves room for portal retries behind a single search.
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second
)

// Router assembles the HTTP API. gatherer may be nil to disable the
// /metrics endpoint.
func Router(svc *search.Service, gatherer prometheus.Gatherer, cfg types.ServerConfig, log *logrus.Logger) http.Handler {
	if log == nil {
		log = logrus.New()
	}
	routes := NewRoutes(svc, log)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogging(log))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}).Handler)
	}
	r.Use(ClientLimit(NewClientLimiter(cfg.RequestsPerMinute, cfg.Burst)))

	r.Get("/healthz", routes.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/sources", routes.listSources)
		r.Get("/sources/{id}", routes.getSource)
		r.Get("/search", routes.search)
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// New builds the HTTP server around the assembled router.
func New(cfg types.ServerConfig, svc *search.Service, gatherer prometheus.Gatherer, log *logrus.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           Router(svc, gatherer, cfg, log),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
