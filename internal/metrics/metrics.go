// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus instruments for the search layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SearchesTotal    *prometheus.CounterVec
	SearchDuration   *prometheus.HistogramVec
	ProjectsReturned *prometheus.CounterVec
	AdjustmentsTotal *prometheus.CounterVec
}

// New creates and registers all metrics on reg. Tests pass a fresh
// registry so repeated construction cannot collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "municipal_intel_searches_total",
			Help: "Total searches executed, by source and outcome",
		}, []string{"source", "status"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "municipal_intel_search_duration_seconds",
			Help:    "Wall time of a full search including retries and count queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		ProjectsReturned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "municipal_intel_projects_returned_total",
			Help: "Total normalized project entities returned to callers",
		}, []string{"source"}),
		AdjustmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "municipal_intel_adjustments_total",
			Help: "Total filters skipped during translation because a dataset lacks the concept",
		}, []string{"source"}),
	}
}

// ObserveSearch records one completed search call.
func (m *Metrics) ObserveSearch(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(source, status).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveResponse records the shape of a successful response.
func (m *Metrics) ObserveResponse(source string, projects, adjustments int) {
	if m == nil {
		return
	}
	m.ProjectsReturned.WithLabelValues(source).Add(float64(projects))
	m.AdjustmentsTotal.WithLabelValues(source).Add(float64(adjustments))
}
