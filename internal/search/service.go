// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oven-one/municipal-intel/internal/httputil"
	"github.com/oven-one/municipal-intel/internal/metrics"
	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/pkg/types"
)

// Service is the uniform search entry point: it resolves the jurisdiction
// descriptor, dispatches the wire client, and returns the normalized
// response. Limiters persist per source so rate accounting survives across
// calls; descriptors are re-resolved every call so runtime registry
// changes take effect immediately.
type Service struct {
	reg *registry.Registry
	cfg types.SearchConfig
	log *logrus.Logger
	met *metrics.Metrics

	mu       sync.Mutex
	limiters map[string]*httputil.Limiter
}

// NewService wires the search entry point. log may be nil; met may be nil
// when the caller does not scrape metrics.
func NewService(reg *registry.Registry, cfg types.SearchConfig, log *logrus.Logger, met *metrics.Metrics) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		reg:      reg,
		cfg:      cfg,
		log:      log,
		met:      met,
		limiters: make(map[string]*httputil.Limiter),
	}
}

// Registry exposes the registry for introspection surfaces.
func (s *Service) Registry() *registry.Registry { return s.reg }

// Search executes one uniform search request.
func (s *Service) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	src, err := s.reg.Resolve(req.Jurisdiction)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(src, s.cfg, s.limiterFor(src), s.log)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := client.Search(ctx, req)
	if err != nil {
		s.met.ObserveSearch(src.ID, "error", time.Since(start))
		s.log.WithFields(logrus.Fields{
			"source":  src.ID,
			"dataset": req.Dataset,
		}).WithError(err).Error("search failed")
		return nil, err
	}

	s.met.ObserveSearch(src.ID, "ok", time.Since(start))
	s.met.ObserveResponse(src.ID, len(resp.Projects), len(resp.Adjustments))
	s.log.WithFields(logrus.Fields{
		"source":      src.ID,
		"dataset":     req.Dataset,
		"projects":    len(resp.Projects),
		"total":       resp.Total,
		"adjustments": len(resp.Adjustments),
		"elapsed":     time.Since(start).Round(time.Millisecond).String(),
	}).Info("search completed")

	return resp, nil
}

// limiterFor returns the persistent limiter for a source, creating it on
// first use. Ceiling tier follows token presence at creation time.
func (s *Service) limiterFor(src *registry.Source) *httputil.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[src.ID]; ok {
		return l
	}
	l := httputil.NewLimiter(appToken(src, s.cfg) != "")
	s.limiters[src.ID] = l
	return l
}
