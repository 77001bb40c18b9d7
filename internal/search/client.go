// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search executes uniform search requests against municipal data
// portals. A dispatcher builds the wire client for a resolved descriptor;
// today that is always the Socrata client, but the descriptor's access
// method and API dialect decide, so new portal families slot in behind the
// same interface.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/oven-one/municipal-intel/internal/httputil"
	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/pkg/types"
)

var (
	// ErrUnsupportedAccessMethod marks descriptors whose access method has
	// no client implementation (portal scraping is declared but not built).
	ErrUnsupportedAccessMethod = errors.New("unsupported access method")

	// ErrUnsupportedAPIType marks API descriptors for a dialect this
	// layer cannot speak.
	ErrUnsupportedAPIType = errors.New("unsupported api type")

	// ErrMissingAPIConfig marks api-method descriptors without an API
	// configuration block.
	ErrMissingAPIConfig = errors.New("missing api config")
)

// Client executes uniform search requests against one data source.
type Client interface {
	Source() *registry.Source
	Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error)
}

// NewClient builds the wire client for src. The limiter carries rate
// accounting across calls, so callers should reuse one limiter per source
// rather than minting one per request.
func NewClient(src *registry.Source, cfg types.SearchConfig, limiter *httputil.Limiter, log *logrus.Logger) (Client, error) {
	if log == nil {
		log = logrus.New()
	}

	switch src.AccessMethod {
	case registry.AccessAPI:
	default:
		return nil, fmt.Errorf("%w: %q (source %s)", ErrUnsupportedAccessMethod, src.AccessMethod, src.ID)
	}

	if src.API == nil {
		return nil, fmt.Errorf("%w: source %s", ErrMissingAPIConfig, src.ID)
	}

	switch src.API.Type {
	case registry.APITypeSocrata:
		return newSocrataClient(src, cfg, limiter, log), nil
	default:
		return nil, fmt.Errorf("%w: %q (source %s)", ErrUnsupportedAPIType, src.API.Type, src.ID)
	}
}

// appToken returns the token presented to the portal. A descriptor-level
// token wins over the configured per-source token, which wins over the
// global one.
func appToken(src *registry.Source, cfg types.SearchConfig) string {
	if src.API != nil && src.API.AppToken != "" {
		return src.API.AppToken
	}
	if tok, ok := cfg.AppTokens[src.ID]; ok && tok != "" {
		return tok
	}
	return cfg.AppToken
}

// newHTTPClient builds the transport honoring the configured timeout.
func newHTTPClient(cfg types.SearchConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}
