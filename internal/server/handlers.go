// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/oven-one/municipal-intel/internal/httputil"
	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/internal/search"
	"github.com/oven-one/municipal-intel/internal/soql"
	"github.com/oven-one/municipal-intel/pkg/types"
)

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SourceListResponse wraps a filtered source listing.
type SourceListResponse struct {
	Sources []*registry.Source `json:"sources"`
	Count   int                `json:"count"`
}

// Routes handles the HTTP API endpoints.
type Routes struct {
	svc *search.Service
	log *logrus.Logger
}

// NewRoutes creates a Routes instance backed by the search service.
func NewRoutes(svc *search.Service, log *logrus.Logger) *Routes {
	if log == nil {
		log = logrus.New()
	}
	return &Routes{svc: svc, log: log}
}

// health handles GET /healthz.
func (*Routes) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// listSources handles GET /v1/sources with optional state, method,
// enabled, and min_priority filters.
func (routes *Routes) listSources(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := registry.Filter{
		State:        query.Get("state"),
		AccessMethod: registry.AccessMethod(query.Get("method")),
	}
	if enabledStr := query.Get("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			writeErrorResponse(w, "invalid enabled parameter: must be a boolean", http.StatusBadRequest)
			return
		}
		filter.EnabledOnly = enabled
	}
	if prioStr := query.Get("min_priority"); prioStr != "" {
		prio, err := strconv.Atoi(prioStr)
		if err != nil {
			writeErrorResponse(w, "invalid min_priority parameter: must be an integer", http.StatusBadRequest)
			return
		}
		filter.MinPriority = prio
	}

	sources := routes.svc.Registry().List(filter)
	writeJSONResponse(w, SourceListResponse{Sources: sources, Count: len(sources)}, http.StatusOK)
}

// getSource handles GET /v1/sources/{id}.
func (routes *Routes) getSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	src, err := routes.svc.Registry().Resolve(id)
	if err != nil {
		writeErrorResponse(w, err.Error(), statusForError(err))
		return
	}
	writeJSONResponse(w, src, http.StatusOK)
}

// search handles GET /v1/search. Query parameters mirror the search
// request fields; status, address, and q repeat.
func (routes *Routes) search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := routes.svc.Search(r.Context(), req)
	if err != nil {
		routes.writeSearchError(w, r, err)
		return
	}
	writeJSONResponse(w, resp, http.StatusOK)
}

func parseSearchRequest(r *http.Request) (types.SearchRequest, error) {
	query := r.URL.Query()

	req := types.SearchRequest{
		Jurisdiction:    query.Get("jurisdiction"),
		Dataset:         query.Get("dataset"),
		Statuses:        query["status"],
		AddressContains: query["address"],
		Keywords:        query["q"],
		SortBy:          types.Concept(query.Get("sort")),
	}
	if req.Jurisdiction == "" {
		return req, fmt.Errorf("jurisdiction parameter is required")
	}

	dates := []struct {
		name string
		dst  *time.Time
	}{
		{"submitted_after", &req.SubmittedAfter},
		{"submitted_before", &req.SubmittedBefore},
		{"approved_after", &req.ApprovedAfter},
		{"approved_before", &req.ApprovedBefore},
	}
	for _, d := range dates {
		raw := query.Get(d.name)
		if raw == "" {
			continue
		}
		t, err := soql.ParseTime(raw)
		if err != nil {
			return req, fmt.Errorf("invalid %s parameter: %w", d.name, err)
		}
		*d.dst = t
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"min_value", &req.MinValue},
		{"max_value", &req.MaxValue},
	}
	for _, f := range floats {
		raw := query.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, fmt.Errorf("invalid %s parameter: must be a number", f.name)
		}
		*f.dst = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"limit", &req.Limit},
		{"offset", &req.Offset},
	}
	for _, i := range ints {
		raw := query.Get(i.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("invalid %s parameter: must be an integer", i.name)
		}
		*i.dst = v
	}

	switch order := query.Get("order"); order {
	case "", "desc":
	case "asc":
		req.SortAsc = true
	default:
		return req, fmt.Errorf("invalid order parameter: must be asc or desc")
	}

	return req, nil
}

func (routes *Routes) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)

	var rateErr *httputil.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Reset > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int((rateErr.Reset+time.Second-1)/time.Second)))
	}
	if status >= http.StatusInternalServerError {
		routes.log.WithError(err).WithFields(logrus.Fields{
			"path":  r.URL.Path,
			"query": r.URL.RawQuery,
		}).Error("search request failed")
	}
	writeErrorResponse(w, err.Error(), status)
}

// statusForError maps the typed errors of the lower layers onto HTTP
// status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, registry.ErrSourceNotFound),
		errors.Is(err, registry.ErrUnknownDataset):
		return http.StatusNotFound
	case errors.Is(err, soql.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrUnsupportedAccessMethod),
		errors.Is(err, search.ErrUnsupportedAPIType):
		return http.StatusNotImplemented
	case errors.Is(err, search.ErrMissingAPIConfig):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var authErr *httputil.AuthError
	if errors.As(err, &authErr) {
		return http.StatusBadGateway
	}
	var rateErr *httputil.RateLimitError
	if errors.As(err, &rateErr) {
		return http.StatusTooManyRequests
	}
	var remoteErr *httputil.RemoteError
	if errors.As(err, &remoteErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeJSONResponse writes a JSON response with the given status.
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes a standardized error response.
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		http.Error(w, "failed to encode error response", http.StatusInternalServerError)
	}
}
