// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrSourceNotFound is returned when no source has the requested ID.
	ErrSourceNotFound = errors.New("source not found")

	// ErrDuplicateSource is returned when registering an ID that already
	// exists, built-in or runtime.
	ErrDuplicateSource = errors.New("source already registered")

	// ErrInvalidSource is returned when a descriptor fails validation.
	ErrInvalidSource = errors.New("invalid source")

	// ErrBuiltinImmutable is returned by operations that would mutate or
	// remove a built-in source.
	ErrBuiltinImmutable = errors.New("built-in source is immutable")

	// ErrUnknownDataset is returned when a request names a dataset the
	// source does not have.
	ErrUnknownDataset = errors.New("unknown dataset")
)

// Registry resolves source descriptors. Built-ins come from the compiled
// catalog and never change after construction; runtime registrations live
// in an overlay that can grow and shrink. Lookups return deep copies, so
// neither callers nor later overlay churn can corrupt the catalog.
type Registry struct {
	builtins map[string]*Source

	mu      sync.RWMutex
	overlay map[string]*Source
}

// New returns a registry seeded with the built-in catalog.
func New() *Registry {
	return &Registry{
		builtins: builtinSources(),
		overlay:  make(map[string]*Source),
	}
}

// Resolve returns a copy of the source with the given ID.
func (r *Registry) Resolve(id string) (*Source, error) {
	if src, ok := r.builtins[id]; ok {
		return src.Clone(), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if src, ok := r.overlay[id]; ok {
		return src.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, id)
}

// Filter narrows List output. Zero values leave a dimension unfiltered.
type Filter struct {
	// State keeps only sources in the given US state.
	State string

	// AccessMethod keeps only sources with the given access method.
	AccessMethod AccessMethod

	// MinPriority keeps only sources with Priority >= MinPriority.
	MinPriority int

	// EnabledOnly drops disabled sources.
	EnabledOnly bool
}

func (f Filter) matches(s *Source) bool {
	if f.State != "" && !strings.EqualFold(f.State, s.State) {
		return false
	}
	if f.AccessMethod != "" && f.AccessMethod != s.AccessMethod {
		return false
	}
	if s.Priority < f.MinPriority {
		return false
	}
	if f.EnabledOnly && !s.Enabled {
		return false
	}
	return true
}

// List returns copies of matching sources, highest priority first, ties
// broken by ID.
func (r *Registry) List(f Filter) []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Source
	for _, src := range r.builtins {
		if f.matches(src) {
			out = append(out, src.Clone())
		}
	}
	for _, src := range r.overlay {
		if f.matches(src) {
			out = append(out, src.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Register adds a runtime source to the overlay. The descriptor is
// validated first and its ID must not collide with any existing source.
func (r *Registry) Register(src *Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidSource)
	}
	if err := src.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if _, ok := r.builtins[src.ID]; ok {
		return fmt.Errorf("%w: %q is a built-in", ErrDuplicateSource, src.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overlay[src.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateSource, src.ID)
	}
	r.overlay[src.ID] = src.Clone()
	return nil
}

// Unregister removes a runtime source. Removing an unknown ID is a no-op;
// removing a built-in is an error.
func (r *Registry) Unregister(id string) error {
	if _, ok := r.builtins[id]; ok {
		return fmt.Errorf("%w: cannot unregister %q", ErrBuiltinImmutable, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overlay, id)
	return nil
}

// SetEnabled flips the enabled flag on a runtime source. Built-ins are
// immutable; health bookkeeping that wants to disable one must shadow it
// with a runtime source under a different ID instead.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	if _, ok := r.builtins[id]; ok {
		return fmt.Errorf("%w: cannot toggle %q", ErrBuiltinImmutable, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.overlay[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSourceNotFound, id)
	}
	src.Enabled = enabled
	return nil
}

// Metadata summarizes registry contents.
type Metadata struct {
	// Version is the built-in catalog version.
	Version string `json:"version" yaml:"version"`

	// Sources is the total number of sources, built-in plus runtime.
	Sources int `json:"sources" yaml:"sources"`

	// Datasets is the total number of datasets across all sources.
	Datasets int `json:"datasets" yaml:"datasets"`
}

// Metadata returns catalog version and registry counts.
func (r *Registry) Metadata() Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := Metadata{Version: catalogVersion}
	for _, src := range r.builtins {
		m.Sources++
		m.Datasets += len(src.Datasets)
	}
	for _, src := range r.overlay {
		m.Sources++
		m.Datasets += len(src.Datasets)
	}
	return m
}

// joinDatasetIDs renders sorted dataset IDs for error messages.
func joinDatasetIDs(datasets map[string]*Dataset) string {
	ids := make([]string, 0, len(datasets))
	for id := range datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
