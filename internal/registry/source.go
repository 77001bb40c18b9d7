// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry holds the source registry: declarative descriptors for
// every supported municipal open-data portal, a built-in catalog, and a
// runtime overlay for sources registered at runtime. Descriptors carry the
// concept-to-field mappings and derivation functions that the query
// translator and result normalizer consume.
package registry

import (
	"fmt"

	"github.com/oven-one/municipal-intel/pkg/types"
)

// AccessMethod tells the dispatcher how a source is reached.
type AccessMethod string

const (
	// AccessAPI marks sources with a structured query API.
	AccessAPI AccessMethod = "api"

	// AccessPortal marks sources with only a human-facing search portal.
	// Declared for descriptor completeness; no client exists yet.
	AccessPortal AccessMethod = "portal"

	// AccessScraping marks sources that would require HTML scraping.
	// Declared for descriptor completeness; no client exists yet.
	AccessScraping AccessMethod = "scraping"
)

// APIType identifies the query dialect spoken by an API source.
type APIType string

// APITypeSocrata is the Socrata Open Data API (SoQL dialect).
const APITypeSocrata APIType = "socrata"

// DeriveFunc builds one string (an address, a summary line) from a raw
// portal record. Implementations should handle missing or oddly typed
// fields themselves; the normalizer treats both errors and panics as an
// absent result and substitutes a fallback.
type DeriveFunc func(rec map[string]any) (string, error)

// Derivations is the capability record attached to a dataset: functions
// that rebuild composite values the portal does not store directly.
type Derivations struct {
	// Address assembles a street address from the record's parts.
	Address DeriveFunc

	// Summary produces the one-line human-readable description used as
	// Project.Description.
	Summary DeriveFunc
}

// Dataset describes one queryable dataset within a source.
type Dataset struct {
	// Endpoint is the resource path under the source's base URL
	// (e.g. "/resource/i98e-djp9.json").
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Name is a human-readable dataset title.
	Name string `json:"name" yaml:"name"`

	// FieldMap maps logical concepts to this dataset's physical field
	// names. Concepts absent from the map cannot be filtered or sorted
	// on this dataset.
	FieldMap map[types.Concept]string `json:"field_map" yaml:"field_map"`

	// TextValueFields lists numeric fields the portal stores as text.
	// Comparisons against them must cast to a number first; a lexical
	// comparison would order "9000" above "80000".
	TextValueFields []string `json:"text_value_fields,omitempty" yaml:"text_value_fields,omitempty"`

	// KnownFields is the expected physical schema, informational only.
	// The drift auditor diffs it against live records; queries never
	// validate against it.
	KnownFields []string `json:"known_fields,omitempty" yaml:"known_fields,omitempty"`

	// Derive holds the dataset's derivation functions. Optional; datasets
	// without one get generic fallback descriptions.
	Derive *Derivations `json:"-" yaml:"-"`
}

// MappedField returns the physical field for a concept and whether the
// dataset maps it.
func (d *Dataset) MappedField(c types.Concept) (string, bool) {
	f, ok := d.FieldMap[c]
	return f, ok && f != ""
}

// IsTextValueField reports whether the named field is stored as text and
// needs a numeric cast in comparisons.
func (d *Dataset) IsTextValueField(field string) bool {
	for _, f := range d.TextValueFields {
		if f == field {
			return true
		}
	}
	return false
}

// APIConfig holds connection details for API sources.
type APIConfig struct {
	// Type selects the query dialect. Only "socrata" is implemented.
	Type APIType `json:"type" yaml:"type"`

	// BaseURL is the portal root (e.g. "https://data.sfgov.org").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// AppToken overrides the globally configured application token for
	// this source.
	AppToken string `json:"app_token,omitempty" yaml:"app_token,omitempty"`
}

// Source is a registry descriptor for one jurisdiction.
type Source struct {
	// ID is the stable registry identifier (e.g. "sf").
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable jurisdiction name.
	Name string `json:"name" yaml:"name"`

	// State is the two-letter US state code.
	State string `json:"state" yaml:"state"`

	// AccessMethod tells the dispatcher how to reach the source.
	AccessMethod AccessMethod `json:"access_method" yaml:"access_method"`

	// API holds connection details. Required when AccessMethod is "api".
	API *APIConfig `json:"api,omitempty" yaml:"api,omitempty"`

	// Datasets maps dataset IDs to their descriptors.
	Datasets map[string]*Dataset `json:"datasets" yaml:"datasets"`

	// DefaultDataset is the dataset used when a request names none. Must
	// key an entry of Datasets.
	DefaultDataset string `json:"default_dataset" yaml:"default_dataset"`

	// Priority ranks sources for listing (higher first).
	Priority int `json:"priority" yaml:"priority"`

	// Enabled gates the source. Disabled sources resolve but are excluded
	// from enabled-only listings.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Validate checks the descriptor for the fields the dispatcher and
// translator depend on.
func (s *Source) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("source has no id")
	}
	if s.Name == "" {
		return fmt.Errorf("source %s has no name", s.ID)
	}
	switch s.AccessMethod {
	case AccessAPI, AccessPortal, AccessScraping:
	default:
		return fmt.Errorf("source %s has unknown access method %q", s.ID, s.AccessMethod)
	}
	if s.AccessMethod == AccessAPI {
		if s.API == nil {
			return fmt.Errorf("source %s is an api source but has no api config", s.ID)
		}
		if s.API.Type == "" {
			return fmt.Errorf("source %s api config has no type", s.ID)
		}
		if s.API.BaseURL == "" {
			return fmt.Errorf("source %s api config has no base_url", s.ID)
		}
	}
	if len(s.Datasets) == 0 {
		return fmt.Errorf("source %s has no datasets", s.ID)
	}
	if s.DefaultDataset == "" {
		return fmt.Errorf("source %s has no default dataset", s.ID)
	}
	if _, ok := s.Datasets[s.DefaultDataset]; !ok {
		return fmt.Errorf("source %s default dataset %q is not in datasets", s.ID, s.DefaultDataset)
	}
	for id, ds := range s.Datasets {
		if ds == nil {
			return fmt.Errorf("source %s dataset %s is nil", s.ID, id)
		}
		if ds.Endpoint == "" {
			return fmt.Errorf("source %s dataset %s has no endpoint", s.ID, id)
		}
	}
	return nil
}

// Dataset resolves a dataset ID, falling back to the default for "".
// The returned list of valid IDs is sorted for stable error messages.
func (s *Source) Dataset(id string) (*Dataset, string, error) {
	if id == "" {
		id = s.DefaultDataset
	}
	ds, ok := s.Datasets[id]
	if !ok {
		return nil, "", fmt.Errorf("%w: source %s has no dataset %q (valid: %s)",
			ErrUnknownDataset, s.ID, id, joinDatasetIDs(s.Datasets))
	}
	return ds, id, nil
}

// Clone returns a deep copy sharing only the derivation functions, so
// callers can hold descriptors without racing registry mutations.
func (s *Source) Clone() *Source {
	out := *s
	if s.API != nil {
		api := *s.API
		out.API = &api
	}
	out.Datasets = make(map[string]*Dataset, len(s.Datasets))
	for id, ds := range s.Datasets {
		out.Datasets[id] = ds.clone()
	}
	return &out
}

func (d *Dataset) clone() *Dataset {
	out := *d
	out.FieldMap = make(map[types.Concept]string, len(d.FieldMap))
	for c, f := range d.FieldMap {
		out.FieldMap[c] = f
	}
	out.TextValueFields = append([]string(nil), d.TextValueFields...)
	out.KnownFields = append([]string(nil), d.KnownFields...)
	return &out
}
