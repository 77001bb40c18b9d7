// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for municipal-intel: the
// uniform search request, the normalized Project entity, and configuration
// for the pieces that talk to open-data portals.
package types

import (
	"fmt"
	"time"
)

// Concept names a logical permit field that search requests and source
// descriptors share. Each source maps concepts to its own physical column
// names; a concept with no mapping on a given dataset cannot be filtered
// or sorted there.
type Concept string

const (
	ConceptID           Concept = "id"
	ConceptTitle        Concept = "title"
	ConceptStatus       Concept = "status"
	ConceptSubmitDate   Concept = "submit_date"
	ConceptApprovalDate Concept = "approval_date"
	ConceptValue        Concept = "value"
	ConceptAddress      Concept = "address"
	ConceptDescription  Concept = "description"
	ConceptApplicant    Concept = "applicant"
)

// SearchRequest holds portal-independent search parameters. Filters that a
// particular dataset cannot express are skipped at translation time and
// reported through SearchResponse.Adjustments rather than failing the call.
type SearchRequest struct {
	// Jurisdiction is the source registry ID to query (e.g. "sf", "nyc").
	Jurisdiction string `json:"jurisdiction" yaml:"jurisdiction"`

	// Dataset selects a dataset within the source. Empty uses the source's
	// default dataset.
	Dataset string `json:"dataset,omitempty" yaml:"dataset,omitempty"`

	// SubmittedAfter and SubmittedBefore bound the filing date.
	SubmittedAfter  time.Time `json:"submitted_after,omitempty" yaml:"submitted_after,omitempty"`
	SubmittedBefore time.Time `json:"submitted_before,omitempty" yaml:"submitted_before,omitempty"`

	// ApprovedAfter and ApprovedBefore bound the approval or issue date.
	ApprovedAfter  time.Time `json:"approved_after,omitempty" yaml:"approved_after,omitempty"`
	ApprovedBefore time.Time `json:"approved_before,omitempty" yaml:"approved_before,omitempty"`

	// MinValue and MaxValue bound the estimated project value in dollars.
	// Zero means unset.
	MinValue float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`

	// Statuses restricts results to the given status values (OR semantics).
	Statuses []string `json:"statuses,omitempty" yaml:"statuses,omitempty"`

	// AddressContains restricts results to records whose address field
	// contains every given substring, case-insensitively.
	AddressContains []string `json:"address_contains,omitempty" yaml:"address_contains,omitempty"`

	// Keywords are full-text search terms passed to the portal's text index.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Limit is the page size. Zero uses the configured default.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`

	// Offset is the number of records to skip.
	Offset int `json:"offset,omitempty" yaml:"offset,omitempty"`

	// SortBy orders results by a concept. Empty sorts by submit date.
	SortBy Concept `json:"sort_by,omitempty" yaml:"sort_by,omitempty"`

	// SortAsc sorts ascending when true. The default is descending, newest
	// records first.
	SortAsc bool `json:"sort_asc,omitempty" yaml:"sort_asc,omitempty"`
}

// MaxPageSize caps the page size a single query may request.
const MaxPageSize = 1000

// Validate checks the source-independent request invariants. Which filters
// a dataset can actually express is a translation concern, not a
// validation one.
func (r SearchRequest) Validate() error {
	if r.MinValue < 0 || r.MaxValue < 0 {
		return fmt.Errorf("value bounds must be non-negative")
	}
	if r.MaxValue > 0 && r.MinValue > r.MaxValue {
		return fmt.Errorf("min_value %v exceeds max_value %v", r.MinValue, r.MaxValue)
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	if r.Limit > MaxPageSize {
		return fmt.Errorf("limit %d exceeds maximum page size %d", r.Limit, MaxPageSize)
	}
	if r.Offset < 0 {
		return fmt.Errorf("offset must be non-negative")
	}
	return nil
}

// Project is the uniform entity produced from one portal record. Typed
// per-field projections were dropped on purpose: field coverage varies too
// much across portals to promise more than an identifier, a readable
// description, and the verbatim record.
type Project struct {
	// ID is the jurisdiction-qualified identifier, "{jurisdiction}-{permit id}".
	// Records missing an ID field get the literal "unknown" in place of one.
	ID string `json:"id" yaml:"id"`

	// Source is the registry ID of the source that produced this record.
	Source string `json:"source" yaml:"source"`

	// Description is a human-readable summary derived from the raw record
	// by the dataset's derivation functions.
	Description string `json:"description" yaml:"description"`

	// RawData is the portal record exactly as decoded, unmodified.
	RawData map[string]any `json:"raw_data" yaml:"raw_data"`

	// LastUpdated is when this entity was constructed, not a portal timestamp.
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
}

// SearchResponse holds one page of normalized results.
type SearchResponse struct {
	// Projects are the normalized records in the requested sort order.
	Projects []Project `json:"projects" yaml:"projects"`

	// Total is the number of matching records across all pages. When the
	// portal's count query fails, Total falls back to the records seen so far.
	Total int `json:"total" yaml:"total"`

	// Page is the 1-based page number implied by Offset and PageSize.
	Page int `json:"page" yaml:"page"`

	// PageSize is the effective page size used for the query.
	PageSize int `json:"page_size" yaml:"page_size"`

	// HasMore reports whether more pages exist beyond this one.
	HasMore bool `json:"has_more" yaml:"has_more"`

	// Adjustments lists one human-readable entry for every requested filter
	// or sort the dataset could not express and the query silently dropped.
	Adjustments []string `json:"adjustments,omitempty" yaml:"adjustments,omitempty"`
}
