// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/oven-one/municipal-intel/internal/soql"
	"github.com/oven-one/municipal-intel/pkg/types"
)

// QueryFile is the on-disk representation of a search and its results. An
// analyst can save a search to a file and reload it later without
// re-querying the portal, or hand-write just the request block and run it
// with the CLI.
type QueryFile struct {
	Request  RequestParams   `yaml:"request"`
	Projects []types.Project `yaml:"projects,omitempty"`
	Summary  QuerySummary    `yaml:"summary,omitempty"`
}

// RequestParams stores the request in a serializable form. Dates are
// strings so hand-edited files can use whatever format reads naturally.
type RequestParams struct {
	Jurisdiction    string   `yaml:"jurisdiction"`
	Dataset         string   `yaml:"dataset,omitempty"`
	SubmittedAfter  string   `yaml:"submitted_after,omitempty"`
	SubmittedBefore string   `yaml:"submitted_before,omitempty"`
	ApprovedAfter   string   `yaml:"approved_after,omitempty"`
	ApprovedBefore  string   `yaml:"approved_before,omitempty"`
	MinValue        float64  `yaml:"min_value,omitempty"`
	MaxValue        float64  `yaml:"max_value,omitempty"`
	Statuses        []string `yaml:"statuses,omitempty"`
	AddressContains []string `yaml:"address_contains,omitempty"`
	Keywords        []string `yaml:"keywords,omitempty"`
	Limit           int      `yaml:"limit,omitempty"`
	Offset          int      `yaml:"offset,omitempty"`
	SortBy          string   `yaml:"sort_by,omitempty"`
	SortAsc         bool     `yaml:"sort_asc,omitempty"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total       int       `yaml:"total"`
	Returned    int       `yaml:"returned"`
	HasMore     bool      `yaml:"has_more"`
	Adjustments []string  `yaml:"adjustments,omitempty"`
	Timestamp   time.Time `yaml:"timestamp"`
}

const dateFmt = "2006-01-02"

// WriteQueryFile saves the request and its results to a YAML file.
func WriteQueryFile(path string, req types.SearchRequest, resp *types.SearchResponse) error {
	qf := QueryFile{
		Request:  FromRequest(req),
		Projects: resp.Projects,
		Summary: QuerySummary{
			Total:       resp.Total,
			Returned:    len(resp.Projects),
			HasMore:     resp.HasMore,
			Adjustments: resp.Adjustments,
			Timestamp:   time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// FromRequest converts a request into its serializable form.
func FromRequest(req types.SearchRequest) RequestParams {
	p := RequestParams{
		Jurisdiction:    req.Jurisdiction,
		Dataset:         req.Dataset,
		MinValue:        req.MinValue,
		MaxValue:        req.MaxValue,
		Statuses:        req.Statuses,
		AddressContains: req.AddressContains,
		Keywords:        req.Keywords,
		Limit:           req.Limit,
		Offset:          req.Offset,
		SortBy:          string(req.SortBy),
		SortAsc:         req.SortAsc,
	}
	if !req.SubmittedAfter.IsZero() {
		p.SubmittedAfter = req.SubmittedAfter.Format(dateFmt)
	}
	if !req.SubmittedBefore.IsZero() {
		p.SubmittedBefore = req.SubmittedBefore.Format(dateFmt)
	}
	if !req.ApprovedAfter.IsZero() {
		p.ApprovedAfter = req.ApprovedAfter.Format(dateFmt)
	}
	if !req.ApprovedBefore.IsZero() {
		p.ApprovedBefore = req.ApprovedBefore.Format(dateFmt)
	}
	return p
}

// ToRequest converts stored parameters back into a search request.
func (p RequestParams) ToRequest() (types.SearchRequest, error) {
	req := types.SearchRequest{
		Jurisdiction:    p.Jurisdiction,
		Dataset:         p.Dataset,
		MinValue:        p.MinValue,
		MaxValue:        p.MaxValue,
		Statuses:        p.Statuses,
		AddressContains: p.AddressContains,
		Keywords:        p.Keywords,
		Limit:           p.Limit,
		Offset:          p.Offset,
		SortBy:          types.Concept(p.SortBy),
		SortAsc:         p.SortAsc,
	}

	var err error
	set := func(dst *time.Time, field, value string) {
		if err != nil || value == "" {
			return
		}
		t, parseErr := soql.ParseTime(value)
		if parseErr != nil {
			err = fmt.Errorf("invalid %s: %w", field, parseErr)
			return
		}
		*dst = t
	}
	set(&req.SubmittedAfter, "submitted_after", p.SubmittedAfter)
	set(&req.SubmittedBefore, "submitted_before", p.SubmittedBefore)
	set(&req.ApprovedAfter, "approved_after", p.ApprovedAfter)
	set(&req.ApprovedBefore, "approved_before", p.ApprovedBefore)
	if err != nil {
		return types.SearchRequest{}, err
	}
	return req, nil
}
