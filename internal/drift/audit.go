// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package drift

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/internal/search"
	"github.com/oven-one/municipal-intel/pkg/types"
)

const defaultSampleSize = 20

// Report is the outcome of auditing one dataset against live records.
// Only field names are recorded, never record contents.
type Report struct {
	ID        string `json:"id"`
	SourceID  string `json:"source_id"`
	DatasetID string `json:"dataset_id"`
	Endpoint  string `json:"endpoint,omitempty"`

	// Sampled is the number of records the audit inspected. A zero
	// sample supports no conclusions; the diff fields stay empty.
	Sampled int `json:"sampled"`

	// ObservedFields is the union of field names across sampled records.
	ObservedFields []string `json:"observed_fields"`

	// MissingFields are declared in KnownFields but absent from every
	// sampled record.
	MissingFields []string `json:"missing_fields"`

	// UnknownFields were observed but are not declared in KnownFields.
	UnknownFields []string `json:"unknown_fields"`

	// BrokenMappings are FieldMap entries whose physical field was not
	// observed, meaning a filter on that concept silently matches
	// nothing. Entries read "concept: field".
	BrokenMappings []string `json:"broken_mappings"`

	CreatedAt time.Time `json:"created_at"`
}

// Clean reports whether the audit found no drift that affects queries.
// Unknown fields alone are clean; new portal columns are harmless until
// mapped.
func (r *Report) Clean() bool {
	return len(r.MissingFields) == 0 && len(r.BrokenMappings) == 0
}

// Auditor samples live records through the search service and diffs them
// against registry descriptors.
type Auditor struct {
	svc   *search.Service
	store *Store
	size  int
	log   *logrus.Logger
}

// NewAuditor wires an auditor to a search service and a snapshot store.
// The store may be nil for one-off audits that should not persist.
func NewAuditor(svc *search.Service, store *Store, cfg types.AuditConfig, log *logrus.Logger) *Auditor {
	if log == nil {
		log = logrus.New()
	}
	size := cfg.SampleSize
	if size <= 0 {
		size = defaultSampleSize
	}
	return &Auditor{svc: svc, store: store, size: size, log: log}
}

// Audit samples one dataset, builds the drift report, and persists it
// when a store is attached. datasetID may be empty for the source's
// default dataset.
func (a *Auditor) Audit(ctx context.Context, sourceID, datasetID string) (*Report, error) {
	src, err := a.svc.Registry().Resolve(sourceID)
	if err != nil {
		return nil, err
	}
	ds, dsID, err := src.Dataset(datasetID)
	if err != nil {
		return nil, err
	}

	resp, err := a.svc.Search(ctx, types.SearchRequest{
		Jurisdiction: sourceID,
		Dataset:      dsID,
		Limit:        a.size,
	})
	if err != nil {
		return nil, fmt.Errorf("sampling %s/%s: %w", sourceID, dsID, err)
	}

	observed := make(map[string]struct{})
	for _, p := range resp.Projects {
		for field := range p.RawData {
			observed[field] = struct{}{}
		}
	}

	report := buildReport(sourceID, dsID, ds, observed, len(resp.Projects))
	if a.store != nil {
		if err := a.store.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("saving audit: %w", err)
		}
	}
	return report, nil
}

// AuditAll audits the default dataset of every enabled API source
// matching the filter. The access method and enabled-only dimensions are
// forced; the filter can only narrow further (e.g. to one state). A
// failing source is logged and skipped; the remaining reports are still
// returned alongside the last error.
func (a *Auditor) AuditAll(ctx context.Context, f registry.Filter) ([]*Report, error) {
	f.AccessMethod = registry.AccessAPI
	f.EnabledOnly = true
	sources := a.svc.Registry().List(f)

	var (
		reports []*Report
		lastErr error
	)
	for _, src := range sources {
		report, err := a.Audit(ctx, src.ID, "")
		if err != nil {
			a.log.WithError(err).WithField("source", src.ID).Warn("audit failed, continuing")
			lastErr = err
			continue
		}
		reports = append(reports, report)
	}
	return reports, lastErr
}

// History returns stored reports for one dataset, newest first.
// datasetID may be empty for the source's default dataset.
func (a *Auditor) History(ctx context.Context, sourceID, datasetID string, limit int) ([]Report, error) {
	if a.store == nil {
		return nil, fmt.Errorf("no audit store configured")
	}
	if datasetID == "" {
		src, err := a.svc.Registry().Resolve(sourceID)
		if err != nil {
			return nil, err
		}
		datasetID = src.DefaultDataset
	}
	return a.store.History(ctx, sourceID, datasetID, limit)
}

// buildReport diffs observed field names against a dataset descriptor.
// A zero sample yields empty diffs; absence of records is not evidence
// of absent fields.
func buildReport(sourceID, datasetID string, ds *registry.Dataset, observed map[string]struct{}, sampled int) *Report {
	report := &Report{
		SourceID:  sourceID,
		DatasetID: datasetID,
		Endpoint:  ds.Endpoint,
		Sampled:   sampled,
		CreatedAt: time.Now().UTC(),
	}

	for field := range observed {
		report.ObservedFields = append(report.ObservedFields, field)
	}
	sort.Strings(report.ObservedFields)

	if sampled == 0 {
		return report
	}

	for _, field := range ds.KnownFields {
		if _, ok := observed[field]; !ok {
			report.MissingFields = append(report.MissingFields, field)
		}
	}
	sort.Strings(report.MissingFields)

	if len(ds.KnownFields) > 0 {
		known := make(map[string]struct{}, len(ds.KnownFields))
		for _, field := range ds.KnownFields {
			known[field] = struct{}{}
		}
		for _, field := range report.ObservedFields {
			if _, ok := known[field]; !ok {
				report.UnknownFields = append(report.UnknownFields, field)
			}
		}
	}

	for concept, field := range ds.FieldMap {
		if field == "" {
			continue
		}
		if _, ok := observed[field]; !ok {
			report.BrokenMappings = append(report.BrokenMappings, fmt.Sprintf("%s: %s", concept, field))
		}
	}
	sort.Strings(report.BrokenMappings)

	return report
}
