// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package soql

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/pkg/types"
)

// ErrInvalidDate is returned by ParseTime for strings that are not
// well-formed instants.
var ErrInvalidDate = errors.New("invalid date")

// timestampLayout is the floating timestamp grammar Socrata accepts in
// $where comparisons. It carries no timezone designator; portals reject
// suffixed instants.
const timestampLayout = "2006-01-02T15:04:05"

// Timestamp renders t in the portal's floating timestamp grammar,
// stripping the timezone.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTime parses a user-supplied date string, accepting RFC 3339,
// plain dates, and the common US formats. Malformed input fails fast with
// ErrInvalidDate rather than passing through to the portal.
func ParseTime(s string) (time.Time, error) {
	t, err := dateparse.ParseAny(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Translate renders req into a SoQL query against one dataset. Filters
// whose concept has no mapped field are skipped with one adjustment string
// per skipped filter, in the order the filters are examined. Translation
// is a pure function of its inputs.
func Translate(req types.SearchRequest, src *registry.Source, datasetID string, ds *registry.Dataset) (Query, []string, error) {
	if err := req.Validate(); err != nil {
		return Query{}, nil, err
	}

	var (
		q           Query
		adjustments []string
	)
	skip := func(what string, concept types.Concept) {
		adjustments = append(adjustments, fmt.Sprintf(
			"%s: %s filter skipped (%s has no field for %s)",
			src.ID, what, datasetID, concept))
	}

	// Filing date range.
	if field, ok := ds.MappedField(types.ConceptSubmitDate); ok {
		if !req.SubmittedAfter.IsZero() {
			q.Where = append(q.Where, fmt.Sprintf("%s >= %s", field, quote(Timestamp(req.SubmittedAfter))))
		}
		if !req.SubmittedBefore.IsZero() {
			q.Where = append(q.Where, fmt.Sprintf("%s <= %s", field, quote(Timestamp(req.SubmittedBefore))))
		}
	} else {
		if !req.SubmittedAfter.IsZero() {
			skip("submitted_after", types.ConceptSubmitDate)
		}
		if !req.SubmittedBefore.IsZero() {
			skip("submitted_before", types.ConceptSubmitDate)
		}
	}

	// Approval date range.
	if field, ok := ds.MappedField(types.ConceptApprovalDate); ok {
		if !req.ApprovedAfter.IsZero() {
			q.Where = append(q.Where, fmt.Sprintf("%s >= %s", field, quote(Timestamp(req.ApprovedAfter))))
		}
		if !req.ApprovedBefore.IsZero() {
			q.Where = append(q.Where, fmt.Sprintf("%s <= %s", field, quote(Timestamp(req.ApprovedBefore))))
		}
	} else {
		if !req.ApprovedAfter.IsZero() {
			skip("approved_after", types.ConceptApprovalDate)
		}
		if !req.ApprovedBefore.IsZero() {
			skip("approved_before", types.ConceptApprovalDate)
		}
	}

	// Value thresholds. Text-typed cost columns compare numerically only
	// under an explicit cast; a bare comparison would be lexical, where
	// "9000" sorts above "80000".
	if field, ok := ds.MappedField(types.ConceptValue); ok {
		expr := field
		if ds.IsTextValueField(field) {
			expr = field + "::number"
		}
		if req.MinValue > 0 {
			q.Where = append(q.Where, fmt.Sprintf("%s >= %s", expr, number(req.MinValue)))
		}
		if req.MaxValue > 0 {
			q.Where = append(q.Where, fmt.Sprintf("%s <= %s", expr, number(req.MaxValue)))
		}
	} else {
		if req.MinValue > 0 {
			skip("min_value", types.ConceptValue)
		}
		if req.MaxValue > 0 {
			skip("max_value", types.ConceptValue)
		}
	}

	// Status membership.
	if len(req.Statuses) > 0 {
		if field, ok := ds.MappedField(types.ConceptStatus); ok {
			quoted := make([]string, len(req.Statuses))
			for i, s := range req.Statuses {
				quoted[i] = quote(s)
			}
			q.Where = append(q.Where, fmt.Sprintf("%s in (%s)", field, strings.Join(quoted, ", ")))
		} else {
			skip("status", types.ConceptStatus)
		}
	}

	// Address substrings, case-insensitive.
	if len(req.AddressContains) > 0 {
		if field, ok := ds.MappedField(types.ConceptAddress); ok {
			for _, sub := range req.AddressContains {
				q.Where = append(q.Where, fmt.Sprintf(
					"upper(%s) like %s", field, quote("%"+strings.ToUpper(sub)+"%")))
			}
		} else {
			skip("address", types.ConceptAddress)
		}
	}

	// Keywords ride the portal's full-text index, not $where.
	if len(req.Keywords) > 0 {
		q.FullText = strings.Join(req.Keywords, " ")
	}

	// Sort. Default is newest submissions first; an unmappable sort
	// concept falls back to insertion order.
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = types.ConceptSubmitDate
	}
	direction := "DESC"
	if req.SortAsc {
		direction = "ASC"
	}
	if field, ok := ds.MappedField(sortBy); ok {
		q.Order = field + " " + direction
	} else {
		q.Order = InsertionOrderField + " " + direction
		adjustments = append(adjustments, fmt.Sprintf(
			"%s: sort by %s not supported on %s, using insertion order",
			src.ID, sortBy, datasetID))
	}

	q.Limit = req.Limit
	q.Offset = req.Offset

	return q, adjustments, nil
}
