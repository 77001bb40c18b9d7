//go:build property
// +build property

// Property-based tests for the SoQL translator: determinism, adjustment
// accounting, and the numeric-cast rule for text-stored cost fields.
package soql_test

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/internal/soql"
	"github.com/oven-one/municipal-intel/pkg/types"
)

func mustDataset(t *testing.T, sourceID, datasetID string) (*registry.Source, string, *registry.Dataset) {
	t.Helper()
	src, err := registry.New().Resolve(sourceID)
	if err != nil {
		t.Fatal(err)
	}
	ds, id, err := src.Dataset(datasetID)
	if err != nil {
		t.Fatal(err)
	}
	return src, id, ds
}

// TestTranslationDeterminism verifies that translating the same request
// twice yields identical queries and adjustments.
// Property: Translate(req) == Translate(req) for any valid req
func TestTranslationDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	src, id, ds := mustDataset(t, "sf", "")

	properties.Property("translation is deterministic", prop.ForAll(
		func(submitted int64, lo, hi float64, statuses []string, keyword string, limit, offset int, asc bool) bool {
			if lo > hi {
				lo, hi = hi, lo
			}
			req := types.SearchRequest{
				Jurisdiction:   "sf",
				SubmittedAfter: time.Unix(submitted, 0).UTC(),
				MinValue:       lo,
				MaxValue:       hi,
				Statuses:       statuses,
				Keywords:       []string{keyword},
				Limit:          limit,
				Offset:         offset,
				SortAsc:        asc,
			}

			q1, adj1, err1 := soql.Translate(req, src, id, ds)
			q2, adj2, err2 := soql.Translate(req, src, id, ds)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			if q1.Values().Encode() != q2.Values().Encode() {
				return false
			}
			if len(adj1) != len(adj2) {
				return false
			}
			for i := range adj1 {
				if adj1[i] != adj2[i] {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, 2_000_000_000),
		gen.Float64Range(0, 1e8),
		gen.Float64Range(0, 1e8),
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
		gen.IntRange(0, types.MaxPageSize),
		gen.IntRange(0, 100_000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestAdjustmentAccounting verifies one adjustment per unexpressible
// filter, no more and no fewer.
// Property: len(adjustments) == number of requested filters the dataset
// cannot express
func TestAdjustmentAccounting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// sf/planning maps neither approval dates nor valuation, so every
	// one of those filters must surface as an adjustment.
	src, id, ds := mustDataset(t, "sf", "planning")

	properties.Property("each dropped filter yields exactly one adjustment", prop.ForAll(
		func(withAfter, withBefore, withMin, withMax bool, value float64) bool {
			req := types.SearchRequest{Jurisdiction: "sf", Dataset: "planning"}
			want := 0
			if withAfter {
				req.ApprovedAfter = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
				want++
			}
			if withBefore {
				req.ApprovedBefore = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
				want++
			}
			if withMin {
				req.MinValue = 1 + value
				want++
			}
			if withMax {
				req.MaxValue = 1e9 + value
				want++
			}

			_, adj, err := soql.Translate(req, src, id, ds)
			if err != nil {
				return false
			}
			return len(adj) == want
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.Float64Range(0, 1e6),
	))

	properties.TestingRun(t)
}

// TestTextCostFieldsAlwaysCast verifies that value thresholds against a
// text-stored cost field always compare through a numeric cast, never
// against a quoted literal.
// Property: where contains "field::number", never "'<threshold>'"
func TestTextCostFieldsAlwaysCast(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	src, id, ds := mustDataset(t, "sf", "")

	properties.Property("text-stored costs compare numerically", prop.ForAll(
		func(lo, span float64) bool {
			req := types.SearchRequest{
				Jurisdiction: "sf",
				MinValue:     lo,
				MaxValue:     lo + span,
			}
			q, _, err := soql.Translate(req, src, id, ds)
			if err != nil {
				return false
			}
			where := q.WhereClause()
			if !strings.Contains(where, "revised_cost::number >= ") {
				return false
			}
			if !strings.Contains(where, "revised_cost::number <= ") {
				return false
			}
			// A quoted threshold would reintroduce lexical ordering.
			return !strings.Contains(where, "'")
		},
		gen.Float64Range(1, 1e8),
		gen.Float64Range(0, 1e8),
	))

	properties.TestingRun(t)
}

// TestStatusQuotingSafety verifies embedded single quotes are always
// doubled inside membership literals.
// Property: rendered clause contains the status with ' replaced by ''
func TestStatusQuotingSafety(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	src, id, ds := mustDataset(t, "sf", "")

	properties.Property("status literals double embedded quotes", prop.ForAll(
		func(status string) bool {
			if status == "" {
				return true
			}
			req := types.SearchRequest{Jurisdiction: "sf", Statuses: []string{status}}
			q, _, err := soql.Translate(req, src, id, ds)
			if err != nil {
				return false
			}
			escaped := strings.ReplaceAll(status, "'", "''")
			return strings.Contains(q.WhereClause(), "('"+escaped+"')")
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestCountQueryNeverPages verifies the count form of any query keeps
// filters but strips paging and ordering.
func TestCountQueryNeverPages(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	src, id, ds := mustDataset(t, "sf", "")

	properties.Property("count queries carry no paging parameters", prop.ForAll(
		func(limit, offset int, keyword string) bool {
			req := types.SearchRequest{
				Jurisdiction: "sf",
				Keywords:     []string{keyword},
				Limit:        limit,
				Offset:       offset,
			}
			q, _, err := soql.Translate(req, src, id, ds)
			if err != nil {
				return false
			}
			v := q.CountValues()
			if v.Get("$select") != "count(*)" {
				return false
			}
			return v.Get("$limit") == "" && v.Get("$offset") == "" && v.Get("$order") == ""
		},
		gen.IntRange(0, types.MaxPageSize),
		gen.IntRange(0, 100_000),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
