package soql

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/pkg/types"
)

// --- test helpers ---

func resolveDataset(t *testing.T, sourceID, datasetID string) (*registry.Source, string, *registry.Dataset) {
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

func translate(t *testing.T, req types.SearchRequest, sourceID, datasetID string) (Query, []string) {
	t.Helper()
	src, id, ds := resolveDataset(t, sourceID, datasetID)
	q, adj, err := Translate(req, src, id, ds)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return q, adj
}

// --- value thresholds ---

func TestTranslateValueCastsTextField(t *testing.T) {
	q, adj := translate(t, types.SearchRequest{Jurisdiction: "sf", MinValue: 50000}, "sf", "")

	where := q.WhereClause()
	if !strings.Contains(where, "revised_cost::number >= 50000") {
		t.Errorf("where = %q, want a numeric cast on revised_cost", where)
	}
	if strings.Contains(where, "'50000'") {
		t.Errorf("where = %q compares against a string literal; that orders 9000 above 80000", where)
	}
	if len(adj) != 0 {
		t.Errorf("adjustments = %v, want none", adj)
	}
}

func TestTranslateValueNumericFieldHasNoCast(t *testing.T) {
	q, _ := translate(t, types.SearchRequest{Jurisdiction: "seattle", MinValue: 80000, MaxValue: 500000}, "seattle", "")

	where := q.WhereClause()
	if !strings.Contains(where, "estprojectcost >= 80000") || !strings.Contains(where, "estprojectcost <= 500000") {
		t.Errorf("where = %q, want plain numeric comparisons", where)
	}
	if strings.Contains(where, "::number") {
		t.Errorf("where = %q casts a field that is already numeric", where)
	}
}

func TestTranslateValueUnmappedIsSkippedWithAdjustment(t *testing.T) {
	req := types.SearchRequest{
		Jurisdiction: "nyc",
		MinValue:     50000,
		Statuses:     []string{"ISSUED"},
	}
	q, adj := translate(t, req, "nyc", "")

	where := q.WhereClause()
	if strings.Contains(where, "50000") {
		t.Errorf("where = %q, value filter should have been dropped", where)
	}
	if !strings.Contains(where, "permit_status in ('ISSUED')") {
		t.Errorf("where = %q, mapped status filter should survive", where)
	}
	if len(adj) != 1 {
		t.Fatalf("adjustments = %v, want exactly one", adj)
	}
	for _, want := range []string{"nyc", "value", "skip"} {
		if !strings.Contains(adj[0], want) {
			t.Errorf("adjustment %q should mention %q", adj[0], want)
		}
	}
}

// --- dates ---

func TestTranslateDateRange(t *testing.T) {
	req := types.SearchRequest{
		Jurisdiction:    "sf",
		SubmittedAfter:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		SubmittedBefore: time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
		ApprovedAfter:   time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	q, adj := translate(t, req, "sf", "")

	where := q.WhereClause()
	for _, want := range []string{
		"filed_date >= '2023-01-01T00:00:00'",
		"filed_date <= '2023-06-30T00:00:00'",
		"issued_date >= '2023-02-01T00:00:00'",
	} {
		if !strings.Contains(where, want) {
			t.Errorf("where = %q, missing %q", where, want)
		}
	}
	if len(adj) != 0 {
		t.Errorf("adjustments = %v, want none", adj)
	}
}

func TestTranslateStripsTimezone(t *testing.T) {
	// 07:00+07:00 is midnight UTC; the rendered literal must carry no
	// zone designator either way.
	zoned := time.Date(2023, 4, 1, 7, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	q, _ := translate(t, types.SearchRequest{Jurisdiction: "sf", SubmittedAfter: zoned}, "sf", "")

	where := q.WhereClause()
	if !strings.Contains(where, "'2023-04-01T00:00:00'") {
		t.Errorf("where = %q, want the UTC floating timestamp", where)
	}
	if strings.Contains(where, "Z") || strings.Contains(where, "+07") {
		t.Errorf("where = %q leaks a timezone designator", where)
	}
}

func TestTranslateUnmappedDates(t *testing.T) {
	// sf/planning has no approval date field.
	req := types.SearchRequest{
		Jurisdiction:   "sf",
		Dataset:        "planning",
		ApprovedAfter:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		ApprovedBefore: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	q, adj := translate(t, req, "sf", "planning")

	if strings.Contains(q.WhereClause(), "2023") {
		t.Errorf("where = %q, approval filters should have been dropped", q.WhereClause())
	}
	if len(adj) != 2 {
		t.Fatalf("adjustments = %v, want one per dropped filter", adj)
	}
	if !strings.Contains(adj[0], "approved_after") || !strings.Contains(adj[1], "approved_before") {
		t.Errorf("adjustments = %v, want after then before", adj)
	}
}

// --- statuses and address ---

func TestTranslateStatusMembership(t *testing.T) {
	req := types.SearchRequest{
		Jurisdiction: "sf",
		Statuses:     []string{"issued", "complete"},
	}
	q, _ := translate(t, req, "sf", "")

	if !strings.Contains(q.WhereClause(), "status in ('issued', 'complete')") {
		t.Errorf("where = %q", q.WhereClause())
	}
}

func TestTranslateStatusQuoteEscaping(t *testing.T) {
	req := types.SearchRequest{Jurisdiction: "sf", Statuses: []string{"it's complicated"}}
	q, _ := translate(t, req, "sf", "")

	if !strings.Contains(q.WhereClause(), "('it''s complicated')") {
		t.Errorf("where = %q, embedded quote not doubled", q.WhereClause())
	}
}

func TestTranslateAddressContains(t *testing.T) {
	req := types.SearchRequest{
		Jurisdiction:    "sf",
		AddressContains: []string{"market", "3rd"},
	}
	q, _ := translate(t, req, "sf", "")

	where := q.WhereClause()
	if !strings.Contains(where, "upper(street_name) like '%MARKET%'") {
		t.Errorf("where = %q, missing case-folded like", where)
	}
	if !strings.Contains(where, "upper(street_name) like '%3RD%'") {
		t.Errorf("where = %q, want one clause per substring", where)
	}
}

// --- keywords ---

func TestTranslateKeywordsUseFullText(t *testing.T) {
	req := types.SearchRequest{Jurisdiction: "sf", Keywords: []string{"solar", "roof"}}
	q, _ := translate(t, req, "sf", "")

	if q.FullText != "solar roof" {
		t.Errorf("FullText = %q, want keywords joined", q.FullText)
	}
	if strings.Contains(q.WhereClause(), "solar") {
		t.Errorf("keywords leaked into $where: %q", q.WhereClause())
	}
	if got := q.Values().Get("$q"); got != "solar roof" {
		t.Errorf("$q = %q", got)
	}
}

// --- sort ---

func TestTranslateSort(t *testing.T) {
	tests := []struct {
		name      string
		req       types.SearchRequest
		wantOrder string
	}{
		{"default newest submissions first", types.SearchRequest{Jurisdiction: "sf"}, "filed_date DESC"},
		{"explicit ascending", types.SearchRequest{Jurisdiction: "sf", SortBy: types.ConceptApprovalDate, SortAsc: true}, "issued_date ASC"},
		{"value sort uses mapped field", types.SearchRequest{Jurisdiction: "sf", SortBy: types.ConceptValue}, "revised_cost DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, adj := translate(t, tt.req, "sf", "")
			if q.Order != tt.wantOrder {
				t.Errorf("Order = %q, want %q", q.Order, tt.wantOrder)
			}
			if len(adj) != 0 {
				t.Errorf("adjustments = %v, want none", adj)
			}
		})
	}
}

func TestTranslateSortFallsBackToInsertionOrder(t *testing.T) {
	req := types.SearchRequest{Jurisdiction: "nyc", SortBy: types.ConceptValue}
	q, adj := translate(t, req, "nyc", "")

	if q.Order != ":id DESC" {
		t.Errorf("Order = %q, want insertion-order fallback", q.Order)
	}
	if len(adj) != 1 || !strings.Contains(adj[0], "sort") {
		t.Errorf("adjustments = %v, want one sort adjustment", adj)
	}
}

// --- paging and rendering ---

func TestTranslatePaging(t *testing.T) {
	req := types.SearchRequest{Jurisdiction: "sf", Limit: 50, Offset: 100}
	q, _ := translate(t, req, "sf", "")

	v := q.Values()
	if v.Get("$limit") != "50" || v.Get("$offset") != "100" {
		t.Errorf("values = %v", v)
	}
}

func TestValuesOmitsEmpty(t *testing.T) {
	v := (Query{}).Values()
	if len(v) != 0 {
		t.Errorf("empty query rendered %v, want no parameters", v)
	}
}

func TestCountValues(t *testing.T) {
	req := types.SearchRequest{
		Jurisdiction: "sf",
		MinValue:     50000,
		Keywords:     []string{"solar"},
		Limit:        50,
		Offset:       100,
	}
	q, _ := translate(t, req, "sf", "")

	v := q.CountValues()
	if v.Get("$select") != "count(*)" {
		t.Errorf("$select = %q", v.Get("$select"))
	}
	if v.Get("$where") == "" || v.Get("$q") == "" {
		t.Error("count query must keep the filters")
	}
	if v.Get("$limit") != "" || v.Get("$offset") != "" || v.Get("$order") != "" {
		t.Errorf("count query must not page or sort: %v", v)
	}
}

// --- validation and determinism ---

func TestTranslateRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  types.SearchRequest
	}{
		{"negative min value", types.SearchRequest{Jurisdiction: "sf", MinValue: -1}},
		{"negative max value", types.SearchRequest{Jurisdiction: "sf", MaxValue: -5}},
		{"min above max", types.SearchRequest{Jurisdiction: "sf", MinValue: 100, MaxValue: 50}},
		{"negative limit", types.SearchRequest{Jurisdiction: "sf", Limit: -1}},
		{"limit above cap", types.SearchRequest{Jurisdiction: "sf", Limit: types.MaxPageSize + 1}},
		{"negative offset", types.SearchRequest{Jurisdiction: "sf", Offset: -10}},
	}
	src, id, ds := resolveDataset(t, "sf", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Translate(tt.req, src, id, ds); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTranslateIsDeterministic(t *testing.T) {
	req := types.SearchRequest{
		Jurisdiction:    "nyc",
		SubmittedAfter:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		MinValue:        50000,
		MaxValue:        900000,
		Statuses:        []string{"ISSUED", "RE-ISSUED"},
		AddressContains: []string{"broadway"},
		Keywords:        []string{"plumbing"},
		SortBy:          types.ConceptValue,
		Limit:           25,
		Offset:          50,
	}
	src, id, ds := resolveDataset(t, "nyc", "")

	q1, adj1, err := Translate(req, src, id, ds)
	if err != nil {
		t.Fatal(err)
	}
	q2, adj2, err := Translate(req, src, id, ds)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(q1, q2) {
		t.Errorf("translation not deterministic:\n%v\n%v", q1, q2)
	}
	if !reflect.DeepEqual(adj1, adj2) {
		t.Errorf("adjustments not deterministic:\n%v\n%v", adj1, adj2)
	}
	if q1.Values().Encode() != q2.Values().Encode() {
		t.Error("rendered parameters differ between identical translations")
	}
}

// --- ParseTime / Timestamp ---

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339", "2023-04-01T12:30:00Z", time.Date(2023, 4, 1, 12, 30, 0, 0, time.UTC), false},
		{"date only", "2023-04-01", time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), false},
		{"us slashes", "04/01/2023", time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), false},
		{"padded", "  2023-04-01  ", time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), false},
		{"garbage", "next tuesday-ish", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Errorf("err = %v, want ErrInvalidDate", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimestampStripsZone(t *testing.T) {
	zoned := time.Date(2023, 4, 1, 0, 0, 0, 0, time.FixedZone("PDT", -7*3600))
	if got := Timestamp(zoned); got != "2023-04-01T07:00:00" {
		t.Errorf("Timestamp = %q", got)
	}
	if strings.ContainsAny(Timestamp(time.Now()), "Z+") {
		t.Error("Timestamp must not carry a zone designator")
	}
}

func TestQuote(t *testing.T) {
	if got := quote("O'Farrell"); got != "'O''Farrell'" {
		t.Errorf("quote = %q", got)
	}
}
