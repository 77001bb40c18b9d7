package search

import (
	"reflect"
	"strings"
	"testing"

	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/pkg/types"
)

func sfPermits(t *testing.T) (*registry.Source, *registry.Dataset) {
	t.Helper()
	src, err := registry.New().Resolve("sf")
	if err != nil {
		t.Fatal(err)
	}
	ds, _, err := src.Dataset("permits")
	if err != nil {
		t.Fatal(err)
	}
	return src, ds
}

// --- entity construction ---

func TestNormalize(t *testing.T) {
	src, ds := sfPermits(t)
	row := map[string]any{
		"permit_number": "202304018888",
		"description":   "kitchen remodel",
		"status":        "issued",
		"filed_date":    "2023-04-01T00:00:00.000",
		"revised_cost":  "45000",
		"street_number": "123",
		"street_name":   "MARKET",
		"street_suffix": "ST",
	}

	p := Normalize(src, ds, row)

	if p.ID != "sf-202304018888" {
		t.Errorf("ID = %q, want jurisdiction-prefixed permit number", p.ID)
	}
	if p.Source != "sf" {
		t.Errorf("Source = %q", p.Source)
	}
	if p.Description == "" || !strings.Contains(p.Description, "kitchen remodel") {
		t.Errorf("Description = %q, want the derived summary", p.Description)
	}
	if p.LastUpdated.IsZero() {
		t.Error("LastUpdated should be set to construction time")
	}
}

func TestNormalizeRawDataRoundTrip(t *testing.T) {
	src, ds := sfPermits(t)
	row := map[string]any{
		"permit_number": "1",
		"extra_field":   "survives untouched",
		"numeric":       float64(7),
		"nested":        map[string]any{"k": "v"},
	}

	p := Normalize(src, ds, row)

	if !reflect.DeepEqual(p.RawData, row) {
		t.Errorf("RawData = %#v, want the record verbatim", p.RawData)
	}
}

func TestNormalizeMissingID(t *testing.T) {
	src, ds := sfPermits(t)

	p := Normalize(src, ds, map[string]any{"status": "filed"})

	if p.ID != "sf-unknown" {
		t.Errorf("ID = %q, want the unknown sentinel", p.ID)
	}
}

// --- fallback description ---

func TestNormalizeMalformedDateFallsBack(t *testing.T) {
	src, ds := sfPermits(t)
	row := map[string]any{
		"permit_number": "202304019999",
		"description":   "roof replacement",
		"filed_date":    "not-a-date",
	}

	p := Normalize(src, ds, row)

	if p.Description == "" {
		t.Fatal("fallback description must be non-empty")
	}
	if !strings.Contains(p.Description, "Building Permits") {
		t.Errorf("Description = %q, want the generic fallback", p.Description)
	}
	if !reflect.DeepEqual(p.RawData, row) {
		t.Error("fallback must not disturb RawData")
	}
}

func TestNormalizePanickingDerivation(t *testing.T) {
	src, ds := sfPermits(t)
	ds.Derive = &registry.Derivations{
		Summary: func(map[string]any) (string, error) {
			panic("corrupt record")
		},
	}

	p := Normalize(src, ds, map[string]any{"permit_number": "42"})

	if p.Description == "" {
		t.Fatal("panic in derivation must yield the fallback, not propagate")
	}
	if p.ID != "sf-42" {
		t.Errorf("ID = %q", p.ID)
	}
}

func TestNormalizeBlankSummaryFallsBack(t *testing.T) {
	src, ds := sfPermits(t)
	ds.Derive = &registry.Derivations{
		Summary: func(map[string]any) (string, error) { return "   ", nil },
	}

	p := Normalize(src, ds, map[string]any{"permit_number": "42"})

	if strings.TrimSpace(p.Description) == "" {
		t.Error("blank derived summary must fall back")
	}
}

func TestNormalizeWithoutDerivations(t *testing.T) {
	// Runtime overlay sources carry no derivation closures; the summary
	// comes from mapped concepts instead.
	src := &registry.Source{ID: "oakland", Name: "Oakland"}
	ds := &registry.Dataset{
		Name: "Permits",
		FieldMap: map[types.Concept]string{
			types.ConceptID:      "permit_id",
			types.ConceptTitle:   "work_description",
			types.ConceptStatus:  "current_status",
			types.ConceptAddress: "site_address",
		},
	}
	row := map[string]any{
		"permit_id":        "OAK-77",
		"work_description": "seismic retrofit",
		"current_status":   "approved",
		"site_address":     "1 FRANK OGAWA PLZ",
	}

	p := Normalize(src, ds, row)

	if p.ID != "oakland-OAK-77" {
		t.Errorf("ID = %q", p.ID)
	}
	want := "seismic retrofit, approved, 1 FRANK OGAWA PLZ"
	if p.Description != want {
		t.Errorf("Description = %q, want %q", p.Description, want)
	}
}

func TestNormalizeWithoutDerivationsOrConcepts(t *testing.T) {
	src := &registry.Source{ID: "x", Name: "Nowhere"}
	ds := &registry.Dataset{Name: "Records"}

	p := Normalize(src, ds, map[string]any{})

	if p.Description != "Records record from Nowhere" {
		t.Errorf("Description = %q", p.Description)
	}
}

// --- value rendering ---

func TestStringValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "  hello ", "hello"},
		{"number", float64(45000), "45000"},
		{"fraction", float64(0.5), "0.5"},
		{"bool", true, "true"},
		{"nil", nil, ""},
		{"composite", map[string]any{"a": 1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringValue(tt.in); got != tt.want {
				t.Errorf("stringValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
