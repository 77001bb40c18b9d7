// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/oven-one/municipal-intel/pkg/types"
)

// catalogVersion identifies the built-in catalog revision reported by
// Registry.Metadata.
const catalogVersion = "1.3.0"

// builtinSources returns the compiled catalog. Field names and endpoints
// follow each city's published Socrata dataset; KnownFields is the schema
// observed when the descriptor was last reviewed and is informational only.
func builtinSources() map[string]*Source {
	sources := []*Source{
		sanFrancisco(),
		newYork(),
		losAngeles(),
		chicago(),
		seattle(),
		austin(),
	}

	out := make(map[string]*Source, len(sources))
	for _, s := range sources {
		out[s.ID] = s
	}
	return out
}

func sanFrancisco() *Source {
	return &Source{
		ID:           "sf",
		Name:         "San Francisco",
		State:        "CA",
		AccessMethod: AccessAPI,
		API: &APIConfig{
			Type:    APITypeSocrata,
			BaseURL: "https://data.sfgov.org",
		},
		DefaultDataset: "permits",
		Priority:       10,
		Enabled:        true,
		Datasets: map[string]*Dataset{
			"permits": {
				Endpoint: "/resource/i98e-djp9.json",
				Name:     "Building Permits",
				FieldMap: map[types.Concept]string{
					types.ConceptID:           "permit_number",
					types.ConceptTitle:        "permit_type_definition",
					types.ConceptStatus:       "status",
					types.ConceptSubmitDate:   "filed_date",
					types.ConceptApprovalDate: "issued_date",
					types.ConceptValue:        "revised_cost",
					types.ConceptAddress:      "street_name",
					types.ConceptDescription:  "description",
				},
				// SF publishes both cost columns as text.
				TextValueFields: []string{"revised_cost", "estimated_cost"},
				KnownFields: []string{
					"permit_number", "permit_type", "permit_type_definition",
					"permit_creation_date", "block", "lot", "street_number",
					"street_name", "street_suffix", "unit", "description",
					"status", "status_date", "filed_date", "issued_date",
					"completed_date", "estimated_cost", "revised_cost",
					"existing_use", "proposed_use", "supervisor_district",
					"zipcode", "record_id",
				},
				Derive: &Derivations{
					Address: sfAddress,
					Summary: func(rec map[string]any) (string, error) {
						filed, err := recordDate(rec, "filed_date")
						if err != nil {
							return "", err
						}
						addr, _ := sfAddress(rec)
						line := "Building permit " + orUnknown(str(rec, "permit_number"))
						if desc := str(rec, "description"); desc != "" {
							line += ": " + desc
						}
						if addr != "" {
							line += " at " + addr
						}
						return annotate(line,
							prefixed("filed ", filed),
							prefixed("status ", str(rec, "status")),
							prefixed("value ", money(rec, "revised_cost")),
						), nil
					},
				},
			},
			"planning": {
				Endpoint: "/resource/kncr-c6jw.json",
				Name:     "Planning Applications",
				FieldMap: map[types.Concept]string{
					types.ConceptID:          "record_id",
					types.ConceptTitle:       "record_type",
					types.ConceptStatus:      "record_status",
					types.ConceptSubmitDate:  "date_opened",
					types.ConceptAddress:     "address",
					types.ConceptDescription: "description",
				},
				KnownFields: []string{
					"record_id", "record_type", "record_status", "date_opened",
					"date_closed", "description", "address", "block", "lot",
					"planner_name",
				},
				Derive: &Derivations{
					Address: func(rec map[string]any) (string, error) {
						return str(rec, "address"), nil
					},
					Summary: func(rec map[string]any) (string, error) {
						opened, err := recordDate(rec, "date_opened")
						if err != nil {
							return "", err
						}
						line := "Planning application " + orUnknown(str(rec, "record_id"))
						if desc := str(rec, "description"); desc != "" {
							line += ": " + desc
						}
						if addr := str(rec, "address"); addr != "" {
							line += " at " + addr
						}
						return annotate(line,
							prefixed("opened ", opened),
							prefixed("status ", str(rec, "record_status")),
						), nil
					},
				},
			},
		},
	}
}

func newYork() *Source {
	return &Source{
		ID:           "nyc",
		Name:         "New York City",
		State:        "NY",
		AccessMethod: AccessAPI,
		API: &APIConfig{
			Type:    APITypeSocrata,
			BaseURL: "https://data.cityofnewyork.us",
		},
		DefaultDataset: "permits",
		Priority:       10,
		Enabled:        true,
		Datasets: map[string]*Dataset{
			"permits": {
				Endpoint: "/resource/ipu4-2q9a.json",
				Name:     "DOB Permit Issuance",
				// The DOB dataset publishes no project valuation; value
				// filters against nyc are dropped with an adjustment.
				FieldMap: map[types.Concept]string{
					types.ConceptID:           "job__",
					types.ConceptTitle:        "work_type",
					types.ConceptStatus:       "permit_status",
					types.ConceptSubmitDate:   "filing_date",
					types.ConceptApprovalDate: "issuance_date",
					types.ConceptAddress:      "street_name",
					types.ConceptApplicant:    "permittee_s_business_name",
				},
				KnownFields: []string{
					"borough", "bin__", "house__", "street_name", "job__",
					"job_type", "block", "lot", "community_board", "zip_code",
					"bldg_type", "work_type", "permit_status", "filing_status",
					"permit_type", "permit_subtype", "filing_date",
					"issuance_date", "expiration_date", "job_start_date",
					"permittee_s_business_name", "owner_s_business_name",
					"gis_latitude", "gis_longitude",
				},
				Derive: &Derivations{
					Address: nycAddress,
					Summary: func(rec map[string]any) (string, error) {
						filed, err := recordDate(rec, "filing_date")
						if err != nil {
							return "", err
						}
						addr, _ := nycAddress(rec)
						line := "DOB permit " + orUnknown(str(rec, "job__"))
						if wt := str(rec, "work_type"); wt != "" {
							line += ": " + wt
						}
						if addr != "" {
							line += " at " + addr
						}
						return annotate(line,
							prefixed("filed ", filed),
							prefixed("status ", str(rec, "permit_status")),
						), nil
					},
				},
			},
		},
	}
}

func losAngeles() *Source {
	return &Source{
		ID:           "la",
		Name:         "Los Angeles",
		State:        "CA",
		AccessMethod: AccessAPI,
		API: &APIConfig{
			Type:    APITypeSocrata,
			BaseURL: "https://data.lacity.org",
		},
		DefaultDataset: "permits",
		Priority:       8,
		Enabled:        true,
		Datasets: map[string]*Dataset{
			"permits": {
				Endpoint: "/resource/yv23-pmwf.json",
				Name:     "Building and Safety Permit Information",
				FieldMap: map[types.Concept]string{
					types.ConceptID:          "pcis_permit",
					types.ConceptTitle:       "permit_type",
					types.ConceptStatus:      "latest_status",
					types.ConceptSubmitDate:  "issue_date",
					types.ConceptValue:       "valuation",
					types.ConceptAddress:     "street_name",
					types.ConceptDescription: "work_description",
					types.ConceptApplicant:   "contractors_business_name",
				},
				TextValueFields: []string{"valuation"},
				KnownFields: []string{
					"pcis_permit", "permit_type", "permit_sub_type",
					"permit_category", "latest_status", "status_date",
					"issue_date", "address_start", "street_direction",
					"street_name", "street_suffix", "zip_code",
					"work_description", "valuation", "census_tract",
					"council_district", "contractors_business_name",
				},
				Derive: &Derivations{
					Address: laAddress,
					Summary: func(rec map[string]any) (string, error) {
						issued, err := recordDate(rec, "issue_date")
						if err != nil {
							return "", err
						}
						addr, _ := laAddress(rec)
						line := "LA permit " + orUnknown(str(rec, "pcis_permit"))
						if desc := str(rec, "work_description"); desc != "" {
							line += ": " + desc
						}
						if addr != "" {
							line += " at " + addr
						}
						return annotate(line,
							prefixed("issued ", issued),
							prefixed("status ", str(rec, "latest_status")),
							prefixed("value ", money(rec, "valuation")),
						), nil
					},
				},
			},
		},
	}
}

func chicago() *Source {
	return &Source{
		ID:           "chicago",
		Name:         "Chicago",
		State:        "IL",
		AccessMethod: AccessAPI,
		API: &APIConfig{
			Type:    APITypeSocrata,
			BaseURL: "https://data.cityofchicago.org",
		},
		DefaultDataset: "permits",
		Priority:       8,
		Enabled:        true,
		Datasets: map[string]*Dataset{
			"permits": {
				Endpoint: "/resource/ydr8-5enu.json",
				Name:     "Building Permits",
				FieldMap: map[types.Concept]string{
					types.ConceptID:           "permit_",
					types.ConceptTitle:        "permit_type",
					types.ConceptStatus:       "permit_status",
					types.ConceptSubmitDate:   "application_start_date",
					types.ConceptApprovalDate: "issue_date",
					types.ConceptValue:        "reported_cost",
					types.ConceptAddress:      "street_name",
					types.ConceptDescription:  "work_description",
					types.ConceptApplicant:    "contact_1_name",
				},
				TextValueFields: []string{"reported_cost"},
				KnownFields: []string{
					"id", "permit_", "permit_status", "permit_type",
					"review_type", "application_start_date", "issue_date",
					"processing_time", "street_number", "street_direction",
					"street_name", "suffix", "work_description",
					"reported_cost", "community_area", "ward", "latitude",
					"longitude", "contact_1_type", "contact_1_name",
				},
				Derive: &Derivations{
					Address: chicagoAddress,
					Summary: func(rec map[string]any) (string, error) {
						applied, err := recordDate(rec, "application_start_date")
						if err != nil {
							return "", err
						}
						addr, _ := chicagoAddress(rec)
						line := "Chicago permit " + orUnknown(str(rec, "permit_"))
						if desc := str(rec, "work_description"); desc != "" {
							line += ": " + desc
						}
						if addr != "" {
							line += " at " + addr
						}
						return annotate(line,
							prefixed("applied ", applied),
							prefixed("status ", str(rec, "permit_status")),
							prefixed("value ", money(rec, "reported_cost")),
						), nil
					},
				},
			},
		},
	}
}

func seattle() *Source {
	return &Source{
		ID:           "seattle",
		Name:         "Seattle",
		State:        "WA",
		AccessMethod: AccessAPI,
		API: &APIConfig{
			Type:    APITypeSocrata,
			BaseURL: "https://data.seattle.gov",
		},
		DefaultDataset: "permits",
		Priority:       6,
		Enabled:        true,
		Datasets: map[string]*Dataset{
			"permits": {
				Endpoint: "/resource/76t5-zqzr.json",
				Name:     "Building Permits",
				FieldMap: map[types.Concept]string{
					types.ConceptID:           "permitnum",
					types.ConceptTitle:        "permittypedesc",
					types.ConceptStatus:       "statuscurrent",
					types.ConceptSubmitDate:   "applieddate",
					types.ConceptApprovalDate: "issueddate",
					types.ConceptValue:        "estprojectcost",
					types.ConceptAddress:      "originaladdress1",
					types.ConceptDescription:  "description",
					types.ConceptApplicant:    "contractorcompanyname",
				},
				// Seattle stores cost as a real number; no cast needed.
				KnownFields: []string{
					"permitnum", "permitclass", "permitclassmapped",
					"permittypemapped", "permittypedesc", "description",
					"estprojectcost", "applieddate", "issueddate",
					"expiresdate", "completeddate", "statuscurrent",
					"originaladdress1", "originalcity", "originalzip",
					"contractorcompanyname", "latitude", "longitude",
				},
				Derive: &Derivations{
					Address: func(rec map[string]any) (string, error) {
						return str(rec, "originaladdress1"), nil
					},
					Summary: func(rec map[string]any) (string, error) {
						applied, err := recordDate(rec, "applieddate")
						if err != nil {
							return "", err
						}
						line := "Seattle permit " + orUnknown(str(rec, "permitnum"))
						if desc := str(rec, "description"); desc != "" {
							line += ": " + desc
						}
						if addr := str(rec, "originaladdress1"); addr != "" {
							line += " at " + addr
						}
						return annotate(line,
							prefixed("applied ", applied),
							prefixed("status ", str(rec, "statuscurrent")),
							prefixed("value ", money(rec, "estprojectcost")),
						), nil
					},
				},
			},
		},
	}
}

func austin() *Source {
	return &Source{
		ID:           "austin",
		Name:         "Austin",
		State:        "TX",
		AccessMethod: AccessAPI,
		API: &APIConfig{
			Type:    APITypeSocrata,
			BaseURL: "https://data.austintexas.gov",
		},
		DefaultDataset: "permits",
		Priority:       5,
		Enabled:        true,
		Datasets: map[string]*Dataset{
			"permits": {
				Endpoint: "/resource/3syk-w9eu.json",
				Name:     "Issued Construction Permits",
				FieldMap: map[types.Concept]string{
					types.ConceptID:           "permit_number",
					types.ConceptTitle:        "permit_type_desc",
					types.ConceptStatus:       "status_current",
					types.ConceptSubmitDate:   "applieddate",
					types.ConceptApprovalDate: "issue_date",
					types.ConceptValue:        "total_job_valuation",
					types.ConceptAddress:      "original_address1",
					types.ConceptDescription:  "description",
					types.ConceptApplicant:    "applicant_full_name",
				},
				TextValueFields: []string{"total_job_valuation"},
				KnownFields: []string{
					"permit_number", "permittype", "permit_type_desc",
					"permit_class", "work_class", "description", "applieddate",
					"issue_date", "status_current", "statusdate", "expiresdate",
					"completed_date", "total_job_valuation",
					"original_address1", "original_city", "original_zip",
					"applicant_full_name", "applicant_org",
					"contractor_company_name", "latitude", "longitude",
				},
				Derive: &Derivations{
					Address: func(rec map[string]any) (string, error) {
						return str(rec, "original_address1"), nil
					},
					Summary: func(rec map[string]any) (string, error) {
						applied, err := recordDate(rec, "applieddate")
						if err != nil {
							return "", err
						}
						line := "Austin permit " + orUnknown(str(rec, "permit_number"))
						if desc := str(rec, "description"); desc != "" {
							line += ": " + desc
						}
						if addr := str(rec, "original_address1"); addr != "" {
							line += " at " + addr
						}
						return annotate(line,
							prefixed("applied ", applied),
							prefixed("status ", str(rec, "status_current")),
							prefixed("value ", money(rec, "total_job_valuation")),
						), nil
					},
				},
			},
		},
	}
}

// --- address builders ---

func sfAddress(rec map[string]any) (string, error) {
	return joinParts(" ",
		str(rec, "street_number"),
		str(rec, "street_name"),
		str(rec, "street_suffix"),
	), nil
}

func nycAddress(rec map[string]any) (string, error) {
	street := joinParts(" ", str(rec, "house__"), str(rec, "street_name"))
	return joinParts(", ", street, str(rec, "borough")), nil
}

func laAddress(rec map[string]any) (string, error) {
	return joinParts(" ",
		str(rec, "address_start"),
		str(rec, "street_direction"),
		str(rec, "street_name"),
		str(rec, "street_suffix"),
	), nil
}

func chicagoAddress(rec map[string]any) (string, error) {
	return joinParts(" ",
		str(rec, "street_number"),
		str(rec, "street_direction"),
		str(rec, "street_name"),
		str(rec, "suffix"),
	), nil
}

// --- record field helpers ---

// str returns the record field as a trimmed string, or "" when absent or
// not string-typed.
func str(rec map[string]any, key string) string {
	v, ok := rec[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// orUnknown substitutes "unknown" for an empty value.
func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// joinParts joins non-empty parts with sep.
func joinParts(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// prefixed returns prefix+value, or "" when the value is empty.
func prefixed(prefix, value string) string {
	if value == "" {
		return ""
	}
	return prefix + value
}

// annotate appends non-empty notes to line as " (note, note)".
func annotate(line string, notes ...string) string {
	var kept []string
	for _, n := range notes {
		if n != "" {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return line
	}
	return line + " (" + strings.Join(kept, ", ") + ")"
}

// recordDate formats the record field as YYYY-MM-DD. An absent or empty
// field is "", nil; a present but unparseable one is an error so the
// normalizer can fall back.
func recordDate(rec map[string]any, key string) (string, error) {
	raw := str(rec, key)
	if raw == "" {
		return "", nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return "", fmt.Errorf("field %s: unparseable date %q: %w", key, raw, err)
	}
	return t.Format("2006-01-02"), nil
}

// money formats a numeric or text-numeric field as "$1,234,567".
// Unparseable values render as "".
func money(rec map[string]any, key string) string {
	raw, ok := rec[key]
	if !ok {
		return ""
	}
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return ""
		}
		v = f
	default:
		return ""
	}
	return "$" + groupThousands(strconv.FormatFloat(v, 'f', 0, 64))
}

// groupThousands inserts commas into a plain integer string.
func groupThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
