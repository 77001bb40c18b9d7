// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/pkg/types"
)

// unknownID is the sentinel slug used when a record carries no value for
// the id concept. The jurisdiction prefix keeps such IDs distinguishable
// across sources even though they collide within one.
const unknownID = "unknown"

// Normalize maps one raw portal record into the uniform project entity.
// RawData holds the record verbatim; Description is derived, falling back
// to a generic line when derivation fails. LastUpdated is construction
// time, not anything source-reported.
func Normalize(src *registry.Source, ds *registry.Dataset, row map[string]any) types.Project {
	id := unknownID
	if field, ok := ds.MappedField(types.ConceptID); ok {
		if v := stringValue(row[field]); v != "" {
			id = v
		}
	}

	return types.Project{
		ID:          src.ID + "-" + id,
		Source:      src.ID,
		Description: describe(src, ds, row),
		RawData:     row,
		LastUpdated: time.Now().UTC(),
	}
}

// describe derives the human-readable summary. Derivation errors and
// panics are absorbed into a generic fallback: one malformed upstream
// record must never abort the rest of a response.
func describe(src *registry.Source, ds *registry.Dataset, row map[string]any) (out string) {
	fallback := fmt.Sprintf("%s record from %s", ds.Name, src.Name)
	defer func() {
		if recover() != nil {
			out = fallback
		}
	}()

	if ds.Derive == nil || ds.Derive.Summary == nil {
		if s := conceptDescription(ds, row); s != "" {
			return s
		}
		return fallback
	}

	s, err := ds.Derive.Summary(row)
	if err != nil || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// conceptDescription builds a plain summary from mapped concepts for
// datasets without a registered derivation (runtime overlay sources).
func conceptDescription(ds *registry.Dataset, row map[string]any) string {
	var parts []string
	for _, c := range []types.Concept{types.ConceptTitle, types.ConceptStatus, types.ConceptAddress} {
		field, ok := ds.MappedField(c)
		if !ok {
			continue
		}
		if v := stringValue(row[field]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// stringValue renders a decoded JSON value as a plain string. Numbers lose
// a spurious ".0"; nil and composites render empty.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
