// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/oven-one/municipal-intel/pkg/types"
)

// FormatTable writes the response as a human-readable table. Adjustments
// print after the table; they are part of the answer, not a debug detail.
func FormatTable(resp *types.SearchResponse, w io.Writer) {
	if len(resp.Projects) == 0 {
		fmt.Fprintln(w, "No projects found.")
	} else {
		fmt.Fprintf(w, "%-28s  %-8s  %s\n", "ID", "Source", "Description")
		fmt.Fprintln(w, strings.Repeat("-", 110))

		for _, p := range resp.Projects {
			fmt.Fprintf(w, "%-28s  %-8s  %s\n",
				truncate(p.ID, 28), p.Source, truncate(p.Description, 70))
		}

		fmt.Fprintf(w, "\n%d of %d projects (page %d)", len(resp.Projects), resp.Total, resp.Page)
		if resp.HasMore {
			fmt.Fprint(w, ", more available")
		}
		fmt.Fprintln(w)
	}

	for _, adj := range resp.Adjustments {
		fmt.Fprintf(w, "note: %s\n", adj)
	}
}

// FormatJSON writes the full response as indented JSON to w.
func FormatJSON(resp *types.SearchResponse, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// FormatCSV writes the page as CSV: the uniform columns first, then every
// raw field observed across the page in sorted order, so nothing the
// portal sent is lost in export.
func FormatCSV(resp *types.SearchResponse, w io.Writer) error {
	raw := rawColumns(resp.Projects)

	cw := csv.NewWriter(w)
	header := append([]string{"id", "source", "description", "last_updated"}, raw...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range resp.Projects {
		rec := make([]string, 0, len(header))
		rec = append(rec, p.ID, p.Source, p.Description, p.LastUpdated.Format(time.RFC3339))
		for _, col := range raw {
			rec = append(rec, stringValue(p.RawData[col]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// rawColumns returns the sorted union of raw field names across the page.
func rawColumns(projects []types.Project) []string {
	seen := make(map[string]bool)
	for _, p := range projects {
		for k := range p.RawData {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
