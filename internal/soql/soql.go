// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package soql renders uniform search requests into Socrata SoQL wire
// queries. Translation consults the dataset's concept mappings: filters a
// dataset cannot express are dropped and reported as adjustments instead
// of failing the query.
package soql

import (
	"net/url"
	"strconv"
	"strings"
)

// InsertionOrderField is Socrata's system row identifier, used as the sort
// key when the requested sort concept has no mapped field.
const InsertionOrderField = ":id"

// Query is a rendered SoQL query. Where conditions are AND-joined in the
// order they were added, which keeps rendering deterministic.
type Query struct {
	Where    []string
	Order    string
	Limit    int
	Offset   int
	FullText string
}

// WhereClause returns the AND-joined $where expression, or "".
func (q Query) WhereClause() string {
	return strings.Join(q.Where, " AND ")
}

// Values renders the query as request parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.Where) > 0 {
		v.Set("$where", q.WhereClause())
	}
	if q.FullText != "" {
		v.Set("$q", q.FullText)
	}
	if q.Order != "" {
		v.Set("$order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("$limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("$offset", strconv.Itoa(q.Offset))
	}
	return v
}

// CountValues renders the matching count query: same filters, no paging
// or ordering, selecting count(*).
func (q Query) CountValues() url.Values {
	v := url.Values{}
	v.Set("$select", "count(*)")
	if len(q.Where) > 0 {
		v.Set("$where", q.WhereClause())
	}
	if q.FullText != "" {
		v.Set("$q", q.FullText)
	}
	return v
}

// quote wraps s as a SoQL string literal, doubling embedded single quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// number renders a float without a spurious fraction ("50000", "0.5").
func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
