// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oven-one/municipal-intel/internal/httputil"
	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/internal/soql"
	"github.com/oven-one/municipal-intel/pkg/types"
)

// defaultPageLimit applies when neither the request nor the config names a
// page size.
const defaultPageLimit = 100

// socrataClient speaks the Socrata Open Data API dialect.
type socrataClient struct {
	src     *registry.Source
	cfg     types.SearchConfig
	http    *http.Client
	limiter *httputil.Limiter
	log     *logrus.Logger
}

func newSocrataClient(src *registry.Source, cfg types.SearchConfig, limiter *httputil.Limiter, log *logrus.Logger) *socrataClient {
	if limiter == nil {
		limiter = httputil.NewLimiter(appToken(src, cfg) != "")
	}
	return &socrataClient{
		src:     src,
		cfg:     cfg,
		http:    newHTTPClient(cfg),
		limiter: limiter,
		log:     log,
	}
}

func (c *socrataClient) Source() *registry.Source { return c.src }

// Search translates req into SoQL, executes it, and assembles the page. A
// full page leaves "are there more?" ambiguous, so a secondary count query
// resolves it; if the count itself fails the response degrades to
// HasMore=true with an approximate total rather than failing the search.
func (c *socrataClient) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	ds, datasetID, err := c.src.Dataset(req.Dataset)
	if err != nil {
		return nil, err
	}

	q, adjustments, err := soql.Translate(req, c.src, datasetID, ds)
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = c.cfg.PageLimit
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageLimit
	}

	rows, err := c.fetchRows(ctx, ds.Endpoint, q.Values())
	if err != nil {
		return nil, err
	}

	total := q.Offset + len(rows)
	hasMore := false
	if len(rows) == q.Limit {
		n, err := c.count(ctx, ds.Endpoint, q.CountValues())
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"source":  c.src.ID,
				"dataset": datasetID,
			}).WithError(err).Warn("count query failed, reporting approximate total")
			hasMore = true
		} else {
			total = n
			hasMore = q.Offset+len(rows) < n
		}
	}

	projects := make([]types.Project, len(rows))
	for i, row := range rows {
		projects[i] = Normalize(c.src, ds, row)
	}

	return &types.SearchResponse{
		Projects:    projects,
		Total:       total,
		Page:        q.Offset/q.Limit + 1,
		PageSize:    q.Limit,
		HasMore:     hasMore,
		Adjustments: adjustments,
	}, nil
}

// fetchRows performs one rate-limited portal call and decodes the row set.
func (c *socrataClient) fetchRows(ctx context.Context, endpoint string, params url.Values) ([]map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := strings.TrimSuffix(c.src.API.BaseURL, "/") + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if token := appToken(c.src, c.cfg); token != "" {
		req.Header.Set("X-App-Token", token)
	}

	c.log.WithFields(logrus.Fields{
		"source": c.src.ID,
		"query":  params.Encode(),
	}).Debug("portal query")

	resp, err := httputil.Do(ctx, c.http, req, c.src.ID, c.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", c.src.ID, err)
	}
	return rows, nil
}

// count runs the secondary count(*) query.
func (c *socrataClient) count(ctx context.Context, endpoint string, params url.Values) (int, error) {
	rows, err := c.fetchRows(ctx, endpoint, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	return countValue(rows[0])
}

// countValue digs the total out of a count(*) row. The portal encodes it
// as a string, but plain numbers appear in the wild too.
func countValue(row map[string]any) (int, error) {
	v, ok := row["count"]
	if !ok {
		// Some portals alias the column, e.g. count_1.
		for k, candidate := range row {
			if strings.HasPrefix(k, "count") {
				v, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return 0, fmt.Errorf("count query row has no count column")
	}

	switch n := v.(type) {
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("unparseable count %q: %w", n, err)
		}
		return parsed, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
