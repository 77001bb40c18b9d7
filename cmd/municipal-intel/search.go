// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oven-one/municipal-intel/internal/search"
	"github.com/oven-one/municipal-intel/internal/soql"
	"github.com/oven-one/municipal-intel/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [jurisdiction]",
	Short: "Search a jurisdiction's permit records",
	Long: `Search queries one jurisdiction's open-data portal for permit records
matching date, value, status, address, and keyword filters. Results are
normalized into the uniform project shape regardless of portal schema.

A search can be replayed from a saved query file with --query-file, and
results can be written back to one with --save.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	req, err := searchRequestFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	svc := search.NewService(reg, cfg.Search, newLogger(), nil)

	resp, err := svc.Search(context.Background(), req)
	if err != nil {
		return err
	}

	if savePath, _ := cmd.Flags().GetString("save"); savePath != "" {
		if err := search.WriteQueryFile(savePath, req, resp); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved query to %s\n", savePath)
	}

	return formatSearchOutput(cmd, resp)
}

func formatSearchOutput(cmd *cobra.Command, resp *types.SearchResponse) error {
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatJSON(resp, os.Stdout)
	}
	if csvOutput, _ := cmd.Flags().GetBool("csv"); csvOutput {
		return search.FormatCSV(resp, os.Stdout)
	}
	search.FormatTable(resp, os.Stdout)
	return nil
}

// searchRequestFromFlags builds the request from a query file or from
// flags. A query file carries the whole request; flags are ignored then.
func searchRequestFromFlags(cmd *cobra.Command, args []string) (types.SearchRequest, error) {
	if path, _ := cmd.Flags().GetString("query-file"); path != "" {
		qf, err := search.ReadQueryFile(path)
		if err != nil {
			return types.SearchRequest{}, err
		}
		return qf.Request.ToRequest()
	}

	jurisdiction, _ := cmd.Flags().GetString("jurisdiction")
	if jurisdiction == "" && len(args) > 0 {
		jurisdiction = args[0]
	}
	if jurisdiction == "" {
		return types.SearchRequest{}, fmt.Errorf("jurisdiction required: pass it as an argument or with --jurisdiction")
	}

	dataset, _ := cmd.Flags().GetString("dataset")
	minValue, _ := cmd.Flags().GetFloat64("min-value")
	maxValue, _ := cmd.Flags().GetFloat64("max-value")
	statuses, _ := cmd.Flags().GetStringSlice("status")
	addresses, _ := cmd.Flags().GetStringSlice("address")
	keywords, _ := cmd.Flags().GetStringSlice("keyword")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	sortBy, _ := cmd.Flags().GetString("sort")
	sortAsc, _ := cmd.Flags().GetBool("asc")

	req := types.SearchRequest{
		Jurisdiction:    jurisdiction,
		Dataset:         dataset,
		MinValue:        minValue,
		MaxValue:        maxValue,
		Statuses:        statuses,
		AddressContains: addresses,
		Keywords:        keywords,
		Limit:           limit,
		Offset:          offset,
		SortBy:          types.Concept(sortBy),
		SortAsc:         sortAsc,
	}

	var err error
	setDate := func(dst *time.Time, flag string) {
		if err != nil {
			return
		}
		value, _ := cmd.Flags().GetString(flag)
		if value == "" {
			return
		}
		t, parseErr := soql.ParseTime(value)
		if parseErr != nil {
			err = fmt.Errorf("invalid --%s: %w", flag, parseErr)
			return
		}
		*dst = t
	}
	setDate(&req.SubmittedAfter, "submitted-after")
	setDate(&req.SubmittedBefore, "submitted-before")
	setDate(&req.ApprovedAfter, "approved-after")
	setDate(&req.ApprovedBefore, "approved-before")
	if err != nil {
		return types.SearchRequest{}, err
	}
	return req, nil
}

func init() {
	searchCmd.Flags().String("jurisdiction", "", "source ID to search (alternative to the positional argument)")
	searchCmd.Flags().String("dataset", "", "dataset ID (default: the source's default dataset)")
	searchCmd.Flags().String("submitted-after", "", "earliest submission date (YYYY-MM-DD)")
	searchCmd.Flags().String("submitted-before", "", "latest submission date (YYYY-MM-DD)")
	searchCmd.Flags().String("approved-after", "", "earliest approval date (YYYY-MM-DD)")
	searchCmd.Flags().String("approved-before", "", "latest approval date (YYYY-MM-DD)")
	searchCmd.Flags().Float64("min-value", 0, "minimum project value in dollars")
	searchCmd.Flags().Float64("max-value", 0, "maximum project value in dollars")
	searchCmd.Flags().StringSlice("status", nil, "filter by status (repeatable)")
	searchCmd.Flags().StringSlice("address", nil, "filter by address substring (repeatable)")
	searchCmd.Flags().StringSlice("keyword", nil, "full-text keywords (repeatable)")
	searchCmd.Flags().Int("limit", 0, "maximum results per page (0 = configured default)")
	searchCmd.Flags().Int("offset", 0, "number of results to skip")
	searchCmd.Flags().String("sort", "", "sort concept: submit_date, approval_date, value, status, id")
	searchCmd.Flags().Bool("asc", false, "sort ascending instead of descending")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("csv", false, "output results as CSV")
	searchCmd.Flags().String("query-file", "", "load the request from a saved query file")
	searchCmd.Flags().String("save", "", "save the request and results to a query file")

	rootCmd.AddCommand(searchCmd)
}
