// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oven-one/municipal-intel/internal/drift"
	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/internal/search"
)

var auditCmd = &cobra.Command{
	Use:   "audit [source-id]",
	Short: "Audit registry field mappings against live portal data",
	Long: `Audit fetches a sample page from a source's portal and compares the
field names it observes against the registry's declared fields and
mappings. Mapped fields the portal no longer serves are flagged as broken;
every audit is persisted so drift can be tracked over time.

Use --all to audit every enabled API source, or --history to review past
audits for one source.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	historyN, _ := cmd.Flags().GetInt("history")
	if !all && len(args) == 0 {
		return fmt.Errorf("source ID required (or --all to audit every enabled API source)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sample, _ := cmd.Flags().GetInt("sample"); sample > 0 {
		cfg.Audit.SampleSize = sample
	}
	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	log := newLogger()
	svc := search.NewService(reg, cfg.Search, log, nil)

	store, err := drift.NewStore(cfg.Audit.AuditDir)
	if err != nil {
		return err
	}
	defer store.Close()

	auditor := drift.NewAuditor(svc, store, cfg.Audit, log)
	ctx := context.Background()

	dataset, _ := cmd.Flags().GetString("dataset")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if historyN > 0 {
		if len(args) == 0 {
			return fmt.Errorf("source ID required with --history")
		}
		reports, err := auditor.History(ctx, args[0], dataset, historyN)
		if err != nil {
			return err
		}
		return formatAuditHistory(reports, jsonOutput)
	}

	if all {
		state, _ := cmd.Flags().GetString("state")
		reports, auditErr := auditor.AuditAll(ctx, registry.Filter{State: state})
		if err := formatAuditSummaries(reports, jsonOutput); err != nil {
			return err
		}
		// Per-source failures were already logged; surface the last one.
		return auditErr
	}

	report, err := auditor.Audit(ctx, args[0], dataset)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(report)
	}
	printAuditReport(report)
	return nil
}

func printAuditReport(r *drift.Report) {
	fmt.Fprintf(os.Stdout, "%s/%s (%s)\n", r.SourceID, r.DatasetID, r.Endpoint)
	fmt.Fprintf(os.Stdout, "  sampled:  %d records\n", r.Sampled)
	fmt.Fprintf(os.Stdout, "  observed: %s\n", strings.Join(r.ObservedFields, ", "))
	if len(r.MissingFields) > 0 {
		fmt.Fprintf(os.Stdout, "  missing:  %s\n", strings.Join(r.MissingFields, ", "))
	}
	if len(r.UnknownFields) > 0 {
		fmt.Fprintf(os.Stdout, "  unknown:  %s\n", strings.Join(r.UnknownFields, ", "))
	}
	if len(r.BrokenMappings) > 0 {
		fmt.Fprintf(os.Stdout, "  broken:   %s\n", strings.Join(r.BrokenMappings, ", "))
	}
	if r.Clean() {
		fmt.Fprintln(os.Stdout, "  clean: every mapped field was observed")
	}
}

func formatAuditSummaries(reports []*drift.Report, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(reports)
	}
	if len(reports) == 0 {
		fmt.Println("No sources audited.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-14s  %-12s  %-8s  %-8s  %-8s  %s\n",
		"Source", "Dataset", "Sampled", "Missing", "Broken", "Status")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 64))

	for _, r := range reports {
		status := "clean"
		if !r.Clean() {
			status = "drift"
		}
		fmt.Fprintf(os.Stdout, "%-14s  %-12s  %-8d  %-8d  %-8d  %s\n",
			r.SourceID, r.DatasetID, r.Sampled, len(r.MissingFields), len(r.BrokenMappings), status)
	}

	fmt.Fprintf(os.Stdout, "\n%d datasets audited\n", len(reports))
	return nil
}

func formatAuditHistory(reports []drift.Report, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(reports)
	}
	if len(reports) == 0 {
		fmt.Println("No audits recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-8s  %-8s  %s\n",
		"ID", "Created", "Sampled", "Missing", "Broken")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 84))

	for _, r := range reports {
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-8d  %-8d  %d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Sampled,
			len(r.MissingFields), len(r.BrokenMappings))
	}

	fmt.Fprintf(os.Stdout, "\n%d audits\n", len(reports))
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	auditCmd.Flags().String("dataset", "", "dataset ID (default: the source's default dataset)")
	auditCmd.Flags().Bool("all", false, "audit every enabled API source")
	auditCmd.Flags().String("state", "", "with --all, only audit sources in this state")
	auditCmd.Flags().Int("sample", 0, "records to sample per dataset (0 = configured default)")
	auditCmd.Flags().Int("history", 0, "show the last N stored audits instead of running one")
	auditCmd.Flags().Bool("json", false, "output reports as JSON")

	rootCmd.AddCommand(auditCmd)
}
