// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/oven-one/municipal-intel/internal/registry"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and manage the source registry",
	Long: `Sources lists the jurisdictions this build knows how to query. The
built-in catalog is compiled in; additional sources live in a YAML overlay
file (the sources_file config key) and can be registered and unregistered
from the command line.`,
}

// --- list subcommand ---

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE:  runSourcesList,
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	reg, err := buildRegistry()
	if err != nil {
		return err
	}

	f := registry.Filter{}
	f.State, _ = cmd.Flags().GetString("state")
	method, _ := cmd.Flags().GetString("method")
	f.AccessMethod = registry.AccessMethod(method)
	f.EnabledOnly, _ = cmd.Flags().GetBool("enabled")
	f.MinPriority, _ = cmd.Flags().GetInt("min-priority")

	sources := reg.List(f)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sources)
	}

	if len(sources) == 0 {
		fmt.Println("No sources match.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-14s  %-26s  %-5s  %-8s  %-8s  %-7s  %s\n",
		"ID", "Name", "State", "Method", "Priority", "Enabled", "Datasets")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 84))

	for _, src := range sources {
		name := src.Name
		if len(name) > 26 {
			name = name[:23] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-14s  %-26s  %-5s  %-8s  %-8d  %-7t  %d\n",
			src.ID, name, src.State, src.AccessMethod, src.Priority, src.Enabled, len(src.Datasets))
	}

	meta := reg.Metadata()
	fmt.Fprintf(os.Stdout, "\n%d of %d sources (catalog %s)\n", len(sources), meta.Sources, meta.Version)
	return nil
}

// --- show subcommand ---

var sourcesShowCmd = &cobra.Command{
	Use:   "show [source-id]",
	Short: "Print one source's full descriptor",
	Long: `Show prints a source descriptor, datasets and field mappings included.
The default YAML output matches the overlay file format, so it can seed a
new overlay entry.`,
	Args: cobra.ExactArgs(1),
	RunE: runSourcesShow,
}

func runSourcesShow(cmd *cobra.Command, args []string) error {
	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	src, err := reg.Resolve(args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(src)
	}

	data, err := yaml.Marshal(src)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

// --- register subcommand ---

var sourcesRegisterCmd = &cobra.Command{
	Use:   "register [overlay-file]",
	Short: "Add sources from an overlay file to the configured sources file",
	Long: `Register validates the descriptors in an overlay file against the
catalog (IDs must not collide with built-ins or already-registered
sources) and appends them to the sources_file named in the config. Later
invocations pick them up automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: runSourcesRegister,
}

func runSourcesRegister(cmd *cobra.Command, args []string) error {
	target := viper.GetString("sources_file")
	if target == "" {
		return fmt.Errorf("no sources_file configured: set it in the config file or MUNICIPAL_INTEL_SOURCES_FILE")
	}

	// Load the current overlay into a catalog-seeded registry so new
	// descriptors are checked against everything already registered.
	reg := registry.New()
	existing, err := loadOverlayIfPresent(reg, target)
	if err != nil {
		return err
	}

	incoming, err := registry.LoadOverlay(args[0])
	if err != nil {
		return err
	}
	for _, src := range incoming {
		if err := reg.Register(src); err != nil {
			return err
		}
	}

	if err := registry.WriteOverlay(target, append(existing, incoming...)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Registered %d source(s) in %s\n", len(incoming), target)
	return nil
}

// --- unregister subcommand ---

var sourcesUnregisterCmd = &cobra.Command{
	Use:   "unregister [source-id]",
	Short: "Remove a source from the configured sources file",
	RunE:  runSourcesUnregister,
	Args:  cobra.ExactArgs(1),
}

func runSourcesUnregister(cmd *cobra.Command, args []string) error {
	target := viper.GetString("sources_file")
	if target == "" {
		return fmt.Errorf("no sources_file configured: set it in the config file or MUNICIPAL_INTEL_SOURCES_FILE")
	}

	existing, err := registry.LoadOverlay(target)
	if err != nil {
		return err
	}

	id := args[0]
	kept := existing[:0]
	for _, src := range existing {
		if src.ID != id {
			kept = append(kept, src)
		}
	}
	if len(kept) == len(existing) {
		if _, err := registry.New().Resolve(id); err == nil {
			return fmt.Errorf("%q is a built-in source and cannot be unregistered", id)
		}
		return fmt.Errorf("source %q not found in %s", id, target)
	}

	if err := registry.WriteOverlay(target, kept); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Unregistered %s from %s\n", id, target)
	return nil
}

// loadOverlayIfPresent registers an overlay file's sources if the file
// exists, returning the loaded descriptors. A missing file is an empty
// overlay, not an error.
func loadOverlayIfPresent(reg *registry.Registry, path string) ([]*registry.Source, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	sources, err := registry.LoadOverlay(path)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if err := reg.Register(src); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

func init() {
	// List flags mirror the registry filter dimensions.
	sourcesListCmd.Flags().String("state", "", "filter by two-letter state code")
	sourcesListCmd.Flags().String("method", "", "filter by access method: api, portal, scraping")
	sourcesListCmd.Flags().Bool("enabled", false, "only show enabled sources")
	sourcesListCmd.Flags().Int("min-priority", 0, "only show sources at or above this priority")
	sourcesListCmd.Flags().Bool("json", false, "output sources as JSON")

	sourcesShowCmd.Flags().Bool("json", false, "output the descriptor as JSON instead of YAML")

	// Wire subcommands.
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesShowCmd)
	sourcesCmd.AddCommand(sourcesRegisterCmd)
	sourcesCmd.AddCommand(sourcesUnregisterCmd)

	rootCmd.AddCommand(sourcesCmd)
}
