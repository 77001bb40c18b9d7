// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the municipal-intel CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oven-one/municipal-intel/internal/registry"
	"github.com/oven-one/municipal-intel/internal/secrets"
	"github.com/oven-one/municipal-intel/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedTokens holds app tokens loaded from the secrets directory at startup.
var loadedTokens secrets.Tokens

// rootCmd is the base command for the municipal-intel CLI.
var rootCmd = &cobra.Command{
	Use:   "municipal-intel",
	Short: "Search building permits across municipal open-data portals",
	Long: `municipal-intel queries municipal open-data portals (Socrata SoQL APIs)
through a single uniform request shape. A source registry describes each
jurisdiction's datasets and field mappings; the search engine translates
requests into portal queries and normalizes the results.

Subcommands cover one-shot searches, registry inspection, field-mapping
audits, and an HTTP server exposing the same operations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := secrets.Load(viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		loadedTokens = tokens

		var names []string
		if tokens.Global != "" {
			names = append(names, secrets.GlobalTokenFile)
		}
		for id := range tokens.PerSource {
			names = append(names, id+"-app-token")
		}
		if len(names) > 0 {
			sort.Strings(names)
			fmt.Fprintf(os.Stderr, "Loaded app tokens: %v\n", names)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./municipal-intel.yaml or ~/.config/municipal-intel/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("municipal-intel")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "municipal-intel"))
		}
	}

	viper.SetEnvPrefix("MUNICIPAL_INTEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key with viper so env vars and config
// files can override any of them individually.
func setDefaults() {
	d := types.DefaultConfig()

	viper.SetDefault("log_level", "info")
	viper.SetDefault("secrets_dir", ".secrets/")
	viper.SetDefault("sources_file", "")

	viper.SetDefault("search.timeout", d.Search.Timeout)
	viper.SetDefault("search.user_agent", d.Search.UserAgent)
	viper.SetDefault("search.page_limit", d.Search.PageLimit)
	viper.SetDefault("search.max_retries", d.Search.MaxRetries)

	viper.SetDefault("server.addr", d.Server.Addr)
	viper.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
	viper.SetDefault("server.burst", d.Server.Burst)
	viper.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	viper.SetDefault("audit.audit_dir", d.Audit.AuditDir)
	viper.SetDefault("audit.sample_size", d.Audit.SampleSize)
}

// loadConfig resolves the effective configuration: defaults, then config
// file, then environment. App tokens from the secrets directory fill any
// token the config left empty.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Search.AppToken == "" {
		cfg.Search.AppToken = loadedTokens.Global
	}
	for id, token := range loadedTokens.PerSource {
		if cfg.Search.AppTokens[id] == "" {
			if cfg.Search.AppTokens == nil {
				cfg.Search.AppTokens = make(map[string]string)
			}
			cfg.Search.AppTokens[id] = token
		}
	}
	return cfg, nil
}

// newLogger builds the CLI logger from the configured level.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(viper.GetString("log_level")); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// buildRegistry loads the built-in catalog plus any configured overlay file.
func buildRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if path := viper.GetString("sources_file"); path != "" {
		n, err := reg.RegisterOverlay(path)
		if err != nil {
			return nil, fmt.Errorf("loading sources file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Registered %d sources from %s\n", n, path)
	}
	return reg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
