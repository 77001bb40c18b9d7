// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/oven-one/municipal-intel/internal/metrics"
	"github.com/oven-one/municipal-intel/internal/search"
	"github.com/oven-one/municipal-intel/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP search API",
	Long: `Serve exposes the search service over HTTP: source listing, source
descriptors, uniform search, health, and Prometheus metrics. The server
rate-limits per client IP and shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	reg, err := buildRegistry()
	if err != nil {
		return err
	}

	log := newLogger()
	promReg := prometheus.NewRegistry()
	met := metrics.New(promReg)
	svc := search.NewService(reg, cfg.Search, log, met)
	srv := server.New(cfg.Server, svc, promReg, log)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: the server.addr config key)")

	rootCmd.AddCommand(serveCmd)
}
