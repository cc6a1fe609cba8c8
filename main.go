package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/cache"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/runner"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/runner/webrunner"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "hotel-lead-builder",
		Short:         "Enrich an accommodation catalog with websites and contact emails",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sweep()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version)
		},
	}

	root.AddCommand(serveCmd, sweepCmd, versionCmd)

	ctx, cancel := signalContext()
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}

func serve(ctx context.Context) error {
	cfg, err := runner.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := runner.NewLogger(cfg.LogLevel)

	r, err := webrunner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}

	defer func() { _ = r.Close(context.Background()) }()

	logger.Info().Str("addr", cfg.Addr).Str("data_folder", cfg.DataFolder).Msg("starting")

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func sweep() error {
	cfg, err := runner.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := runner.NewLogger(cfg.LogLevel)

	store, err := cache.New(filepath.Join(cfg.DataFolder, "discovery_cache.db"), &logger)
	if err != nil {
		return err
	}

	defer func() { _ = store.Close() }()

	removed, err := store.Sweep()
	if err != nil {
		return err
	}

	logger.Info().Int64("removed", removed).Msg("cache sweep complete")

	return nil
}
