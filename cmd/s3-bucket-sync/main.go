package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/config"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/interrupt"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/logging"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/s3client"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/syncer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	configPath  string
	concurrency int
	excludes    []string
	quiet       bool
	dryRun      bool
	noProgress  bool
)

// Exit codes. A run that finishes with per-object errors still exits 0;
// the summary carries the error count. A second interrupt signal exits 130
// from the signal handler itself.
const (
	exitFatal       = 1
	exitConfig      = 2
	exitInterrupted = 3
)

var errInterrupted = errors.New("sync interrupted")

func main() {
	rootCmd := &cobra.Command{
		Use:   "s3-bucket-sync",
		Short: "Bulk synchronization of one S3 bucket into another",
		Long: `s3-bucket-sync copies every object of a source bucket into a target
bucket, skipping objects that already exist with the same size and
content type. Buckets and credentials come from SOURCE_* and TARGET_*
environment variables or a YAML config file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:          cobra.NoArgs,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (env vars take precedence)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of concurrent transfers (overrides config)")
	rootCmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Exclude patterns (multiple allowed)")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress non-error output")
	rootCmd.Flags().BoolVar(&dryRun, "dryrun", false, "Shows operations without executing")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errInterrupted) {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var missing *config.MissingError
	switch {
	case errors.As(err, &missing), errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.Is(err, errInterrupted):
		return exitInterrupted
	default:
		return exitFatal
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	cfg.Excludes = append(cfg.Excludes, excludes...)
	if err := cfg.Validate(); err != nil {
		return err
	}

	source, err := s3client.New(ctx, cfg.Source, cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to build source client: %w", err)
	}
	target, err := s3client.New(ctx, cfg.Target, cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to build target client: %w", err)
	}

	out := logging.NewLogger(quiet)
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	structured := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	handler := interrupt.New(func() {
		out.Error("interrupt received, draining in-flight transfers (interrupt again to force exit)")
	}, nil)
	stop := handler.Notify(syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := syncer.New(syncer.Options{
		Config:       cfg,
		Source:       source,
		Target:       target,
		Logger:       out,
		Slog:         structured,
		Stopped:      handler.Stopped,
		ShowProgress: !quiet && !noProgress && !dryRun,
		DryRun:       dryRun,
	}).Run(ctx)
	if err != nil {
		return err
	}
	if summary.Interrupted {
		return errInterrupted
	}
	return nil
}
