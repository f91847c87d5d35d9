// Package syncer drives one full reconciliation pass: enumerate the source
// inventory, dispatch transfers under the concurrency limit, and report the
// outcome counters.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/config"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/inventory"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/logging"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/s3client"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/stats"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/transfer"
	"github.com/yuya-takeyama/s3-bucket-sync/internal/worker"
)

// Options wires a Syncer together.
type Options struct {
	Config *config.Config
	Source s3client.API
	Target s3client.API
	Logger *logging.Logger
	Slog   *slog.Logger
	// Stopped is the cancellation token polled between batches and at the
	// top of each transfer. May be nil.
	Stopped func() bool
	// ShowProgress renders a live progress bar on stdout.
	ShowProgress bool
	DryRun       bool
}

// Syncer runs reconciliation passes.
type Syncer struct {
	opts Options
}

func New(opts Options) *Syncer {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(true)
	}
	if opts.Slog == nil {
		opts.Slog = slog.Default()
	}
	if opts.Stopped == nil {
		opts.Stopped = func() bool { return false }
	}
	return &Syncer{opts: opts}
}

// Run performs one pass. Only configuration-independent fatal failures
// (enumeration) return an error; per-object failures are folded into the
// summary.
func (s *Syncer) Run(ctx context.Context) (stats.Summary, error) {
	cfg := s.opts.Config
	log := s.opts.Logger

	log.PrintRunHeader(cfg.Source.Bucket, cfg.Target.Bucket, cfg.Concurrency, s.opts.DryRun)

	enum := inventory.NewEnumerator(s.opts.Source, cfg.Source.Bucket, cfg.Excludes)
	descs, err := enum.Gather(ctx)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("enumerate source: %w", err)
	}

	tracker := stats.NewTracker()
	tracker.SetTotal(uint64(len(descs)))

	if len(descs) == 0 {
		log.Info("Nothing to sync")
		return tracker.Finalize(s.opts.Stopped()), nil
	}

	log.Info("Found %d files", len(descs))

	copier := transfer.NewCopier(transfer.Options{
		Source:       s.opts.Source,
		Target:       s.opts.Target,
		SourceBucket: cfg.Source.Bucket,
		TargetBucket: cfg.Target.Bucket,
		DryRun:       s.opts.DryRun,
		Stopped:      s.opts.Stopped,
		Logger:       s.opts.Slog,
	})

	var progress *mpb.Progress
	var bar *mpb.Bar
	if s.opts.ShowProgress {
		progress = mpb.New(mpb.WithOutput(os.Stdout))
		bar = progress.New(int64(len(descs)),
			mpb.BarStyle(),
			mpb.PrependDecorators(
				decor.Name("syncing "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}

	pool := worker.NewPool(cfg.Concurrency)
	pool.Run(ctx, descs, s.opts.Stopped, copier.Copy, func(r transfer.Result) {
		tracker.Record(r)
		if bar != nil && r.Status != transfer.Interrupted {
			bar.Increment()
		}
	})

	if progress != nil {
		bar.Abort(false)
		progress.Wait()
	}

	summary := tracker.Finalize(s.opts.Stopped())
	log.PrintSummary(summary)
	return summary, nil
}
