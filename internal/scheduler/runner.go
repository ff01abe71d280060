// Package scheduler repeats ingestion cycles on a fixed interval until the
// context is cancelled.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fiumesicuro/hydro-ingest/internal/domain"
	"github.com/fiumesicuro/hydro-ingest/internal/observability"
	"github.com/fiumesicuro/hydro-ingest/internal/pipeline"
)

// CycleRunner executes one ingestion cycle for a date key.
type CycleRunner interface {
	RunCycle(ctx context.Context, dateKey string) (pipeline.Report, error)
}

// Runner drives the ingestion loop: one synchronous cycle, then a fixed
// wait measured from cycle completion, so cycles never overlap and the
// cadence drifts with cycle duration rather than skipping.
type Runner struct {
	runner   CycleRunner
	interval time.Duration
	dateKey  string // fixed observation date; empty means current date per cycle
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Runner. A non-empty dateKey pins every cycle to that
// observation date; otherwise each cycle ingests the date current at cycle
// start.
func New(runner CycleRunner, interval time.Duration, dateKey string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		runner:   runner,
		interval: interval,
		dateKey:  dateKey,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes cycles until ctx is cancelled, then returns nil. A cycle in
// progress when cancellation arrives always runs to completion; there is no
// mid-cycle abort.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("scheduler started", "interval", r.interval)
	r.metrics.IngestRunning.Set(1)
	defer r.metrics.IngestRunning.Set(0)

	// Cycle work is detached from the shutdown signal so the current cycle
	// finishes cleanly; cancellation takes effect at the next wait.
	cycleCtx := context.WithoutCancel(ctx)

	for {
		dateKey := r.dateKey
		if dateKey == "" {
			dateKey = domain.DateKey(r.clock.Now())
		}

		if _, err := r.runner.RunCycle(cycleCtx, dateKey); err != nil {
			// Fetch failures were already logged with context by the
			// coordinator; the loop survives to the next tick regardless.
			r.logger.Warn("cycle failed, waiting for next tick", "date", dateKey, "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopping", "reason", context.Cause(ctx))
			return nil
		case <-r.clock.After(r.interval):
		}
	}
}
