package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner drives the two phases on a timer. Each tick runs one full pass:
// Phase 1 then Phase 2, strictly sequential. In run-once mode it executes a
// single pass and returns, matching cron-style external scheduling.
type Runner struct {
	processor  *Processor
	dispatcher *Dispatcher
	interval   time.Duration
	runOnce    bool
	logger     *zap.Logger
}

func NewRunner(processor *Processor, dispatcher *Dispatcher, interval time.Duration, runOnce bool, logger *zap.Logger) *Runner {
	return &Runner{
		processor:  processor,
		dispatcher: dispatcher,
		interval:   interval,
		runOnce:    runOnce,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled (loop mode) or the single pass finishes
// (run-once mode). A mid-pass cancellation finishes the current pass; the
// next scheduled run resumes whatever is left.
func (r *Runner) Run(ctx context.Context) {
	if r.runOnce {
		r.pass(ctx)
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("pipeline scheduler started", zap.Duration("interval", r.interval))

	// First pass immediately rather than waiting one full interval.
	r.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pipeline scheduler stopping")
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	start := time.Now()

	if err := r.processor.Run(ctx); err != nil {
		r.logger.Error("phase 1 pass failed", zap.Error(err))
	}
	if err := r.dispatcher.Run(ctx); err != nil {
		r.logger.Error("phase 2 pass failed", zap.Error(err))
	}

	r.logger.Debug("pipeline pass complete", zap.Duration("took", time.Since(start)))
}
