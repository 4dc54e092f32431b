package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner executes a single tracking run.
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// Scheduler runs tracking passes periodically in the background.
type Scheduler struct {
	runner   Runner
	interval time.Duration
}

// NewScheduler creates a scheduler. A non-positive interval falls back to
// one run per day.
func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{runner: runner, interval: interval}
}

// Run starts the periodic loop. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "pipeline.scheduler"))
	log.Info("starting run scheduler", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("run scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, log)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, log *zap.Logger) {
	res, err := s.runner.Run(ctx)
	if err != nil {
		log.Error("pipeline: scheduled run failed", zap.Error(err))
		return
	}
	log.Info("pipeline: scheduled run complete",
		zap.String("run_id", res.RunID),
		zap.Int("priced", len(res.Rows)),
		zap.Int("failed", res.Failed),
	)
}
