package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"blockwatch/internal/blocker"
	"blockwatch/internal/metrics"
)

type Sweeper interface {
	Sweep(ctx context.Context) (blocker.SweepResult, error)
}

// ExpiryJob periodically expires blocks whose deadline has passed.
type ExpiryJob struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
}

func NewExpiryJob(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *ExpiryJob {
	return &ExpiryJob{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

func (j *ExpiryJob) Name() string {
	return ExpiryJobName
}

func (j *ExpiryJob) Interval() time.Duration {
	return j.interval
}

func (j *ExpiryJob) Run(ctx context.Context) error {
	return runTicker(ctx, j.interval, j.sweep)
}

func (j *ExpiryJob) sweep(ctx context.Context) {
	result, err := j.sweeper.Sweep(ctx)
	switch {
	case errors.Is(err, blocker.ErrSweepInProgress):
		metrics.JobRuns.WithLabelValues(j.Name(), metrics.ResultNoop).Inc()
		j.logger.Debug("skipping expiry sweep, another sweep is running")
	case err != nil:
		metrics.JobRuns.WithLabelValues(j.Name(), metrics.ResultError).Inc()
		j.logger.Error("expiry sweep failed, retrying on next tick",
			"expired", result.Expired,
			"failed", result.Failed,
			"error", err)
	default:
		metrics.JobRuns.WithLabelValues(j.Name(), metrics.ResultSuccess).Inc()
	}
}
