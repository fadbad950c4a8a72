package jobs

import (
	"context"
	"log/slog"
	"time"

	"blockwatch/internal/blocker"
	"blockwatch/internal/metrics"
)

type Resyncer interface {
	Resync(ctx context.Context) (blocker.ResyncResult, error)
}

// ResyncJob repairs drift between the block registry and the firewall, e.g.
// after an operator flushed the chains by hand.
type ResyncJob struct {
	resyncer Resyncer
	interval time.Duration
	logger   *slog.Logger
}

func NewResyncJob(resyncer Resyncer, interval time.Duration, logger *slog.Logger) *ResyncJob {
	return &ResyncJob{
		resyncer: resyncer,
		interval: interval,
		logger:   logger,
	}
}

func (j *ResyncJob) Name() string {
	return ResyncJobName
}

func (j *ResyncJob) Interval() time.Duration {
	return j.interval
}

func (j *ResyncJob) Run(ctx context.Context) error {
	return runTicker(ctx, j.interval, j.resync)
}

func (j *ResyncJob) resync(ctx context.Context) {
	result, err := j.resyncer.Resync(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(j.Name(), metrics.ResultError).Inc()
		j.logger.Error("firewall resync failed", "failed", result.Failed, "error", err)
		return
	}
	metrics.JobRuns.WithLabelValues(j.Name(), metrics.ResultSuccess).Inc()
}
