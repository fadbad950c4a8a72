package jobs

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"blockwatch/internal/blocker"
	"blockwatch/internal/models"
	"blockwatch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name     string
	interval time.Duration
	runs     atomic.Int32
}

func (j *countingJob) Name() string            { return j.name }
func (j *countingJob) Interval() time.Duration { return j.interval }
func (j *countingJob) Run(ctx context.Context) error {
	return runTicker(ctx, j.interval, func(context.Context) { j.runs.Add(1) })
}

type sweeperFunc func(ctx context.Context) (blocker.SweepResult, error)

func (f sweeperFunc) Sweep(ctx context.Context) (blocker.SweepResult, error) { return f(ctx) }

func TestJobManager_StartAndShutdown(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	jm := NewJobManager(logger)

	job := &countingJob{name: "counter", interval: 5 * time.Millisecond}
	jm.Register(job)

	jm.Start(context.Background())
	require.Eventually(t, func() bool { return job.runs.Load() >= 3 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, jm.Shutdown(ctx))

	after := job.runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, job.runs.Load(), "no runs after shutdown")
}

func TestJobManager_SkipsDisabledJobs(t *testing.T) {
	logger, logs := testutil.NewTestLogger()
	jm := NewJobManager(logger)

	jm.Register(&countingJob{name: "disabled", interval: -1})
	assert.Empty(t, jm.jobs)
	assert.True(t, logs.ContainsMessage(slog.LevelInfo, "Job disabled"))
}

func TestJobManager_StartTwiceRunsOnce(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	jm := NewJobManager(logger)

	job := &countingJob{name: "counter", interval: time.Hour}
	jm.Register(job)
	jm.Start(context.Background())
	jm.Start(context.Background())

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, jm.Shutdown(context.Background()))
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunTicker_RejectsNonPositiveInterval(t *testing.T) {
	err := runTicker(context.Background(), 0, func(context.Context) {})
	assert.ErrorIs(t, err, errNonPositiveInterval)
}

func TestExpiryJob_ExpiresBlocks(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	clock := testutil.NewClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	fw := testutil.NewFakeFirewall()
	store := testutil.NewFakeStore()

	m := blocker.New(fw, store, blocker.WithClock(clock.Now), blocker.WithLogger(logger))
	ttl := time.Hour
	_, err := m.Block(context.Background(), "10.0.0.5", &ttl, models.SourceManual)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := NewExpiryJob(m, 5*time.Millisecond, logger)
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, m.ListActive(), 1, "not yet due")

	clock.Advance(61 * time.Minute)
	require.Eventually(t, func() bool { return len(m.ListActive()) == 0 }, time.Second, time.Millisecond)
	assert.False(t, fw.HasRule("10.0.0.5"))

	cancel()
	require.NoError(t, <-done)
}

func TestExpiryJob_FinishesSweepInProgressOnShutdown(t *testing.T) {
	logger, _ := testutil.NewTestLogger()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool

	sweeper := sweeperFunc(func(ctx context.Context) (blocker.SweepResult, error) {
		once.Do(func() { close(started) })
		<-release
		finished.Store(ctx.Err() == nil)
		return blocker.SweepResult{}, nil
	})

	jm := NewJobManager(logger)
	jm.Register(NewExpiryJob(sweeper, time.Hour, logger))
	jm.Start(context.Background())
	<-started

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- jm.Shutdown(context.Background()) }()

	select {
	case <-shutdownDone:
		t.Fatal("shutdown returned before the sweep finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-shutdownDone)
	assert.True(t, finished.Load(), "sweep ran with a live context")
}

func TestExpiryJob_ShutdownTimeout(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	release := make(chan struct{})
	defer close(release)

	sweeper := sweeperFunc(func(context.Context) (blocker.SweepResult, error) {
		<-release
		return blocker.SweepResult{}, nil
	})

	jm := NewJobManager(logger)
	jm.Register(NewExpiryJob(sweeper, time.Hour, logger))
	jm.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, jm.Shutdown(ctx), context.DeadlineExceeded)
}

func TestExpiryJob_SweepInProgressIsNotAnError(t *testing.T) {
	logger, logs := testutil.NewTestLogger()
	sweeper := sweeperFunc(func(context.Context) (blocker.SweepResult, error) {
		return blocker.SweepResult{}, blocker.ErrSweepInProgress
	})

	NewExpiryJob(sweeper, time.Minute, logger).sweep(context.Background())
	assert.False(t, logs.ContainsMessage(slog.LevelError, "expiry sweep failed, retrying on next tick"))
}

func TestResyncJob_ReappliesMissingRules(t *testing.T) {
	logger, _ := testutil.NewTestLogger()
	fw := testutil.NewFakeFirewall()
	m := blocker.New(fw, testutil.NewFakeStore(), blocker.WithLogger(logger))

	_, err := m.Block(context.Background(), "10.0.0.5", nil, models.SourceManual)
	require.NoError(t, err)
	require.NoError(t, fw.Memory.Revoke(context.Background(), netip.MustParseAddr("10.0.0.5")))

	job := NewResyncJob(m, time.Hour, logger)
	assert.Equal(t, ResyncJobName, job.Name())
	job.resync(context.Background())

	assert.True(t, fw.HasRule("10.0.0.5"))
}
