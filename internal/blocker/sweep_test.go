package blocker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"blockwatch/internal/blocker"
	"blockwatch/internal/firewall"
	"blockwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_ExpiresAfterTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Block(ctx, "10.0.0.5", ttl(time.Hour), models.SourceManual)
	require.NoError(t, err)

	f.clock.Advance(59 * time.Minute)
	result, err := f.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, blocker.SweepResult{}, result)
	assert.True(t, f.fw.HasRule("10.0.0.5"))

	f.clock.Advance(2 * time.Minute)
	result, err = f.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, blocker.SweepResult{Checked: 1, Expired: 1}, result)

	assert.False(t, f.fw.HasRule("10.0.0.5"))
	assert.Empty(t, f.m.ListActive())

	entry, err := f.m.Get("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, entry.Status)
	assert.Equal(t, models.ReasonAutoExpiry, entry.Reason)

	history := f.store.History()
	require.Len(t, history, 2)
	assert.Equal(t, models.EventAutoExpiry, history[1].Type)
	assert.Equal(t, models.ReasonAutoExpiry, history[1].Reason)

	saved, ok := f.store.SavedEntry("10.0.0.5")
	require.True(t, ok)
	assert.Equal(t, models.StatusExpired, saved.Status)
	f.assertConsistent(t)
}

func TestSweep_ExpiresExactlyAtDeadline(t *testing.T) {
	f := newFixture(t)

	_, err := f.m.Block(context.Background(), "10.0.0.5", ttl(time.Hour), models.SourceManual)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	result, err := f.m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
}

func TestSweep_SkipsPermanentBlocks(t *testing.T) {
	f := newFixture(t)

	_, err := f.m.Block(context.Background(), "10.0.0.5", ttl(0), models.SourceManual)
	require.NoError(t, err)

	f.clock.Advance(24 * 365 * time.Hour)
	result, err := f.m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Checked)
	assert.Len(t, f.m.ListActive(), 1)
}

func TestSweep_RevokeFailureRetriedNextTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Block(ctx, "10.0.0.5", ttl(time.Hour), models.SourceManual)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	f.fw.SetRevokeError(&firewall.Error{Kind: firewall.KindToolUnavailable, IP: "10.0.0.5"})

	result, err := f.m.Sweep(ctx)
	require.Error(t, err)
	assert.True(t, firewall.IsKind(err, firewall.KindToolUnavailable))
	assert.Equal(t, blocker.SweepResult{Checked: 1, Failed: 1}, result)

	entry, err := f.m.Get("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, entry.Status, "never marked expired without a confirmed revoke")
	assert.True(t, f.fw.HasRule("10.0.0.5"))
	f.assertConsistent(t)

	f.fw.SetRevokeError(nil)
	result, err = f.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
	assert.False(t, f.fw.HasRule("10.0.0.5"))
	f.assertConsistent(t)
}

func TestSweep_ContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Block(ctx, "10.0.0.5", ttl(time.Minute), models.SourceManual)
	require.NoError(t, err)
	_, err = f.m.Block(ctx, "10.0.0.6", ttl(time.Minute), models.SourceManual)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	f.fw.SetRevokeError(&firewall.Error{Kind: firewall.KindCommandFailed})

	result, err := f.m.Sweep(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, f.m.ListActive(), 2)
}

func TestSweep_NotConcurrentWithItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blocked := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	slow := &revokeHook{Firewall: f.fw, hook: func() {
		once.Do(func() { close(blocked) })
		<-release
	}}

	m := blocker.New(slow, f.store, blocker.WithClock(f.clock.Now))
	_, err := m.Block(ctx, "10.0.0.5", ttl(time.Minute), models.SourceManual)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := m.Sweep(ctx)
		done <- err
	}()

	<-blocked
	_, err = m.Sweep(ctx)
	assert.ErrorIs(t, err, blocker.ErrSweepInProgress)

	// reads are not blocked by the sweep in progress
	assert.Len(t, m.ListActive(), 1)

	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, m.ListActive())
}

func TestSweep_IgnoresUnblockedEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Block(ctx, "10.0.0.5", ttl(time.Minute), models.SourceManual)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	require.NoError(t, f.m.Unblock(ctx, "10.0.0.5", ""))

	result, err := f.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Expired)

	entry, err := f.m.Get("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnblocked, entry.Status)
}
