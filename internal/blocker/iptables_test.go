package blocker_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"blockwatch/internal/blocker"
	"blockwatch/internal/config"
	"blockwatch/internal/firewall"
	"blockwatch/internal/models"
	"blockwatch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type iptablesFixture struct {
	m      *blocker.Manager
	fw     *firewall.IPTables
	runner *testutil.FakeIPTables
}

// newIPTablesFixture builds a manager on the iptables backend, blocking in
// both directions, with an in-memory runner underneath.
func newIPTablesFixture(t *testing.T) *iptablesFixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger()
	runner := testutil.NewFakeIPTables()
	fw := firewall.NewIPTables(config.FirewallConfig{
		IPTablesPath:   "iptables",
		IP6TablesPath:  "ip6tables",
		Directions:     []string{"input", "output"},
		Target:         "DROP",
		CommandTimeout: time.Second,
	}, runner, logger)

	clock := testutil.NewClock(t0)
	m := blocker.New(fw, testutil.NewFakeStore(),
		blocker.WithLogger(logger),
		blocker.WithClock(clock.Now),
		blocker.WithOperationTimeout(time.Second),
	)
	return &iptablesFixture{m: m, fw: fw, runner: runner}
}

func TestResync_CompletesRuleMissingFromOneChain(t *testing.T) {
	f := newIPTablesFixture(t)
	ctx := context.Background()

	_, err := f.m.Block(ctx, "10.0.0.5", ttl(time.Hour), models.SourceManual)
	require.NoError(t, err)
	require.Len(t, f.runner.Rules("iptables", "OUTPUT"), 1)

	f.runner.Flush("iptables", "OUTPUT")

	result, err := f.m.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, blocker.ResyncResult{Reapplied: 1}, result)

	assert.Len(t, f.runner.Rules("iptables", "INPUT"), 1)
	assert.Len(t, f.runner.Rules("iptables", "OUTPUT"), 1)

	result, err = f.m.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, blocker.ResyncResult{}, result)
}

func TestResync_RemovesStrayRuleInOneChain(t *testing.T) {
	f := newIPTablesFixture(t)
	ctx := context.Background()

	require.NoError(t, f.fw.Apply(ctx, firewall.Rule{IP: netip.MustParseAddr("10.0.0.6"), BlockedAt: t0}))
	f.runner.Flush("iptables", "INPUT")

	result, err := f.m.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, blocker.ResyncResult{Revoked: 1}, result)
	assert.Empty(t, f.runner.Rules("iptables", "OUTPUT"))
}

func TestRestore_CompletesAdoptedPartialRule(t *testing.T) {
	f := newIPTablesFixture(t)
	ctx := context.Background()

	expiresAt := t0.Add(50 * time.Minute)
	require.NoError(t, f.fw.Apply(ctx, firewall.Rule{IP: netip.MustParseAddr("10.0.0.7"), BlockedAt: t0.Add(-10 * time.Minute), ExpiresAt: &expiresAt}))
	f.runner.Flush("iptables", "OUTPUT")

	result, err := f.m.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Adopted)
	assert.Zero(t, result.Failed)

	entry, err := f.m.Get("10.0.0.7")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, entry.Status)
	assert.Len(t, f.runner.Rules("iptables", "INPUT"), 1)
	assert.Len(t, f.runner.Rules("iptables", "OUTPUT"), 1)
}

func TestUnblock_FailedRevokeKeepsEveryChainBlocked(t *testing.T) {
	f := newIPTablesFixture(t)
	ctx := context.Background()

	_, err := f.m.Block(ctx, "10.0.0.5", nil, models.SourceManual)
	require.NoError(t, err)

	f.runner.SetFailDelete("OUTPUT")
	err = f.m.Unblock(ctx, "10.0.0.5", "")
	require.Error(t, err)
	assert.True(t, firewall.IsKind(err, firewall.KindCommandFailed))

	entry, err := f.m.Get("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, entry.Status)
	assert.Len(t, f.runner.Rules("iptables", "INPUT"), 1)
	assert.Len(t, f.runner.Rules("iptables", "OUTPUT"), 1)

	result, err := f.m.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, blocker.ResyncResult{}, result)
}
