package blocker

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"blockwatch/internal/metrics"
	"blockwatch/internal/models"
)

type SweepResult struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// Sweep expires every ACTIVE entry whose deadline has passed, through the
// same path as Unblock. Only one sweep runs at a time; a concurrent call
// returns ErrSweepInProgress. The mutation lock is taken per entry, so block
// and unblock requests interleave with a long sweep.
//
// Entries whose rule could not be revoked stay ACTIVE and are picked up again
// by the next sweep.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	if !m.sweepMu.TryLock() {
		return SweepResult{}, ErrSweepInProgress
	}
	defer m.sweepMu.Unlock()

	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := m.now()
	var due []string
	for _, e := range m.snap.Load().active {
		if e.IsExpired(now) {
			due = append(due, e.IP)
		}
	}

	var result SweepResult
	var errs []error
	for _, ip := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result.Checked++
		expired, err := m.expire(ctx, ip)
		if expired {
			result.Expired++
			metrics.ExpiredBlocks.Inc()
		} else if err != nil {
			result.Failed++
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if result.Checked > 0 {
		m.logger.Info("expiry sweep finished",
			"checked", result.Checked,
			"expired", result.Expired,
			"failed", result.Failed,
			"duration", time.Since(start))
	}

	return result, errors.Join(errs...)
}

// expire rechecks ip under the lock and expires it if it is still ACTIVE and
// past its deadline.
func (m *Manager) expire(ctx context.Context, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[ip]
	if !ok || !entry.IsActive() || !entry.IsExpired(m.now()) {
		return false, nil
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false, err
	}

	return m.revokeLocked(ctx, addr, entry, models.StatusExpired, models.EventAutoExpiry, models.ReasonAutoExpiry, metrics.OperationExpire)
}
