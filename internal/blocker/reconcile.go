package blocker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"time"

	"blockwatch/internal/firewall"
	"blockwatch/internal/metrics"
	"blockwatch/internal/models"
)

type RestoreResult struct {
	Loaded         int `json:"loaded"`
	Reapplied      int `json:"reapplied"`
	Expired        int `json:"expired"`
	Adopted        int `json:"adopted"`
	OrphansRevoked int `json:"orphans_revoked"`
	Failed         int `json:"failed"`
}

// Restore loads the persisted registry and reconciles it with the firewall. It
// must run before any request is served.
//
// ACTIVE entries past their deadline are expired; the others get their rule
// re-applied. Rules the firewall reports that have no ACTIVE entry were
// installed right before a crash: they are adopted when still within their
// lifetime and revoked otherwise. Firewall failures are counted in Failed and
// left for the sweep and resync jobs. Only a failed Load is returned as an error.
func (m *Manager) Restore(ctx context.Context) (RestoreResult, error) {
	var result RestoreResult

	loadCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	loaded, err := m.store.Load(loadCtx)
	cancel()
	if err != nil {
		return result, fmt.Errorf("failed to load block registry: %w", err)
	}
	result.Loaded = len(loaded)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]models.BlockEntry, len(loaded))
	for _, e := range loaded {
		addr, err := netip.ParseAddr(e.IP)
		if err != nil {
			m.logger.Warn("dropping stored entry with invalid address", "ip", e.IP, "error", err)
			continue
		}
		e.IP = addr.Unmap().String()
		if prev, ok := m.entries[e.IP]; ok && prev.UpdatedAt.After(e.UpdatedAt) {
			continue
		}
		m.entries[e.IP] = e
	}

	now := m.now().UTC()
	var events []models.HistoryEvent

	for _, key := range slices.Sorted(maps.Keys(m.entries)) {
		entry := m.entries[key]
		if !entry.IsActive() {
			continue
		}
		addr := netip.MustParseAddr(key)

		opCtx, cancel := m.opContext(ctx)
		if entry.IsExpired(now) {
			err = m.fw.Revoke(opCtx, addr)
		} else {
			err = m.fw.Apply(opCtx, firewall.Rule{IP: addr, BlockedAt: entry.BlockedAt, ExpiresAt: entry.ExpiresAt})
		}
		cancel()

		if err != nil {
			result.Failed++
			m.recordFirewallError(metrics.OperationRestore, err)
			m.logger.Error("failed to reconcile stored block", "ip", key, "error", err)
			continue
		}

		if !entry.IsExpired(now) {
			result.Reapplied++
			continue
		}

		entry.Status = models.StatusExpired
		entry.Reason = models.ReasonAutoExpiry
		entry.UpdatedAt = now
		m.entries[key] = entry
		result.Expired++
		metrics.ExpiredBlocks.Inc()
		events = append(events, m.newEvent(ctx, models.EventAutoExpiry, entry, models.ReasonAutoExpiry))
		m.logger.Info("expired block while offline", "ip", key, "expires_at", entry.ExpiresAt)
	}

	listCtx, cancel := m.opContext(ctx)
	rules, err := m.fw.List(listCtx)
	cancel()
	if err != nil {
		m.recordFirewallError(metrics.OperationRestore, err)
		m.logger.Warn("failed to list firewall rules, skipping orphan detection", "error", err)
	}

	for _, rule := range rules {
		key := rule.IP.Unmap().String()
		if existing, ok := m.entries[key]; ok && existing.IsActive() {
			continue
		}

		event, ok := m.reconcileOrphanLocked(ctx, rule, now, &result)
		if ok {
			events = append(events, event)
		}
	}

	m.publishLocked()

	if len(events) > 0 {
		if err := m.persistLocked(ctx, events...); err != nil {
			m.logger.Error("failed to persist reconciled registry", "error", err)
		}
	}

	m.logger.Info("block registry restored",
		"loaded", result.Loaded,
		"active", len(m.snap.Load().active),
		"reapplied", result.Reapplied,
		"expired", result.Expired,
		"adopted", result.Adopted,
		"orphans_revoked", result.OrphansRevoked,
		"failed", result.Failed)

	return result, nil
}

// reconcileOrphanLocked adopts or revokes a rule that has no ACTIVE entry.
func (m *Manager) reconcileOrphanLocked(ctx context.Context, rule firewall.Rule, now time.Time, result *RestoreResult) (models.HistoryEvent, bool) {
	addr := rule.IP.Unmap()
	key := addr.String()

	entry := models.BlockEntry{
		IP:        key,
		BlockedAt: rule.BlockedAt.UTC(),
		ExpiresAt: rule.ExpiresAt,
		UpdatedAt: now,
		Source:    models.SourceReconciled,
	}

	// backends without rule metadata get a fresh default lifetime
	if rule.BlockedAt.IsZero() {
		entry.BlockedAt = now
		expiresAt := now.Add(m.defaultTTL)
		entry.ExpiresAt = &expiresAt
	}

	if entry.IsExpired(now) {
		opCtx, cancel := m.opContext(ctx)
		err := m.fw.Revoke(opCtx, addr)
		cancel()
		if err != nil {
			result.Failed++
			m.recordFirewallError(metrics.OperationRestore, err)
			m.logger.Error("failed to revoke expired orphan rule", "ip", key, "error", err)
			return models.HistoryEvent{}, false
		}

		if _, known := m.entries[key]; known {
			// the stored entry already records that this address is not blocked
			result.OrphansRevoked++
			m.logger.Info("revoked expired orphan rule", "ip", key)
			return models.HistoryEvent{}, false
		}

		entry.Status = models.StatusExpired
		entry.Reason = models.ReasonOrphaned
		m.entries[key] = entry
		result.OrphansRevoked++
		m.logger.Info("revoked expired orphan rule", "ip", key)
		return m.newEvent(ctx, models.EventReconcile, entry, models.ReasonOrphaned), true
	}

	if rule.Partial {
		opCtx, cancel := m.opContext(ctx)
		err := m.fw.Apply(opCtx, firewall.Rule{IP: addr, BlockedAt: entry.BlockedAt, ExpiresAt: entry.ExpiresAt})
		cancel()
		if err != nil {
			// still adopted, resync completes the rule later
			result.Failed++
			m.recordFirewallError(metrics.OperationRestore, err)
			m.logger.Error("failed to complete partial orphan rule", "ip", key, "error", err)
		}
	}

	entry.Status = models.StatusActive
	entry.Reason = models.ReasonReconciled
	info := m.enricher.Lookup(addr)
	entry.Country = info.Country
	entry.ASN = info.ASN
	entry.ASNOrg = info.ASNOrg

	m.entries[key] = entry
	result.Adopted++
	m.logger.Info("adopted orphan firewall rule", "ip", key, "expires_at", entry.ExpiresAt)
	return m.newEvent(ctx, models.EventReconcile, entry, models.ReasonReconciled), true
}

type ResyncResult struct {
	Reapplied int `json:"reapplied"`
	Revoked   int `json:"revoked"`
	Failed    int `json:"failed"`
}

// Resync repairs drift between the registry and the firewall: ACTIVE entries
// whose rule disappeared, fully or from some directions, get it back, and tagged rules without an ACTIVE entry
// are removed. Each repair rechecks the entry under the lock.
func (m *Manager) Resync(ctx context.Context) (ResyncResult, error) {
	var result ResyncResult

	listCtx, cancel := m.opContext(ctx)
	rules, err := m.fw.List(listCtx)
	cancel()
	if err != nil {
		m.recordFirewallError(metrics.OperationResync, err)
		return result, fmt.Errorf("failed to list firewall rules: %w", err)
	}

	// installed maps each listed address to whether its rule is complete
	installed := make(map[string]bool, len(rules))
	for _, r := range rules {
		installed[r.IP.Unmap().String()] = !r.Partial
	}

	snap := m.snap.Load()
	now := m.now()

	var errs []error
	for _, e := range snap.active {
		if installed[e.IP] || e.IsExpired(now) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		changed, err := m.reapply(ctx, e.IP)
		switch {
		case err != nil:
			result.Failed++
			errs = append(errs, err)
		case changed:
			result.Reapplied++
		}
	}

	for key := range installed {
		if e, ok := snap.byIP[key]; ok && e.IsActive() {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		changed, err := m.removeStray(ctx, key)
		switch {
		case err != nil:
			result.Failed++
			errs = append(errs, err)
		case changed:
			result.Revoked++
		}
	}

	if result.Reapplied > 0 || result.Revoked > 0 || result.Failed > 0 {
		m.logger.Info("firewall resync finished",
			"reapplied", result.Reapplied,
			"revoked", result.Revoked,
			"failed", result.Failed)
	}

	return result, errors.Join(errs...)
}

func (m *Manager) reapply(ctx context.Context, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[ip]
	if !ok || !entry.IsActive() {
		return false, nil
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	err := m.fw.Apply(opCtx, firewall.Rule{IP: netip.MustParseAddr(ip), BlockedAt: entry.BlockedAt, ExpiresAt: entry.ExpiresAt})
	if err != nil {
		m.recordFirewallError(metrics.OperationResync, err)
		m.logger.Error("failed to re-apply missing firewall rule", "ip", ip, "error", err)
		return false, err
	}

	metrics.BlockOperations.WithLabelValues(metrics.OperationResync, metrics.ResultSuccess).Inc()
	m.logger.Warn("re-applied missing firewall rule", "ip", ip)
	return true, nil
}

func (m *Manager) removeStray(ctx context.Context, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[ip]; ok && entry.IsActive() {
		return false, nil
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false, err
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	if err := m.fw.Revoke(opCtx, addr); err != nil {
		m.recordFirewallError(metrics.OperationResync, err)
		m.logger.Error("failed to remove stray firewall rule", "ip", ip, "error", err)
		return false, err
	}

	metrics.BlockOperations.WithLabelValues(metrics.OperationResync, metrics.ResultSuccess).Inc()
	m.logger.Warn("removed stray firewall rule", "ip", ip)
	return true, nil
}
