package blocker

import (
	"context"
	"fmt"
	"time"

	"blockwatch/internal/metrics"
	"blockwatch/internal/models"
	"blockwatch/internal/resolver"
)

// BlockDomain resolves domain and blocks the first address it resolves to,
// preferring IPv4. A failed lookup is returned as a *ResolutionError and is
// not retried. When blocking fails the returned entry still carries the
// resolved address and the domain.
func (m *Manager) BlockDomain(ctx context.Context, domain string, r resolver.Resolver, ttl *time.Duration) (models.BlockEntry, error) {
	name, err := resolver.ValidateDomain(domain)
	if err != nil {
		metrics.BlockOperations.WithLabelValues(metrics.OperationBlockDomain, metrics.ResultError).Inc()
		return models.BlockEntry{}, &ResolutionError{Domain: domain, Err: err}
	}

	addrs, err := r.Resolve(ctx, name)
	if err == nil && len(addrs) == 0 {
		err = resolver.ErrNoAddress
	}
	if err != nil {
		metrics.BlockOperations.WithLabelValues(metrics.OperationBlockDomain, metrics.ResultError).Inc()
		m.logger.Warn("domain did not resolve", "domain", name, "error", err)
		return models.BlockEntry{}, &ResolutionError{Domain: name, Err: err}
	}

	target := addrs[0]
	for _, a := range addrs {
		if a.Unmap().Is4() {
			target = a
			break
		}
	}

	m.logger.Debug("resolved domain", "domain", name, "ip", target.String(), "candidates", len(addrs))

	entry, err := m.block(ctx, target.String(), ttl, models.SourceDomainLookup, name)
	if err != nil {
		if entry.IP == "" {
			entry = models.BlockEntry{IP: target.Unmap().String(), Domain: name}
		}
		return entry, fmt.Errorf("block %s (%s): %w", name, target, err)
	}
	return entry, nil
}
