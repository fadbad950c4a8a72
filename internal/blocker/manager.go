package blocker

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"blockwatch/internal/enrich"
	"blockwatch/internal/firewall"
	"blockwatch/internal/metrics"
	"blockwatch/internal/models"
	"blockwatch/internal/storage"

	"github.com/google/uuid"
)

const (
	DefaultTTL              = time.Hour
	DefaultOperationTimeout = 5 * time.Second
)

// Manager owns the block registry. All mutations go through it and are
// serialised by one lock; the registry is persisted after every mutation.
//
// For every ACTIVE entry a firewall rule exists, and no rule exists for
// entries in any other state. An entry is only marked ACTIVE after Apply
// succeeded, and only leaves ACTIVE after Revoke succeeded.
type Manager struct {
	fw       firewall.Firewall
	store    storage.StorageProvider
	enricher enrich.Enricher
	logger   *slog.Logger
	now      func() time.Time

	defaultTTL time.Duration
	opTimeout  time.Duration

	mu      sync.Mutex
	entries map[string]models.BlockEntry

	// readers only ever see a published snapshot
	snap atomic.Pointer[snapshot]

	sweepMu sync.Mutex
}

type snapshot struct {
	active []models.BlockEntry
	byIP   map[string]models.BlockEntry
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock replaces time.Now, used to evaluate expiry deadlines.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// WithOperationTimeout bounds each firewall and store call.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.opTimeout = timeout
		}
	}
}

func WithEnricher(e enrich.Enricher) Option {
	return func(m *Manager) {
		if e != nil {
			m.enricher = e
		}
	}
}

func New(fw firewall.Firewall, store storage.StorageProvider, opts ...Option) *Manager {
	m := &Manager{
		fw:         fw,
		store:      store,
		enricher:   enrich.Nop{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		defaultTTL: DefaultTTL,
		opTimeout:  DefaultOperationTimeout,
		entries:    make(map[string]models.BlockEntry),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.publishLocked()
	return m
}

func (m *Manager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// Block installs a rule for ip and records an ACTIVE entry. A nil ttl uses the
// default TTL and a zero ttl blocks permanently. Blocking an address that is
// already ACTIVE returns the existing entry without touching the firewall.
//
// When the rule was installed but persisting failed, the new entry is returned
// together with the persistence error.
func (m *Manager) Block(ctx context.Context, ip string, ttl *time.Duration, source models.BlockSource) (models.BlockEntry, error) {
	return m.block(ctx, ip, ttl, source, "")
}

func (m *Manager) block(ctx context.Context, rawIP string, ttl *time.Duration, source models.BlockSource, domain string) (models.BlockEntry, error) {
	op := metrics.OperationBlock
	if domain != "" {
		op = metrics.OperationBlockDomain
	}

	addr, err := firewall.ParseAddr(rawIP)
	if err != nil {
		metrics.BlockOperations.WithLabelValues(op, metrics.ResultError).Inc()
		return models.BlockEntry{}, err
	}

	if ttl != nil && *ttl < 0 {
		metrics.BlockOperations.WithLabelValues(op, metrics.ResultError).Inc()
		return models.BlockEntry{}, ErrInvalidTTL
	}

	if !source.Valid() {
		source = models.SourceManual
	}

	key := addr.String()

	if existing, ok := m.snap.Load().byIP[key]; ok && existing.IsActive() {
		metrics.BlockOperations.WithLabelValues(op, metrics.ResultNoop).Inc()
		return existing.Clone(), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// another caller may have blocked it while we waited
	if existing, ok := m.entries[key]; ok && existing.IsActive() {
		metrics.BlockOperations.WithLabelValues(op, metrics.ResultNoop).Inc()
		return existing.Clone(), nil
	}

	now := m.now().UTC()
	entry := models.BlockEntry{
		IP:        key,
		BlockedAt: now,
		UpdatedAt: now,
		Source:    source,
		Status:    models.StatusActive,
		Domain:    domain,
	}

	lifetime := m.defaultTTL
	if ttl != nil {
		lifetime = *ttl
	}
	if lifetime > 0 {
		expiresAt := now.Add(lifetime)
		entry.ExpiresAt = &expiresAt
	}

	opCtx, cancel := m.opContext(ctx)
	err = m.fw.Apply(opCtx, firewall.Rule{IP: addr, BlockedAt: now, ExpiresAt: entry.ExpiresAt})
	cancel()
	if err != nil {
		m.recordFirewallError(op, err)
		m.logger.Error("failed to apply firewall rule", "ip", key, "error", err)
		return models.BlockEntry{}, err
	}

	info := m.enricher.Lookup(addr)
	entry.Country = info.Country
	entry.ASN = info.ASN
	entry.ASNOrg = info.ASNOrg

	m.entries[key] = entry
	m.publishLocked()
	metrics.BlockOperations.WithLabelValues(op, metrics.ResultSuccess).Inc()

	m.logger.Info("blocked ip",
		"ip", key,
		"source", source,
		"domain", domain,
		"expires_at", entry.ExpiresAt)

	err = m.persistLocked(ctx, m.newEvent(ctx, models.EventBlock, entry, string(source)))
	return entry.Clone(), err
}

// Unblock revokes the rule for an ACTIVE entry and marks it UNBLOCKED. It
// returns a *NotFoundError when the address has no ACTIVE entry. When Revoke
// fails the entry stays ACTIVE.
func (m *Manager) Unblock(ctx context.Context, ip string, reason string) error {
	addr, err := firewall.ParseAddr(ip)
	if err != nil {
		metrics.BlockOperations.WithLabelValues(metrics.OperationUnblock, metrics.ResultError).Inc()
		return err
	}
	key := addr.String()

	if reason == "" {
		reason = models.ReasonManual
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || !entry.IsActive() {
		metrics.BlockOperations.WithLabelValues(metrics.OperationUnblock, metrics.ResultNoop).Inc()
		return &NotFoundError{IP: key}
	}

	_, err = m.revokeLocked(ctx, addr, entry, models.StatusUnblocked, models.EventUnblock, reason, metrics.OperationUnblock)
	return err
}

// revokeLocked removes the rule for entry and moves it to status. changed
// reports whether the transition happened; err may still carry a
// persistence failure when changed is true.
func (m *Manager) revokeLocked(ctx context.Context, addr netip.Addr, entry models.BlockEntry, status models.BlockStatus, eventType models.HistoryEventType, reason, op string) (changed bool, err error) {
	opCtx, cancel := m.opContext(ctx)
	err = m.fw.Revoke(opCtx, addr)
	cancel()
	if err != nil {
		m.recordFirewallError(op, err)
		m.logger.Error("failed to revoke firewall rule, entry stays active",
			"ip", entry.IP,
			"reason", reason,
			"error", err)
		return false, err
	}

	entry.Status = status
	entry.Reason = reason
	entry.UpdatedAt = m.now().UTC()

	m.entries[entry.IP] = entry
	m.publishLocked()
	metrics.BlockOperations.WithLabelValues(op, metrics.ResultSuccess).Inc()

	m.logger.Info("unblocked ip", "ip", entry.IP, "status", status, "reason", reason)

	return true, m.persistLocked(ctx, m.newEvent(ctx, eventType, entry, reason))
}

// ListActive returns the ACTIVE entries ordered by block time, then address.
// It never waits for a mutation in progress.
func (m *Manager) ListActive() []models.BlockEntry {
	active := m.snap.Load().active
	out := make([]models.BlockEntry, len(active))
	for i, e := range active {
		out[i] = e.Clone()
	}
	return out
}

// Get returns the registry entry for ip in any state.
func (m *Manager) Get(ip string) (models.BlockEntry, error) {
	addr, err := firewall.ParseAddr(ip)
	if err != nil {
		return models.BlockEntry{}, err
	}

	entry, ok := m.snap.Load().byIP[addr.String()]
	if !ok {
		return models.BlockEntry{}, &NotFoundError{IP: addr.String()}
	}
	return entry.Clone(), nil
}

func (m *Manager) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	return m.store.ListHistory(ctx, limit)
}

// publishLocked rebuilds the read snapshot. m.mu must be held, except from New.
func (m *Manager) publishLocked() {
	s := &snapshot{byIP: make(map[string]models.BlockEntry, len(m.entries))}
	for key, e := range m.entries {
		e = e.Clone()
		s.byIP[key] = e
		if e.IsActive() {
			s.active = append(s.active, e)
		}
	}
	slices.SortFunc(s.active, compareEntries)

	m.snap.Store(s)
	metrics.ActiveBlocks.Set(float64(len(s.active)))
}

func compareEntries(a, b models.BlockEntry) int {
	if c := a.BlockedAt.Compare(b.BlockedAt); c != 0 {
		return c
	}
	aa, errA := netip.ParseAddr(a.IP)
	bb, errB := netip.ParseAddr(b.IP)
	if errA != nil || errB != nil {
		return cmp.Compare(a.IP, b.IP)
	}
	return aa.Compare(bb)
}

// persistLocked saves the whole registry, then appends the history events.
// Both are attempted; failures are joined.
func (m *Manager) persistLocked(ctx context.Context, events ...models.HistoryEvent) error {
	all := make([]models.BlockEntry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e.Clone())
	}
	slices.SortFunc(all, compareEntries)

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	var errs []error
	if err := m.store.Save(opCtx, all); err != nil {
		metrics.PersistenceErrors.WithLabelValues(metrics.StoreOperationSave).Inc()
		m.logger.Error("failed to save block registry", "error", err)
		errs = append(errs, err)
	}

	for _, event := range events {
		if err := m.store.AppendHistory(opCtx, event); err != nil {
			metrics.PersistenceErrors.WithLabelValues(metrics.StoreOperationAppendHistory).Inc()
			m.logger.Error("failed to append history event", "ip", event.IP, "type", event.Type, "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// opContext bounds a single firewall or store call. Once a mutation has
// started it runs to completion even if the caller goes away.
func (m *Manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.opTimeout)
}

func (m *Manager) newEvent(ctx context.Context, eventType models.HistoryEventType, entry models.BlockEntry, reason string) models.HistoryEvent {
	event := models.HistoryEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		IP:        entry.IP,
		Reason:    reason,
		Entry:     entry.Clone(),
		Timestamp: entry.UpdatedAt,
	}

	if actor, ok := ActorFromContext(ctx); ok {
		if actor.ClientIP != "" {
			event.ClientIP = &actor.ClientIP
		}
		if actor.UserAgent != "" {
			event.UserAgent = &actor.UserAgent
		}
		if actor.Client != "" {
			event.Client = &actor.Client
		}
	}

	return event
}

func (m *Manager) recordFirewallError(op string, err error) {
	kind := firewall.KindOf(err)
	if kind == "" {
		kind = firewall.KindCommandFailed
	}
	metrics.FirewallErrors.WithLabelValues(string(kind)).Inc()
	metrics.BlockOperations.WithLabelValues(op, metrics.ResultError).Inc()
}
