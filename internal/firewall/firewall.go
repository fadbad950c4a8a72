package firewall

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"blockwatch/internal/config"
)

//go:generate mockgen -source=firewall.go -destination=../mocks/firewall.go -package=mocks

// Firewall installs and removes host-level block rules. Apply and Revoke are
// idempotent: applying an address that already has a rule, or revoking one
// that has none, succeeds without changing anything.
type Firewall interface {
	Apply(ctx context.Context, rule Rule) error
	Revoke(ctx context.Context, ip netip.Addr) error
	// List returns the block rules this program owns that are currently installed.
	List(ctx context.Context) ([]Rule, error)
}

// Rule describes a single blocked address. BlockedAt is zero and ExpiresAt is
// nil when the backend cannot store metadata alongside the rule.
type Rule struct {
	IP        netip.Addr
	BlockedAt time.Time
	ExpiresAt *time.Time
	// Partial is set by List when the address is blocked in only some of the
	// backend's directions. Apply completes it.
	Partial bool
}

func New(cfg config.FirewallConfig, logger *slog.Logger) (Firewall, error) {
	switch cfg.Backend {
	case "iptables":
		return NewIPTables(cfg, NewExecRunner(cfg.UseSudo), logger), nil
	case "opnsense":
		if cfg.OPNsense == nil {
			return nil, fmt.Errorf("opnsense backend selected without opnsense settings")
		}
		return NewOPNsense(*cfg.OPNsense, cfg.CommandTimeout, logger), nil
	case "memory":
		logger.Warn("using in-memory firewall, no rules will be installed on this host")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported firewall backend: %s", cfg.Backend)
	}
}

// ParseAddr parses a textual IPv4 or IPv6 address into the canonical form used
// as a registry key. IPv4-mapped IPv6 addresses are unmapped. Unspecified,
// loopback and zoned addresses are rejected.
func ParseAddr(raw string) (netip.Addr, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return netip.Addr{}, invalidAddress(raw, "address is empty")
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, &Error{Kind: KindInvalidAddress, IP: raw, Err: err}
	}

	if addr.Zone() != "" {
		return netip.Addr{}, invalidAddress(raw, "zoned addresses cannot be blocked")
	}

	addr = addr.Unmap()

	if addr.IsUnspecified() {
		return netip.Addr{}, invalidAddress(raw, "unspecified address cannot be blocked")
	}

	if addr.IsLoopback() {
		return netip.Addr{}, invalidAddress(raw, "loopback address cannot be blocked")
	}

	return addr, nil
}
