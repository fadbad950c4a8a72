package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"

	"blockwatch/internal/config"
)

var (
	// ErrNoAddress is returned when a name exists but has no A or AAAA records,
	// or does not exist at all.
	ErrNoAddress = errors.New("no addresses found")

	ErrInvalidDomain = errors.New("invalid domain name")
)

// Resolver maps a domain name to the IPv4 and IPv6 addresses it currently
// resolves to.
type Resolver interface {
	Resolve(ctx context.Context, domain string) ([]netip.Addr, error)
}

// Func adapts a plain function to the Resolver interface.
type Func func(ctx context.Context, domain string) ([]netip.Addr, error)

func (f Func) Resolve(ctx context.Context, domain string) ([]netip.Addr, error) {
	return f(ctx, domain)
}

// New returns the DNS resolver used by the server, with concurrent lookups of
// the same name coalesced.
func New(cfg config.ResolverConfig, logger *slog.Logger) Resolver {
	return NewCoalesced(NewDNSResolver(cfg, logger))
}
