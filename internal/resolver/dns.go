package resolver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"blockwatch/internal/config"

	"github.com/miekg/dns"
)

const resolvConf = "/etc/resolv.conf"

var fallbackServers = []string{"1.1.1.1:53"}

type DNSResolver struct {
	client  *dns.Client
	servers []string
	logger  *slog.Logger
}

// NewDNSResolver queries the configured servers in order. Without configured
// servers it uses the nameservers from /etc/resolv.conf, then 1.1.1.1.
func NewDNSResolver(cfg config.ResolverConfig, logger *slog.Logger) *DNSResolver {
	servers := cfg.Servers
	if len(servers) == 0 {
		servers = systemServers()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
		logger:  logger,
	}
}

func systemServers() []string {
	cc, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil || len(cc.Servers) == 0 {
		return fallbackServers
	}

	servers := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		servers = append(servers, net.JoinHostPort(s, cc.Port))
	}
	return servers
}

// ValidateDomain normalises a domain name and rejects IP literals and names
// that are not syntactically valid.
func ValidateDomain(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if domain == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}
	if _, err := netip.ParseAddr(domain); err == nil {
		return "", fmt.Errorf("%w: %s is an IP address", ErrInvalidDomain, domain)
	}
	if _, ok := dns.IsDomainName(domain); !ok || !strings.Contains(domain, ".") {
		return "", fmt.Errorf("%w: %s", ErrInvalidDomain, domain)
	}
	return domain, nil
}

func (r *DNSResolver) Resolve(ctx context.Context, domain string) ([]netip.Addr, error) {
	name, err := ValidateDomain(domain)
	if err != nil {
		return nil, err
	}

	v4, err4 := r.query(ctx, name, dns.TypeA)
	v6, err6 := r.query(ctx, name, dns.TypeAAAA)

	addrs := append(v4, v6...)
	if len(addrs) > 0 {
		return dedupe(addrs), nil
	}

	// a missing name is definitive; otherwise an empty answer from one family
	// says nothing while the other family's lookup failed
	if !errors.Is(err4, ErrNoAddress) && !errors.Is(err6, ErrNoAddress) {
		if err := cmp.Or(err4, err6); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w for %s", ErrNoAddress, name)
}

func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			r.logger.Debug("dns query failed", "server", server, "name", name, "type", dns.TypeToString[qtype], "error", err)
			lastErr = err
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return nil, ErrNoAddress
		default:
			lastErr = fmt.Errorf("server %s answered %s", server, dns.RcodeToString[resp.Rcode])
			continue
		}

		var addrs []netip.Addr
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				if qtype == dns.TypeA {
					if a, ok := netip.AddrFromSlice(rec.A.To4()); ok {
						addrs = append(addrs, a)
					}
				}
			case *dns.AAAA:
				if qtype == dns.TypeAAAA {
					if a, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
						addrs = append(addrs, a.Unmap())
					}
				}
			}
		}
		return addrs, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no dns servers configured")
	}
	return nil, fmt.Errorf("dns lookup of %s failed: %w", name, lastErr)
}

func dedupe(addrs []netip.Addr) []netip.Addr {
	seen := make(map[netip.Addr]bool, len(addrs))
	out := addrs[:0]
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
