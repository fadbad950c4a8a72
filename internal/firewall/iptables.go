package firewall

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"os/exec"
	"slices"
	"strings"
	"time"

	"blockwatch/internal/config"
)

type direction struct {
	chain string
	flag  string
}

var directionsByName = map[string]direction{
	"input":  {chain: "INPUT", flag: "-s"},
	"output": {chain: "OUTPUT", flag: "-d"},
}

// IPTables manages one rule per configured direction for each blocked
// address, tagged with the block metadata so it can be recovered with List.
type IPTables struct {
	runner     Runner
	v4Path     string
	v6Path     string
	directions []direction
	target     string
	enableIPv6 bool
	timeout    time.Duration
	logger     *slog.Logger
}

func NewIPTables(cfg config.FirewallConfig, runner Runner, logger *slog.Logger) *IPTables {
	var dirs []direction
	for _, name := range cfg.Directions {
		if d, ok := directionsByName[name]; ok {
			dirs = append(dirs, d)
		}
	}
	if len(dirs) == 0 {
		dirs = []direction{directionsByName["input"], directionsByName["output"]}
	}

	target := cfg.Target
	if target == "" {
		target = "DROP"
	}

	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &IPTables{
		runner:     runner,
		v4Path:     cfg.IPTablesPath,
		v6Path:     cfg.IP6TablesPath,
		directions: dirs,
		target:     target,
		enableIPv6: cfg.EnableIPv6,
		timeout:    timeout,
		logger:     logger,
	}
}

func (t *IPTables) Apply(ctx context.Context, rule Rule) error {
	if !rule.IP.IsValid() {
		return invalidAddress("", "address is not set")
	}
	ip := rule.IP.Unmap()

	bin, err := t.binary(ip)
	if err != nil {
		return err
	}

	var added []direction
	for _, d := range t.directions {
		existing, err := t.listOwned(ctx, bin, d, ip.String())
		if err != nil {
			t.rollback(ctx, bin, ip, added)
			return err
		}

		if containsAddr(existing, ip) {
			continue
		}

		args := []string{"-I", d.chain, "1", d.flag, ip.String(),
			"-m", "comment", "--comment", ruleTag(rule), "-j", t.target}
		if _, err := t.run(ctx, ip.String(), bin, args...); err != nil {
			t.rollback(ctx, bin, ip, added)
			return err
		}

		added = append(added, d)
	}

	if len(added) > 0 {
		t.logger.Debug("installed firewall rules", "ip", ip.String(), "chains", len(added))
	}

	return nil
}

func (t *IPTables) Revoke(ctx context.Context, ip netip.Addr) error {
	if !ip.IsValid() {
		return invalidAddress("", "address is not set")
	}
	ip = ip.Unmap()

	bin, err := t.binary(ip)
	if err != nil {
		return err
	}

	var removed []chainRule
	for _, d := range t.directions {
		deleted, err := t.deleteOwned(ctx, bin, d, ip)
		removed = append(removed, deleted...)
		if err != nil {
			t.reinsert(ctx, bin, ip, removed)
			return err
		}
	}

	return nil
}

func (t *IPTables) List(ctx context.Context) ([]Rule, error) {
	bins := []string{t.v4Path}
	if t.enableIPv6 {
		bins = append(bins, t.v6Path)
	}

	byAddr := make(map[netip.Addr]Rule)
	chains := make(map[netip.Addr]int)
	for _, bin := range bins {
		for _, d := range t.directions {
			owned, err := t.listOwned(ctx, bin, d, "")
			if err != nil {
				return nil, err
			}

			seenInChain := make(map[netip.Addr]bool)
			for _, r := range owned {
				if !seenInChain[r.addr] {
					seenInChain[r.addr] = true
					chains[r.addr]++
				}
				prev, seen := byAddr[r.addr]
				if seen && !r.blockedAt.Before(prev.BlockedAt) {
					continue
				}
				byAddr[r.addr] = Rule{IP: r.addr, BlockedAt: r.blockedAt, ExpiresAt: r.expiresAt}
			}
		}
	}

	rules := make([]Rule, 0, len(byAddr))
	for addr, r := range byAddr {
		r.Partial = chains[addr] < len(t.directions)
		rules = append(rules, r)
	}
	slices.SortFunc(rules, func(a, b Rule) int { return a.IP.Compare(b.IP) })

	return rules, nil
}

func (t *IPTables) binary(ip netip.Addr) (string, error) {
	if ip.Is4() {
		return t.v4Path, nil
	}
	if !t.enableIPv6 {
		return "", invalidAddress(ip.String(), "IPv6 blocking is disabled")
	}
	return t.v6Path, nil
}

// chainRule is an owned rule removed from chain, kept so it can be put back.
type chainRule struct {
	chain string
	spec  []string
}

// deleteOwned removes every owned rule for ip in d and returns the ones it
// deleted, including when a later deletion fails.
func (t *IPTables) deleteOwned(ctx context.Context, bin string, d direction, ip netip.Addr) ([]chainRule, error) {
	owned, err := t.listOwned(ctx, bin, d, ip.String())
	if err != nil {
		return nil, err
	}

	var deleted []chainRule
	for _, r := range owned {
		if r.addr != ip {
			continue
		}
		args := append([]string{"-D", d.chain}, r.spec...)
		if _, err := t.run(ctx, ip.String(), bin, args...); err != nil {
			return deleted, err
		}
		deleted = append(deleted, chainRule{chain: d.chain, spec: r.spec})
		t.logger.Debug("removed firewall rule", "ip", ip.String(), "chain", d.chain)
	}

	return deleted, nil
}

// rollback removes rules installed earlier in a failed Apply so that an
// address is never left half-blocked.
func (t *IPTables) rollback(ctx context.Context, bin string, ip netip.Addr, added []direction) {
	ctx = context.WithoutCancel(ctx)
	for _, d := range added {
		if _, err := t.deleteOwned(ctx, bin, d, ip); err != nil {
			t.logger.Error("failed to roll back firewall rule", "ip", ip.String(), "chain", d.chain, "error", err)
		}
	}
}

// reinsert puts back rules deleted earlier in a failed Revoke, so the address
// stays blocked in every direction while its entry remains ACTIVE.
func (t *IPTables) reinsert(ctx context.Context, bin string, ip netip.Addr, removed []chainRule) {
	ctx = context.WithoutCancel(ctx)
	for i := len(removed) - 1; i >= 0; i-- {
		r := removed[i]
		args := append([]string{"-I", r.chain, "1"}, r.spec...)
		if _, err := t.run(ctx, ip.String(), bin, args...); err != nil {
			t.logger.Error("failed to restore firewall rule after failed revoke", "ip", ip.String(), "chain", r.chain, "error", err)
		}
	}
}

type ownedRule struct {
	addr      netip.Addr
	spec      []string
	blockedAt time.Time
	expiresAt *time.Time
}

func containsAddr(rules []ownedRule, ip netip.Addr) bool {
	for _, r := range rules {
		if r.addr == ip {
			return true
		}
	}
	return false
}

func (t *IPTables) listOwned(ctx context.Context, bin string, d direction, ip string) ([]ownedRule, error) {
	res, err := t.run(ctx, ip, bin, "-S", d.chain)
	if err != nil {
		return nil, err
	}

	var owned []ownedRule
	for _, line := range strings.Split(res.Stdout, "\n") {
		if r, ok := parseRuleSpec(line, d); ok {
			owned = append(owned, r)
		}
	}

	return owned, nil
}

// parseRuleSpec parses one line of "iptables -S CHAIN" output and returns the
// rule if it blocks a single host and carries our comment tag.
func parseRuleSpec(line string, d direction) (ownedRule, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "-A" || fields[1] != d.chain {
		return ownedRule{}, false
	}

	spec := slices.Clone(fields[2:])

	var addr netip.Addr
	var comment string
	for i := 0; i < len(spec)-1; i++ {
		switch spec[i] {
		case d.flag:
			a, ok := parseHost(spec[i+1])
			if !ok {
				return ownedRule{}, false
			}
			addr = a
		case "--comment":
			spec[i+1] = strings.Trim(spec[i+1], `"`)
			comment = spec[i+1]
		}
	}

	if !addr.IsValid() {
		return ownedRule{}, false
	}

	blockedAt, expiresAt, ok := parseRuleTag(comment)
	if !ok {
		return ownedRule{}, false
	}

	return ownedRule{addr: addr, spec: spec, blockedAt: blockedAt, expiresAt: expiresAt}, true
}

func parseHost(s string) (netip.Addr, bool) {
	if prefix, err := netip.ParsePrefix(s); err == nil {
		if prefix.Bits() != prefix.Addr().BitLen() {
			return netip.Addr{}, false
		}
		return prefix.Addr().Unmap(), true
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func (t *IPTables) run(ctx context.Context, ip string, bin string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.runner.Run(ctx, bin, args...)
	if err != nil || res.ExitCode != 0 {
		return res, classify(ip, commandString(bin, args), res, err)
	}

	return res, nil
}

func classify(ip, command string, res Result, err error) *Error {
	fwErr := &Error{IP: ip, Command: command, Stderr: res.Stderr, Err: err}
	stderr := strings.ToLower(res.Stderr)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fwErr.Kind = KindTimeout
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		fwErr.Kind = KindToolUnavailable
	case errors.Is(err, fs.ErrPermission):
		fwErr.Kind = KindPermissionDenied
	case err != nil:
		fwErr.Kind = KindCommandFailed
	case strings.Contains(stderr, "permission denied"),
		strings.Contains(stderr, "you must be root"),
		strings.Contains(stderr, "password is required"),
		res.ExitCode == 4:
		fwErr.Kind = KindPermissionDenied
	case strings.Contains(stderr, "command not found"), res.ExitCode == 127:
		fwErr.Kind = KindToolUnavailable
	case strings.Contains(stderr, "host/network") && strings.Contains(stderr, "not found"),
		strings.Contains(stderr, "bad argument"),
		res.ExitCode == 2:
		fwErr.Kind = KindInvalidAddress
	default:
		fwErr.Kind = KindCommandFailed
	}

	if fwErr.Err == nil {
		fwErr.Err = fmt.Errorf("exit status %d", res.ExitCode)
	}

	return fwErr
}
