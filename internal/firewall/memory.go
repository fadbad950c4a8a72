package firewall

import (
	"context"
	"net/netip"
	"slices"
	"sync"
)

// Memory is an in-process rule table. It is used for dry runs and tests.
type Memory struct {
	mu    sync.Mutex
	rules map[netip.Addr]Rule
}

func NewMemory() *Memory {
	return &Memory{rules: make(map[netip.Addr]Rule)}
}

func (m *Memory) Apply(_ context.Context, rule Rule) error {
	if !rule.IP.IsValid() {
		return invalidAddress("", "address is not set")
	}
	ip := rule.IP.Unmap()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[ip]; ok {
		return nil
	}

	rule.IP = ip
	if rule.ExpiresAt != nil {
		expiresAt := *rule.ExpiresAt
		rule.ExpiresAt = &expiresAt
	}
	m.rules[ip] = rule
	return nil
}

func (m *Memory) Revoke(_ context.Context, ip netip.Addr) error {
	if !ip.IsValid() {
		return invalidAddress("", "address is not set")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rules, ip.Unmap())
	return nil
}

func (m *Memory) List(_ context.Context) ([]Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules := make([]Rule, 0, len(m.rules))
	for _, r := range m.rules {
		rules = append(rules, r)
	}
	slices.SortFunc(rules, func(a, b Rule) int { return a.IP.Compare(b.IP) })

	return rules, nil
}

// Has reports whether a rule for ip is installed.
func (m *Memory) Has(ip netip.Addr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.rules[ip.Unmap()]
	return ok
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rules)
}
