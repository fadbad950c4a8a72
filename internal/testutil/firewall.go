package testutil

import (
	"context"
	"net/netip"
	"sync"

	"blockwatch/internal/firewall"
)

// FakeFirewall wraps firewall.Memory with call counters and injectable failures.
type FakeFirewall struct {
	*firewall.Memory

	mu          sync.Mutex
	applyErr    error
	revokeErr   error
	listErr     error
	applyCalls  int
	revokeCalls int
}

func NewFakeFirewall() *FakeFirewall {
	return &FakeFirewall{Memory: firewall.NewMemory()}
}

func (f *FakeFirewall) Apply(ctx context.Context, rule firewall.Rule) error {
	f.mu.Lock()
	f.applyCalls++
	err := f.applyErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.Memory.Apply(ctx, rule)
}

func (f *FakeFirewall) Revoke(ctx context.Context, ip netip.Addr) error {
	f.mu.Lock()
	f.revokeCalls++
	err := f.revokeErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.Memory.Revoke(ctx, ip)
}

func (f *FakeFirewall) List(ctx context.Context) ([]firewall.Rule, error) {
	f.mu.Lock()
	err := f.listErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return f.Memory.List(ctx)
}

func (f *FakeFirewall) SetApplyError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyErr = err
}

func (f *FakeFirewall) SetRevokeError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeErr = err
}

func (f *FakeFirewall) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *FakeFirewall) ApplyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyCalls
}

func (f *FakeFirewall) RevokeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokeCalls
}

// HasRule reports whether a rule for the textual address is installed.
func (f *FakeFirewall) HasRule(ip string) bool {
	return f.Memory.Has(netip.MustParseAddr(ip))
}
