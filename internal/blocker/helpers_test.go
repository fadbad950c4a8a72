package blocker_test

import (
	"context"
	"net/netip"

	"blockwatch/internal/firewall"
)

// revokeHook runs hook before delegating Revoke.
type revokeHook struct {
	firewall.Firewall
	hook func()
}

func (r *revokeHook) Revoke(ctx context.Context, ip netip.Addr) error {
	r.hook()
	return r.Firewall.Revoke(ctx, ip)
}
