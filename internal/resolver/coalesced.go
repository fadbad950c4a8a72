package resolver

import (
	"context"
	"net/netip"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Coalesced shares one in-flight lookup between concurrent callers asking for
// the same name.
type Coalesced struct {
	next  Resolver
	group singleflight.Group
}

func NewCoalesced(next Resolver) *Coalesced {
	return &Coalesced{next: next}
}

func (c *Coalesced) Resolve(ctx context.Context, domain string) ([]netip.Addr, error) {
	key := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))

	ch := c.group.DoChan(key, func() (any, error) {
		// the shared lookup must not be cut short by the first caller going away
		return c.next.Resolve(context.WithoutCancel(ctx), domain)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]netip.Addr)), nil
	}
}
