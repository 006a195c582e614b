package resolve

import (
	"net/netip"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"nconnect/connector"
	"nconnect/future"
)

// Static answers from a fixed host table and hands everything else to
// an optional fallback.
type Static struct {
	hosts    map[string]netip.Addr
	fallback connector.Resolver[Target]
}

var _ connector.Resolver[Target] = (*Static)(nil)

// NewStatic copies hosts (names are matched case-insensitively).  A nil
// fallback makes unknown names fail with ErrNameNotFound.
func NewStatic(hosts map[string]netip.Addr, fallback connector.Resolver[Target]) *Static {
	m := make(map[string]netip.Addr, len(hosts))
	for h, a := range hosts {
		m[hostKey(h)] = a
	}
	return &Static{hosts: m, fallback: fallback}
}

// Lookup serves t from the table or the fallback.
func (s *Static) Lookup(t Target) future.Future[netip.AddrPort] {
	if addr, ok := s.hosts[hostKey(t.Host)]; ok {
		return future.Ready(netip.AddrPortFrom(addr, t.Port))
	}
	if s.fallback != nil {
		return s.fallback.Lookup(t)
	}
	return future.Failed[netip.AddrPort](&LookupError{Host: t.Host, Err: ErrNameNotFound})
}

// ── Cached ───────────────────────────────────────────────────────────

// Cached remembers successful lookups per host for a bounded time.
// It is safe for concurrent Lookup calls.
type Cached struct {
	inner connector.Resolver[Target]
	cache *expirable.LRU[string, netip.Addr]
}

var _ connector.Resolver[Target] = (*Cached)(nil)

// NewCached wraps inner with an LRU of at most size hosts, each kept
// for ttl.
func NewCached(inner connector.Resolver[Target], size int, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: expirable.NewLRU[string, netip.Addr](size, nil, ttl),
	}
}

// Lookup answers from the cache or asks inner and records the result.
// Failures are not cached.
func (c *Cached) Lookup(t Target) future.Future[netip.AddrPort] {
	key := hostKey(t.Host)
	if addr, ok := c.cache.Get(key); ok {
		return future.Ready(netip.AddrPortFrom(addr, t.Port))
	}
	return future.Map(c.inner.Lookup(t), func(ap netip.AddrPort, err error) (netip.AddrPort, error) {
		if err == nil {
			c.cache.Add(key, ap.Addr())
		}
		return ap, err
	})
}

// Len returns the number of cached hosts.
func (c *Cached) Len() int { return c.cache.Len() }

// Purge empties the cache.
func (c *Cached) Purge() { c.cache.Purge() }
