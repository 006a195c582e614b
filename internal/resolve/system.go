package resolve

import (
	"context"
	"errors"
	"net"
	"net/netip"

	"nconnect/connector"
	"nconnect/future"
	"nconnect/util"
)

var _ connector.Resolver[Target] = (*System)(nil)

// System resolves through a net.Resolver (the operating system's
// configuration by default).
type System struct {
	// Resolver defaults to net.DefaultResolver.
	Resolver *net.Resolver
	// Network is "ip", "ip4" or "ip6".
	Network string
	Logger  *util.Logger
}

// Lookup resolves t.Host and pairs the first address with t.Port.
func (s *System) Lookup(t Target) future.Future[netip.AddrPort] {
	if ap, ok := literal(t); ok {
		return future.Ready(ap)
	}

	r := s.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	network := normalizeNetwork(s.Network)

	return future.Go(func(ctx context.Context) (netip.AddrPort, error) {
		s.Logger.Debug("resolve: system lookup %s (%s)", t.Host, network)

		addrs, err := r.LookupNetIP(ctx, network, t.Host)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
				return netip.AddrPort{}, &LookupError{Host: t.Host, Err: ErrNameNotFound}
			}
			return netip.AddrPort{}, &LookupError{Host: t.Host, Err: err}
		}
		if len(addrs) == 0 {
			return netip.AddrPort{}, &LookupError{Host: t.Host, Err: ErrNameNotFound}
		}

		ap := netip.AddrPortFrom(addrs[0].Unmap(), t.Port)
		s.Logger.Debug("resolve: %s -> %s", t.Host, ap)
		return ap, nil
	})
}

// Numeric accepts IP literals only.  It backs the -n flag.
type Numeric struct{}

var _ connector.Resolver[Target] = Numeric{}

// Lookup returns t as an address or fails with ErrNumericOnly.
func (Numeric) Lookup(t Target) future.Future[netip.AddrPort] {
	if ap, ok := literal(t); ok {
		return future.Ready(ap)
	}
	return future.Failed[netip.AddrPort](&LookupError{Host: t.Host, Err: ErrNumericOnly})
}
