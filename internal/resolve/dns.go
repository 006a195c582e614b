package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"nconnect/connector"
	"nconnect/future"
	"nconnect/util"
)

var _ connector.Resolver[Target] = (*DNS)(nil)

// DNS queries one explicit server directly, bypassing the system
// resolver configuration.
type DNS struct {
	// Server is the "host:port" of the DNS server.
	Server string
	// Net is the query transport: "udp" (default) or "tcp".
	Net string
	// Network is "ip", "ip4" or "ip6".  With "ip", A is tried first.
	Network string
	Timeout time.Duration
	Logger  *util.Logger
}

// Lookup sends A and/or AAAA queries for t.Host.
func (d *DNS) Lookup(t Target) future.Future[netip.AddrPort] {
	if ap, ok := literal(t); ok {
		return future.Ready(ap)
	}

	return future.Go(func(ctx context.Context) (netip.AddrPort, error) {
		for _, qtype := range d.qtypes() {
			addr, err := d.query(ctx, t.Host, qtype)
			if err == nil {
				ap := netip.AddrPortFrom(addr, t.Port)
				d.Logger.Debug("resolve: %s -> %s via %s", t.Host, ap, d.Server)
				return ap, nil
			}
			if !errors.Is(err, ErrNameNotFound) {
				return netip.AddrPort{}, &LookupError{Host: t.Host, Err: err}
			}
		}
		return netip.AddrPort{}, &LookupError{Host: t.Host, Err: ErrNameNotFound}
	})
}

func (d *DNS) qtypes() []uint16 {
	switch normalizeNetwork(d.Network) {
	case "ip4":
		return []uint16{dns.TypeA}
	case "ip6":
		return []uint16{dns.TypeAAAA}
	default:
		return []uint16{dns.TypeA, dns.TypeAAAA}
	}
}

func (d *DNS) query(ctx context.Context, host string, qtype uint16) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	c := &dns.Client{Net: d.Net, Timeout: d.Timeout}
	d.Logger.Debug("resolve: %s %s @%s", dns.TypeToString[qtype], host, d.Server)

	in, _, err := c.ExchangeContext(ctx, m, d.Server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("query %s: %w", d.Server, err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return netip.Addr{}, ErrNameNotFound
	default:
		return netip.Addr{}, fmt.Errorf("query %s: server returned %s",
			d.Server, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				if addr, ok := netip.AddrFromSlice(v.A); ok {
					return addr.Unmap(), nil
				}
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				if addr, ok := netip.AddrFromSlice(v.AAAA); ok {
					return addr, nil
				}
			}
		}
	}
	return netip.Addr{}, ErrNameNotFound
}
