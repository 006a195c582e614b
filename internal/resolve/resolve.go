// Package resolve provides the name resolvers a connector can use to
// turn a host:port target into a concrete netip.AddrPort.
//
// Every resolver here satisfies connector.Resolver[Target].  Resolvers
// that block (System, DNS) run their query on a future.Go goroutine
// that starts when the returned future is first polled; IP literals
// are answered immediately without a query.
package resolve

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	ncerr "nconnect/internal/errors"
)

var (
	// ErrNameNotFound means the name has no address of the wanted family.
	ErrNameNotFound = ncerr.ErrNameNotFound
	// ErrNumericOnly is returned for host names when DNS is disabled.
	ErrNumericOnly = errors.New("not a numeric IP address (DNS disabled)")
)

// Target is a logical host:port pair to resolve.
type Target struct {
	Host string
	Port uint16
}

// NewTarget builds a Target from a host and an int port.
func NewTarget(host string, port int) Target {
	return Target{Host: host, Port: uint16(port)}
}

// ParseTarget splits "host:port" (or "[v6]:port") into a Target.
func ParseTarget(s string) (Target, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: %w", s, err)
	}
	if host == "" {
		return Target{}, fmt.Errorf("invalid target %q: empty host", s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return Target{}, fmt.Errorf("invalid target %q: bad port %q", s, portStr)
	}
	return Target{Host: host, Port: uint16(port)}, nil
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

// LookupError reports a failed lookup of Host.
type LookupError struct {
	Host string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s: %v", e.Host, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// literal returns t as an address when its host is an IP literal.
func literal(t Target) (netip.AddrPort, bool) {
	addr, err := netip.ParseAddr(t.Host)
	if err != nil {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(addr.Unmap(), t.Port), true
}

// normalizeNetwork maps anything but "ip4" and "ip6" onto "ip".
func normalizeNetwork(n string) string {
	switch n {
	case "ip4", "ip6":
		return n
	default:
		return "ip"
	}
}

func hostKey(host string) string {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}
