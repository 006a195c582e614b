package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"golang.org/x/net/proxy"

	"nconnect/connector"
	"nconnect/future"
	ncerr "nconnect/internal/errors"
	"nconnect/util"
)

// SOCKS5 connects through a SOCKS5 proxy.  The resolved address is
// sent to the proxy as an IP, so no name leaves this process.
type SOCKS5 struct {
	Proxy   string      // proxy host:port
	Auth    *proxy.Auth // optional username/password
	Timeout time.Duration
	Logger  *util.Logger
}

var _ connector.Establisher = (*SOCKS5)(nil)

// Connect asks the proxy to connect to addr.
func (s *SOCKS5) Connect(addr netip.AddrPort) future.Future[net.Conn] {
	return attempt(s.dial, addr)
}

// Clone returns a copy of s with its own Auth value.
func (s *SOCKS5) Clone() connector.Establisher {
	c := *s
	if s.Auth != nil {
		a := *s.Auth
		c.Auth = &a
	}
	return &c
}

func (s *SOCKS5) dial(ctx context.Context, addr netip.AddrPort) (net.Conn, error) {
	forward := &net.Dialer{Timeout: s.Timeout}
	d, err := proxy.SOCKS5("tcp", s.Proxy, s.Auth, forward)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy %s: %w", s.Proxy, err)
	}

	s.Logger.Debug("socks5: %s via %s", addr, s.Proxy)

	var conn net.Conn
	if cd, ok := d.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, "tcp", addr.String())
	} else {
		conn, err = d.Dial("tcp", addr.String())
	}
	if err != nil {
		return nil, ncerr.Wrap("socks5", addr.String(), err)
	}
	return conn, nil
}
