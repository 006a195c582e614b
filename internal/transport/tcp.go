package transport

import (
	"context"
	"net"
	"net/netip"
	"time"

	"nconnect/connector"
	"nconnect/future"
	ncerr "nconnect/internal/errors"
	"nconnect/util"
)

// TCP establishes plain TCP connections, optionally binding to a
// specific source port.
type TCP struct {
	Timeout   time.Duration
	LocalPort int // optional source-port binding (0 = ephemeral)
	Logger    *util.Logger
}

var _ connector.Establisher = (*TCP)(nil)

// Connect dials addr over TCP.
func (d *TCP) Connect(addr netip.AddrPort) future.Future[net.Conn] {
	return attempt(d.dial, addr)
}

// Clone returns an independent copy of d.
func (d *TCP) Clone() connector.Establisher {
	c := *d
	return &c
}

func (d *TCP) dial(ctx context.Context, addr netip.AddrPort) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	if d.LocalPort > 0 {
		dialer.LocalAddr = &net.TCPAddr{Port: d.LocalPort}
	}

	d.Logger.Debug("tcp: dialing %s", addr)
	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, ncerr.Wrap("dial", addr.String(), err)
	}
	return conn, nil
}
