package transport

import (
	"context"
	"net"
	"net/netip"

	"nconnect/connector"
	"nconnect/future"
	"nconnect/tunnel"
	"nconnect/util"
)

// SSH forwards connections through an SSH gateway.  Clones share the
// gateway's tunnel; each attempt opens its own forwarded channel.
type SSH struct {
	tun    tunnel.Tunnel
	logger *util.Logger
}

var _ connector.Establisher = (*SSH)(nil)

// NewSSH returns an establisher for the gateway described by cfg.
// Nothing is dialled until the first Connect is polled.
func NewSSH(cfg *tunnel.SSHConfig, logger *util.Logger) *SSH {
	return &SSH{tun: tunnel.NewSSHTunnel(cfg, logger.Named("ssh")), logger: logger}
}

// Connect forwards a connection to addr through the tunnel.
func (s *SSH) Connect(addr netip.AddrPort) future.Future[net.Conn] {
	return attempt(s.dial, addr)
}

// Clone returns an establisher sharing s's tunnel.
func (s *SSH) Clone() connector.Establisher {
	c := *s
	return &c
}

// Close tears down the shared tunnel.
func (s *SSH) Close() error {
	return s.tun.Close()
}

func (s *SSH) dial(ctx context.Context, addr netip.AddrPort) (net.Conn, error) {
	s.logger.Debug("ssh forward to %s", addr)
	return s.tun.Dial(ctx, "tcp", addr.String())
}
