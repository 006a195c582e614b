// Package tunnel carries forwarded TCP connections through an SSH
// gateway (golang.org/x/crypto/ssh).  The SSH establisher in
// internal/transport forwards every resolved address through it.
package tunnel

import (
	"context"
	"net"
)

// Tunnel forwards connections through a gateway.  Implementations
// connect on first use and reconnect when the gateway drops.
type Tunnel interface {
	// Dial opens a connection to address through the gateway.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the gateway connection.  A later Dial
	// reconnects.
	Close() error

	// IsAlive reports whether a gateway connection is up.
	IsAlive() bool
}
