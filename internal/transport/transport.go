// Package transport provides the connection establishers a connector
// uses once a target has been resolved: plain TCP, SOCKS5 proxies and
// SSH-tunnelled connections.
//
// Each establisher satisfies connector.Establisher.  Connect returns a
// future whose dial runs on its own goroutine once first polled, and
// Clone returns a copy that shares configuration but no per-attempt
// state.  Establishers holding long-lived resources (the SSH tunnel)
// also implement io.Closer.
package transport

import (
	"context"
	"io"
	"net"
	"net/netip"

	"nconnect/connector"
	"nconnect/future"
)

// dialFunc performs one connection attempt.
type dialFunc func(ctx context.Context, addr netip.AddrPort) (net.Conn, error)

// attempt wraps a single dial as a future.
func attempt(dial dialFunc, addr netip.AddrPort) future.Future[net.Conn] {
	return future.Go(func(ctx context.Context) (net.Conn, error) {
		return dial(ctx, addr)
	})
}

// Close releases e's long-lived resources, if it has any.
func Close(e connector.Establisher) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
