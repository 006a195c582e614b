// Package connector composes a name resolver and a connection
// establisher into a single service that connects to logical targets.
//
// A call to [Connector.Connect] returns a [ConnectFuture] that first
// resolves the target to a netip.AddrPort and then connects to that
// address.  Both phases are futures driven by the caller's Poll loop;
// the connector performs no threading, logging, retries or timeouts of
// its own.
//
//	c := connector.New(establisher, resolver)
//	conn, err := connector.Dial(ctx, c, target)
//	var cerr *connector.Error
//	if errors.As(err, &cerr) && cerr.Kind == connector.KindResolve {
//		// could not resolve target
//	}
package connector

import (
	"context"
	"net"
	"net/netip"

	"nconnect/future"
)

// ConnectService establishes connections to targets of type T.
type ConnectService[T any] interface {
	Connect(target T) future.Future[net.Conn]
}

// Resolver maps a logical target onto a concrete network address.
// Implementations may keep state (caches, rotation); a Connector issues
// exactly one Lookup per Connect.
type Resolver[T any] interface {
	Lookup(target T) future.Future[netip.AddrPort]
}

// Establisher connects to concrete addresses.  Clone must return an
// independent copy that shares no per-attempt state with the original.
type Establisher interface {
	ConnectService[netip.AddrPort]
	Clone() Establisher
}

// ── adapters ─────────────────────────────────────────────────────────

// EstablisherFunc adapts a function to the Establisher interface.
// A function value carries no per-attempt state, so Clone returns it
// unchanged.
type EstablisherFunc func(addr netip.AddrPort) future.Future[net.Conn]

// Connect calls f(addr).
func (f EstablisherFunc) Connect(addr netip.AddrPort) future.Future[net.Conn] { return f(addr) }

// Clone returns f.
func (f EstablisherFunc) Clone() Establisher { return f }

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc[T any] func(target T) future.Future[netip.AddrPort]

// Lookup calls f(target).
func (f ResolverFunc[T]) Lookup(target T) future.Future[netip.AddrPort] { return f(target) }

// ── Connector ────────────────────────────────────────────────────────

// Connector adapts an Establisher and a Resolver into a ConnectService
// that accepts logical targets.  It holds no per-request state and may
// be reused for any number of Connect calls; concurrent calls are safe
// only if the Resolver's Lookup is.
type Connector[T any] struct {
	establisher Establisher
	resolver    Resolver[T]
}

var _ ConnectService[string] = (*Connector[string])(nil)

// New returns a Connector that resolves with r and connects with e.
func New[T any](e Establisher, r Resolver[T]) *Connector[T] {
	return &Connector[T]{establisher: e, resolver: r}
}

// Connect starts resolving target and returns the in-flight operation.
// The operation gets its own clone of the establisher.
func (c *Connector[T]) Connect(target T) future.Future[net.Conn] {
	return &ConnectFuture{
		state:       resolving{lookup: c.resolver.Lookup(target)},
		establisher: c.establisher.Clone(),
	}
}

// Dial connects to target through svc and waits for the outcome.
// Cancelling ctx cancels the in-flight operation.
func Dial[T any](ctx context.Context, svc ConnectService[T], target T) (net.Conn, error) {
	return future.Await(ctx, svc.Connect(target))
}
