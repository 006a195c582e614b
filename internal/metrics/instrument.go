package metrics

import (
	"net"
	"net/netip"
	"sync"
	"time"

	"nconnect/connector"
	"nconnect/future"
)

// InstrumentResolver counts the lookups r performs and how many fail.
func InstrumentResolver[T any](r connector.Resolver[T], c *Collector) connector.Resolver[T] {
	if c == nil {
		return r
	}
	return connector.ResolverFunc[T](func(target T) future.Future[netip.AddrPort] {
		c.LookupStarted()
		return future.Map(r.Lookup(target), func(addr netip.AddrPort, err error) (netip.AddrPort, error) {
			if err != nil {
				c.LookupFailed()
			}
			return addr, err
		})
	})
}

// InstrumentEstablisher counts e's attempts and failures, times them,
// and tracks the connections it opens until they are closed.  Clones
// report to the same collector.
func InstrumentEstablisher(e connector.Establisher, c *Collector) connector.Establisher {
	if c == nil {
		return e
	}
	return &instrumented{inner: e, c: c}
}

type instrumented struct {
	inner connector.Establisher
	c     *Collector
}

func (i *instrumented) Connect(addr netip.AddrPort) future.Future[net.Conn] {
	i.c.ConnectStarted()
	start := time.Now()
	return future.Map(i.inner.Connect(addr), func(conn net.Conn, err error) (net.Conn, error) {
		i.c.ObserveConnect(time.Since(start))
		if err != nil {
			i.c.ConnectFailed()
			return nil, err
		}
		i.c.ConnectionOpened()
		return &countedConn{Conn: conn, c: i.c}, nil
	})
}

func (i *instrumented) Clone() connector.Establisher {
	return &instrumented{inner: i.inner.Clone(), c: i.c}
}

// Close closes the wrapped establisher if it holds resources.
func (i *instrumented) Close() error {
	if cl, ok := i.inner.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}

// countedConn adds the bytes it moves to the collector.
type countedConn struct {
	net.Conn
	c    *Collector
	once sync.Once
}

func (cc *countedConn) Read(p []byte) (int, error) {
	n, err := cc.Conn.Read(p)
	cc.c.BytesReceived(int64(n))
	return n, err
}

func (cc *countedConn) Write(p []byte) (int, error) {
	n, err := cc.Conn.Write(p)
	cc.c.BytesSent(int64(n))
	return n, err
}

// CloseWrite half-closes the underlying connection when it supports it.
func (cc *countedConn) CloseWrite() error {
	if cw, ok := cc.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (cc *countedConn) Close() error {
	cc.once.Do(cc.c.ConnectionClosed)
	return cc.Conn.Close()
}
