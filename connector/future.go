package connector

import (
	"errors"
	"net"
	"net/netip"

	"nconnect/future"
)

// ErrPolledAfterCompletion is returned when a ConnectFuture is polled
// again after it produced its outcome.
var ErrPolledAfterCompletion = errors.New("connect future polled after completion")

// state is either resolving or connecting.
type state interface{ isState() }

type resolving struct {
	lookup future.Future[netip.AddrPort]
}

type connecting struct {
	connect future.Future[net.Conn]
}

// finished marks a delivered outcome.
type finished struct{}

func (resolving) isState()  {}
func (connecting) isState() {}
func (finished) isState()   {}

// ConnectFuture is a single connect operation: resolve, then connect.
// It moves from resolving to connecting exactly once and is driven by
// the owner's Poll calls.
type ConnectFuture struct {
	state       state
	establisher Establisher
}

// Poll advances the operation.  A single Poll that sees the lookup
// complete starts the connection attempt and polls it before
// returning.
func (f *ConnectFuture) Poll(w future.Waker) (net.Conn, bool, error) {
	for {
		switch s := f.state.(type) {
		case resolving:
			addr, ready, err := s.lookup.Poll(w)
			if !ready {
				return nil, false, nil
			}
			if err != nil {
				f.state = finished{}
				return nil, true, &Error{Kind: KindResolve, Err: err}
			}
			f.state = connecting{connect: f.establisher.Connect(addr)}

		case connecting:
			conn, ready, err := s.connect.Poll(w)
			if !ready {
				return nil, false, nil
			}
			f.state = finished{}
			if err != nil {
				return nil, true, &Error{Kind: KindConnect, Err: err}
			}
			return conn, true, nil

		default:
			return nil, true, ErrPolledAfterCompletion
		}
	}
}

// Cancel abandons the operation, cancelling whichever phase is live.
func (f *ConnectFuture) Cancel() {
	switch s := f.state.(type) {
	case resolving:
		s.lookup.Cancel()
	case connecting:
		s.connect.Cancel()
	}
	f.state = finished{}
}
