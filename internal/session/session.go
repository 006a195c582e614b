// Package session binds an established connection to the local I/O
// endpoints a capability works with.
package session

import (
	"io"
	"net"

	"nconnect/util"
)

// Session is one established connection together with where its
// data comes from and goes to.  Capabilities operate on sessions
// rather than raw connections.
type Session struct {
	Target string // what the user asked for, e.g. "svc-a:443"
	Conn   net.Conn
	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger
}

// New creates a Session bound to the given connection and I/O pair.
func New(target string, conn net.Conn, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	return &Session{
		Target: target,
		Conn:   conn,
		Stdin:  stdin,
		Stdout: stdout,
		Logger: logger,
	}
}

// Close closes the connection and logs the end of the session.
func (s *Session) Close() error {
	err := s.Conn.Close()
	s.Logger.Verbose("connection to %s closed", s.Target)
	return err
}
