package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"nconnect/connector"
	"nconnect/internal/capability"
	"nconnect/internal/metrics"
	"nconnect/internal/resolve"
	"nconnect/internal/retry"
	"nconnect/internal/session"
	"nconnect/util"
)

// ConnectMode resolves and connects to one target, then runs a
// capability on the connection.  It is the default client mode.
type ConnectMode struct {
	Connector connector.ConnectService[resolve.Target]
	Target    resolve.Target
	// Backoff retries failed connect operations; nil means one attempt.
	Backoff *retry.Backoff
	// Timeout bounds each attempt, lookup included.  Zero means none.
	Timeout    time.Duration
	Capability capability.Capability
	Logger     *util.Logger
	Metrics    *metrics.Collector

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer

	route route
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

func (m *ConnectMode) String() string {
	attempts := 1
	if m.Backoff != nil {
		attempts = m.Backoff.MaxAttempts
	}
	return fmt.Sprintf("connect %s %s attempts=%d timeout=%v", m.Target, m.route, attempts, m.Timeout)
}

// Run connects to the target, creates a session, and hands it to the
// capability.  The establisher is released when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.route.close() //nolint:errcheck

	m.Logger.Verbose("connecting to %s", m.Target)

	conn, err := retry.Dial(ctx, m.Backoff, m.Connector, m.Target, m.Timeout, m.Logger)
	if err != nil {
		m.Metrics.RecordError(err.Error())
		return fmt.Errorf("connect to %s: %w", m.Target, err)
	}

	m.Logger.Verbose("connected to %s (%s)", m.Target, conn.RemoteAddr())

	sess := session.New(m.Target.String(), conn, m.stdin(), m.stdout(), m.Logger)
	defer sess.Close() //nolint:errcheck
	return m.Capability.Handle(ctx, sess)
}
