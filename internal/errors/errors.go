// Package errors provides the error types shared by nconnect's
// resolvers, establishers and modes.
//
// NetworkError and SSHError record where a failure happened;
// IsRetryable and Stage look through connector.Error so that callers
// above a connector can tell a failed lookup from a failed dial.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"

	"nconnect/connector"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTimeout         = errors.New("operation timed out")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
	ErrNameNotFound    = errors.New("name not found")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "socks5", "write", "read"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "channel", "forward"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.  A lookup that
// found no such name is permanent; other failures are retryable when
// the underlying network error says so.  Connect failures behind a
// connector.Error are always retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNameNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable || Stage(err) == "connect"
	}
	if Stage(err) == "connect" {
		return true
	}
	return classifyRetryable(err)
}

// Stage returns "resolve" or "connect" for an error produced by a
// connector, and "" for anything else.
func Stage(err error) string {
	var ce *connector.Error
	if !errors.As(err, &ce) {
		return ""
	}
	switch {
	case ce.Kind == connector.KindResolve:
		return "resolve"
	case ce.Kind == connector.KindConnect:
		return "connect"
	}
	return ""
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	// net.OpError with Temporary() hint
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	// DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}
