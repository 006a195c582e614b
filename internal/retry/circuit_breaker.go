package retry

import (
	"fmt"
	"net"
	"sync"
	"time"

	"nconnect/connector"
	"nconnect/future"
	ncerr "nconnect/internal/errors"
)

// State is the breaker's position.
type State int

const (
	StateClosed   State = iota // connect operations pass through
	StateOpen                  // connect operations fail at once
	StateHalfOpen              // probing whether the target recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a [CircuitBreaker].  Zero values take
// the defaults noted on each field.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit (5).
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before probing (30s).
	ResetTimeout time.Duration
	// HalfOpenMax consecutive probe successes close it again (2).
	HalfOpenMax int
	// IsFailure picks the errors that count against the circuit; nil
	// counts all of them.  Other errors still reach the caller.
	IsFailure func(error) bool
	// OnStateChange runs under the breaker's lock on every transition.
	OnStateChange func(from, to State)
}

// CircuitBreaker counts consecutive failures and, past a threshold,
// rejects further work until ResetTimeout has elapsed.  It is safe for
// concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker returns a closed breaker.  cfg may be nil.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{}
	if cfg != nil {
		cb.cfg = *cfg
	}
	if cb.cfg.MaxFailures <= 0 {
		cb.cfg.MaxFailures = 5
	}
	if cb.cfg.ResetTimeout <= 0 {
		cb.cfg.ResetTimeout = 30 * time.Second
	}
	if cb.cfg.HalfOpenMax <= 0 {
		cb.cfg.HalfOpenMax = 2
	}
	return cb
}

// Allow reports whether work may start.  While open it returns an error
// wrapping ncerr.ErrCircuitOpen; once ResetTimeout has passed it moves
// to half-open and lets probes through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	since := time.Since(cb.openedAt)
	if since > cb.cfg.ResetTimeout {
		cb.moveTo(StateHalfOpen)
		return nil
	}
	return fmt.Errorf("%w: %d consecutive failures, retry in %v",
		ncerr.ErrCircuitOpen, cb.failures, (cb.cfg.ResetTimeout - since).Truncate(time.Second))
}

// Record feeds the outcome of allowed work back into the breaker.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || (cb.cfg.IsFailure != nil && !cb.cfg.IsFailure(err)) {
		cb.successes++
		switch {
		case cb.state == StateClosed:
			cb.failures = 0
		case cb.state == StateHalfOpen && cb.successes >= cb.cfg.HalfOpenMax:
			cb.failures = 0
			cb.moveTo(StateClosed)
		}
		return
	}

	cb.failures++
	cb.successes = 0
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
		cb.openedAt = time.Now()
		cb.moveTo(StateOpen)
	}
}

// CurrentState returns the breaker's state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) moveTo(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// ── ConnectService guard ─────────────────────────────────────────────

// Guard returns a ConnectService that consults cb before each connect
// operation and records its outcome.  A rejected operation is an
// already-failed future; svc is not called.
func Guard[T any](svc connector.ConnectService[T], cb *CircuitBreaker) connector.ConnectService[T] {
	return &guarded[T]{svc: svc, cb: cb}
}

type guarded[T any] struct {
	svc connector.ConnectService[T]
	cb  *CircuitBreaker
}

func (g *guarded[T]) Connect(target T) future.Future[net.Conn] {
	if err := g.cb.Allow(); err != nil {
		return future.Failed[net.Conn](err)
	}
	return future.Map(g.svc.Connect(target), func(c net.Conn, err error) (net.Conn, error) {
		g.cb.Record(err)
		return c, err
	})
}
