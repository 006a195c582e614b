package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"testing"
	"time"

	"nconnect/connector"
	"nconnect/future"
	ncerr "nconnect/internal/errors"
)

var errFail = errors.New("fail")

// attempt runs one unit of work with outcome err through cb.
func attempt(cb *CircuitBreaker, err error) error {
	if e := cb.Allow(); e != nil {
		return e
	}
	cb.Record(err)
	return err
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Second})

	for i := 0; i < 3; i++ {
		if cb.CurrentState() != StateClosed {
			t.Fatalf("opened after %d failures", i)
		}
		attempt(cb, errFail) //nolint:errcheck
	}

	if cb.CurrentState() != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", cb.CurrentState())
	}
	if cb.Failures() != 3 {
		t.Errorf("expected 3 failures, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_RejectsWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	attempt(cb, errFail) //nolint:errcheck

	err := cb.Allow()
	if !errors.Is(err, ncerr.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})
	attempt(cb, errFail) //nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	if err := attempt(cb, nil); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	if cb.CurrentState() != StateHalfOpen {
		t.Errorf("expected half-open after first success, got %s", cb.CurrentState())
	}

	attempt(cb, nil) //nolint:errcheck
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after 2 successes, got %s", cb.CurrentState())
	}
	if cb.Failures() != 0 {
		t.Errorf("failures = %d after recovery", cb.Failures())
	}
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})
	attempt(cb, errFail) //nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	attempt(cb, errFail) //nolint:errcheck
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected open after half-open failure, got %s", cb.CurrentState())
	}
	if cb.Allow() == nil {
		t.Error("reopened circuit should reject with a fresh timeout")
	}
}

func TestCircuitBreaker_StateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  1,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, fmt.Sprintf("%s->%s", from, to))
		},
	})

	attempt(cb, errFail) //nolint:errcheck
	time.Sleep(20 * time.Millisecond)
	attempt(cb, nil) //nolint:errcheck

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if fmt.Sprint(transitions) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestCircuitBreaker_NilConfig(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	if cb.cfg.MaxFailures != 5 || cb.cfg.HalfOpenMax != 2 || cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("defaults = %+v", cb.cfg)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Second})

	attempt(cb, errFail) //nolint:errcheck
	attempt(cb, errFail) //nolint:errcheck
	attempt(cb, nil)     //nolint:errcheck

	if cb.Failures() != 0 {
		t.Errorf("expected 0 failures after success, got %d", cb.Failures())
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed, got %s", cb.CurrentState())
	}
}

// TestCircuitBreaker_IsFailure verifies that only classified errors
// count, while all errors still reach the caller.
func TestCircuitBreaker_IsFailure(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		IsFailure:    func(err error) bool { return ncerr.Stage(err) == "resolve" },
	})

	refused := &connector.Error{Kind: connector.KindConnect, Err: fmt.Errorf("refused")}
	for i := 0; i < 5; i++ {
		if err := attempt(cb, refused); err != refused {
			t.Fatalf("err = %v, want the connect error", err)
		}
	}
	if cb.CurrentState() != StateClosed {
		t.Fatalf("connect failures opened the circuit: %s", cb.CurrentState())
	}

	notFound := &connector.Error{Kind: connector.KindResolve, Err: ncerr.ErrNameNotFound}
	attempt(cb, notFound) //nolint:errcheck
	attempt(cb, notFound) //nolint:errcheck
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected open after 2 resolve failures, got %s", cb.CurrentState())
	}
}

// ── Guard ────────────────────────────────────────────────────────────

func TestGuard_RecordsOutcomes(t *testing.T) {
	var lookups int
	svc := connector.New[string](
		connector.EstablisherFunc(func(netip.AddrPort) future.Future[net.Conn] {
			c, _ := net.Pipe()
			return future.Ready(c)
		}),
		connector.ResolverFunc[string](func(host string) future.Future[netip.AddrPort] {
			lookups++
			if host == "bad-host" {
				return future.Failed[netip.AddrPort](ncerr.ErrNameNotFound)
			}
			return future.Ready(netip.MustParseAddrPort("10.0.0.5:443"))
		}),
	)
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		IsFailure:    func(err error) bool { return ncerr.Stage(err) == "resolve" },
	})
	guarded := Guard[string](svc, cb)
	ctx := context.Background()

	conn, err := connector.Dial(ctx, guarded, "svc-a")
	if err != nil {
		t.Fatalf("Dial svc-a: %v", err)
	}
	conn.Close()

	for i := 0; i < 2; i++ {
		if _, err := connector.Dial(ctx, guarded, "bad-host"); !connector.IsResolve(err) {
			t.Fatalf("err = %v, want a resolve error", err)
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.CurrentState())
	}

	_, err = connector.Dial(ctx, guarded, "svc-a")
	if !errors.Is(err, ncerr.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if lookups != 3 {
		t.Errorf("lookups = %d, want 3; the open circuit must not reach the resolver", lookups)
	}
}
