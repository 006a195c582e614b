package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"strings"
	"testing"
	"time"

	"nconnect/config"
	"nconnect/connector"
	"nconnect/future"
	"nconnect/internal/capability"
	ncerr "nconnect/internal/errors"
	"nconnect/internal/metrics"
	"nconnect/internal/resolve"
	"nconnect/internal/retry"
	"nconnect/util"
)

// greetServer accepts one connection, sends msg and closes.
func greetServer(t *testing.T, msg string) *net.TCPAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(msg)) //nolint:errcheck
	}()
	return ln.Addr().(*net.TCPAddr)
}

func buildConnectMode(t *testing.T, cfg *config.Config, c *metrics.Collector) *ConnectMode {
	t.Helper()
	mode, err := Build(cfg, util.NewLogger(0), c)
	if err != nil {
		t.Fatal(err)
	}
	cm, ok := mode.(*ConnectMode)
	if !ok {
		t.Fatalf("expected *ConnectMode, got %T", mode)
	}
	return cm
}

// TestConnectMode_TCP verifies end-to-end connect mode with Relay.
func TestConnectMode_TCP(t *testing.T) {
	addr := greetServer(t, "hello from server\n")

	output := &bytes.Buffer{}
	mode := buildConnectMode(t, &config.Config{Host: "127.0.0.1", Port: addr.Port, Timeout: 2 * time.Second}, nil)
	mode.Stdin = bytes.NewBufferString("")
	mode.Stdout = output

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := output.String(); got != "hello from server\n" {
		t.Errorf("output = %q, want %q", got, "hello from server\n")
	}
}

// TestConnectMode_SendData verifies data flows from client to server.
func TestConnectMode_SendData(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var buf bytes.Buffer
		io.Copy(&buf, conn)
		received <- buf.String()
	}()

	mode := buildConnectMode(t, &config.Config{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}, nil)
	mode.Stdin = bytes.NewBufferString("payload from client")
	mode.Stdout = &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_ = mode.Run(ctx)

	select {
	case got := <-received:
		if got != "payload from client" {
			t.Errorf("server got %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for data")
	}
}

// TestConnectMode_HostMapAndMetrics connects to a mapped name with DNS
// disabled and checks what the collector saw.
func TestConnectMode_HostMapAndMetrics(t *testing.T) {
	addr := greetServer(t, "mapped\n")
	c := metrics.New()

	cfg := &config.Config{
		Host:    "svc-a",
		Port:    addr.Port,
		NoDNS:   true,
		HostMap: map[string]netip.Addr{"svc-a": netip.MustParseAddr("127.0.0.1")},
	}
	output := &bytes.Buffer{}
	mode := buildConnectMode(t, cfg, c)
	mode.Stdin = bytes.NewBufferString("")
	mode.Stdout = output

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if output.String() != "mapped\n" {
		t.Errorf("output = %q", output.String())
	}

	snap := c.Snapshot()
	if snap.Lookups != 1 || snap.ConnectAttempts != 1 || snap.ConnectionsTotal != 1 {
		t.Errorf("lookups=%d attempts=%d connections=%d, want 1/1/1",
			snap.Lookups, snap.ConnectAttempts, snap.ConnectionsTotal)
	}
	if snap.ConnectionsActive != 0 {
		t.Errorf("active = %d after Run, want 0", snap.ConnectionsActive)
	}
	if snap.BytesIn != int64(len("mapped\n")) {
		t.Errorf("bytes in = %d", snap.BytesIn)
	}
}

// TestConnectMode_NameNotFoundNotRetried verifies a failed lookup ends
// the run at once even with retries configured.
func TestConnectMode_NameNotFoundNotRetried(t *testing.T) {
	lookups, connects := 0, 0
	conn := connector.New[resolve.Target](
		connector.EstablisherFunc(func(netip.AddrPort) future.Future[net.Conn] {
			connects++
			return future.Failed[net.Conn](errors.New("unreachable"))
		}),
		connector.ResolverFunc[resolve.Target](func(t resolve.Target) future.Future[netip.AddrPort] {
			lookups++
			return future.Failed[netip.AddrPort](&resolve.LookupError{Host: t.Host, Err: resolve.ErrNameNotFound})
		}),
	)
	c := metrics.New()
	mode := &ConnectMode{
		Connector:  conn,
		Target:     resolve.NewTarget("bad-host", 80),
		Backoff:    &retry.Backoff{InitialDelay: time.Millisecond, MaxAttempts: 4},
		Capability: &capability.Relay{},
		Metrics:    c,
	}

	err := mode.Run(context.Background())
	if !errors.Is(err, resolve.ErrNameNotFound) {
		t.Fatalf("err = %v, want ErrNameNotFound", err)
	}
	if ncerr.Stage(err) != "resolve" {
		t.Errorf("Stage = %q, want resolve", ncerr.Stage(err))
	}
	if !strings.Contains(err.Error(), "connect to bad-host:80: resolve: lookup bad-host") {
		t.Errorf("message = %q", err.Error())
	}
	if lookups != 1 || connects != 0 {
		t.Errorf("lookups=%d connects=%d, want 1/0", lookups, connects)
	}
	if c.ErrorCount() != 1 {
		t.Errorf("errors = %d, want 1", c.ErrorCount())
	}
}

// TestConnectMode_RetriesConnectFailure verifies that a fresh connect
// operation is started for each retry.
func TestConnectMode_RetriesConnectFailure(t *testing.T) {
	lookups, connects := 0, 0
	conn := connector.New[resolve.Target](
		connector.EstablisherFunc(func(netip.AddrPort) future.Future[net.Conn] {
			connects++
			if connects < 3 {
				return future.Failed[net.Conn](errors.New("connection refused"))
			}
			local, remote := net.Pipe()
			go func() {
				remote.Write([]byte("third time\n")) //nolint:errcheck
				remote.Close()
			}()
			return future.Ready[net.Conn](local)
		}),
		connector.ResolverFunc[resolve.Target](func(resolve.Target) future.Future[netip.AddrPort] {
			lookups++
			return future.Ready(netip.MustParseAddrPort("10.0.0.5:443"))
		}),
	)

	output := &bytes.Buffer{}
	mode := &ConnectMode{
		Connector:  conn,
		Target:     resolve.NewTarget("svc-a", 443),
		Backoff:    &retry.Backoff{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 5},
		Capability: &capability.Relay{},
		Stdin:      bytes.NewBufferString(""),
		Stdout:     output,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if output.String() != "third time\n" {
		t.Errorf("output = %q", output.String())
	}
	if lookups != 3 || connects != 3 {
		t.Errorf("lookups=%d connects=%d, want 3/3", lookups, connects)
	}
}

// TestConnectMode_AttemptTimeout verifies the per-attempt timeout wraps
// the whole connect operation, lookup included.
func TestConnectMode_AttemptTimeout(t *testing.T) {
	conn := connector.New[resolve.Target](
		connector.EstablisherFunc(func(netip.AddrPort) future.Future[net.Conn] {
			t.Error("connect must not start before the lookup finishes")
			return future.Failed[net.Conn](errors.New("unexpected"))
		}),
		connector.ResolverFunc[resolve.Target](func(resolve.Target) future.Future[netip.AddrPort] {
			return future.Go(func(ctx context.Context) (netip.AddrPort, error) {
				<-ctx.Done()
				return netip.AddrPort{}, ctx.Err()
			})
		}),
	)
	mode := &ConnectMode{
		Connector:  conn,
		Target:     resolve.NewTarget("slow", 80),
		Timeout:    30 * time.Millisecond,
		Capability: &capability.Relay{},
	}

	err := mode.Run(context.Background())
	if !errors.Is(err, ncerr.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestConnectMode_String(t *testing.T) {
	mode := buildConnectMode(t, &config.Config{Host: "svc-a", Port: 443, Retries: 2, CacheSize: 8}, nil)
	got := mode.String()
	for _, want := range []string{"connect svc-a:443", "resolver=cached+system", "establisher=tcp", "attempts=3"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
