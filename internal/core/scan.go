package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"nconnect/config"
	"nconnect/connector"
	ncerr "nconnect/internal/errors"
	"nconnect/internal/metrics"
	"nconnect/internal/resolve"
	"nconnect/internal/retry"
	"nconnect/util"
)

// ScanResult records whether a single port is open.
type ScanResult struct {
	Port int
	Open bool
	Err  error
}

// ScanMode probes a set of TCP ports on one host through a shared
// connector and reports which are open.
type ScanMode struct {
	Connector connector.ConnectService[resolve.Target]
	Host      string
	Ports     []int
	Timeout   time.Duration
	// Concurrency caps simultaneous probes; zero means
	// config.DefaultMaxConcurrentScans.
	Concurrency int
	// Breaker stops the scan once lookups keep failing.  May be nil.
	Breaker *retry.CircuitBreaker
	Logger  *util.Logger
	Metrics *metrics.Collector
	Verbose int

	route route
}

func (m *ScanMode) String() string {
	return fmt.Sprintf("scan %s ports=%d %s timeout=%v", m.Host, len(m.Ports), m.route, m.Timeout)
}

// Run scans all configured ports and logs the results.  It fails only
// when the host could not be resolved at all.
func (m *ScanMode) Run(ctx context.Context) error {
	defer m.route.close() //nolint:errcheck

	if len(m.Ports) == 0 {
		return fmt.Errorf("no ports specified for scanning")
	}

	timeout := m.Timeout
	if timeout == 0 {
		timeout = config.DefaultScanTimeout
	}

	m.Logger.Verbose("scanning %s - %d port(s)", m.Host, len(m.Ports))

	limit := m.Concurrency
	if limit <= 0 {
		limit = config.DefaultMaxConcurrentScans
	}
	results, scanErr := ScanPorts(ctx, m.Connector, m.Host, m.Ports, timeout, limit, m.Breaker)

	open := 0
	var resolveErr error
	for _, r := range results {
		switch {
		case r.Open:
			open++
			m.Logger.Info("%s %d/tcp open", m.Host, r.Port)
		case ncerr.Stage(r.Err) == "resolve":
			if resolveErr == nil {
				resolveErr = r.Err
			}
		case m.Verbose >= 2 && r.Err != nil:
			m.Logger.Verbose("%s %d/tcp closed - %v", m.Host, r.Port, r.Err)
		}
	}

	if m.Breaker != nil && m.Breaker.CurrentState() == retry.StateOpen {
		m.Logger.Warn("stopped probing %s after %d failed lookups", m.Host, m.Breaker.Failures())
	}
	if open == 0 && resolveErr != nil {
		m.Metrics.RecordError(resolveErr.Error())
		return fmt.Errorf("scan %s: %w", m.Host, resolveErr)
	}
	if scanErr != nil {
		return fmt.Errorf("scan %s: %w", m.Host, scanErr)
	}
	if open == 0 && m.Verbose >= 1 {
		m.Logger.Info("no open ports found on %s", m.Host)
	}
	return nil
}

// ScanPorts probes every port through svc, at most limit at a time,
// and returns results in the same order as the input slice.  A non-nil
// breaker guards svc; once it opens, the remaining probes are abandoned
// and the open-circuit error is returned alongside the partial results.
func ScanPorts(ctx context.Context, svc connector.ConnectService[resolve.Target], host string,
	ports []int, timeout time.Duration, limit int, breaker *retry.CircuitBreaker) ([]ScanResult, error) {
	if breaker != nil {
		svc = retry.Guard(svc, breaker)
	}
	results := make([]ScanResult, len(ports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, port := range ports {
		i, port := i, port
		results[i].Port = port
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			conn, err := connector.Dial[resolve.Target](pctx, svc, resolve.NewTarget(host, port))
			if err == nil {
				conn.Close()
			}
			results[i].Open = err == nil
			results[i].Err = err
			if errors.Is(err, ncerr.ErrCircuitOpen) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}
