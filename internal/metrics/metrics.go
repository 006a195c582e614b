// Package metrics provides lightweight, lock-free counters for the
// resolve and connect stages of an nconnect run.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
//
// A Collector is also a prometheus.Collector: it can be registered
// with any Prometheus registry, or rendered directly with WriteText.
package metrics

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "nconnect"

var (
	lookupsDesc         = newDesc("lookups_total", "Name lookups started.")
	lookupFailuresDesc  = newDesc("lookup_failures_total", "Name lookups that failed.")
	attemptsDesc        = newDesc("connect_attempts_total", "Connection attempts started.")
	connectFailuresDesc = newDesc("connect_failures_total", "Connection attempts that failed.")
	activeDesc          = newDesc("connections_active", "Connections currently open.")
	connectionsDesc     = newDesc("connections_total", "Connections established.")
	bytesInDesc         = newDesc("bytes_received_total", "Bytes read from the network.")
	bytesOutDesc        = newDesc("bytes_sent_total", "Bytes written to the network.")
	errorsDesc          = newDesc("errors_total", "Errors reported by modes.")
	uptimeDesc          = newDesc("uptime_seconds", "Seconds since the collector was created.")
)

func newDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
}

// Collector tracks runtime metrics for an nconnect run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	lookups           atomic.Int64
	lookupFailures    atomic.Int64
	connectAttempts   atomic.Int64
	connectFailures   atomic.Int64
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	errorsTotal       atomic.Int64

	connectSeconds prometheus.Histogram

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

var _ prometheus.Collector = (*Collector)(nil)

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{
		startTime: time.Now(),
		connectSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Time from starting a connection attempt to its outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

// ── Resolve metrics ──────────────────────────────────────────────────

// LookupStarted counts a name lookup.
func (c *Collector) LookupStarted() {
	if c == nil {
		return
	}
	c.lookups.Add(1)
}

// LookupFailed counts a lookup that ended in an error.
func (c *Collector) LookupFailed() {
	if c == nil {
		return
	}
	c.lookupFailures.Add(1)
}

// Lookups returns the number of lookups started.
func (c *Collector) Lookups() int64 {
	if c == nil {
		return 0
	}
	return c.lookups.Load()
}

// LookupFailures returns the number of failed lookups.
func (c *Collector) LookupFailures() int64 {
	if c == nil {
		return 0
	}
	return c.lookupFailures.Load()
}

// ── Connect metrics ──────────────────────────────────────────────────

// ConnectStarted counts a connection attempt.
func (c *Collector) ConnectStarted() {
	if c == nil {
		return
	}
	c.connectAttempts.Add(1)
}

// ConnectFailed counts an attempt that ended in an error.
func (c *Collector) ConnectFailed() {
	if c == nil {
		return
	}
	c.connectFailures.Add(1)
}

// ObserveConnect records how long an attempt took to reach its outcome.
func (c *Collector) ObserveConnect(d time.Duration) {
	if c == nil {
		return
	}
	c.connectSeconds.Observe(d.Seconds())
}

// ConnectAttempts returns the number of attempts started.
func (c *Collector) ConnectAttempts() int64 {
	if c == nil {
		return 0
	}
	return c.connectAttempts.Load()
}

// ConnectFailures returns the number of failed attempts.
func (c *Collector) ConnectFailures() int64 {
	if c == nil {
		return 0
	}
	return c.connectFailures.Load()
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	Lookups           int64  `json:"lookups"`
	LookupFailures    int64  `json:"lookup_failures"`
	ConnectAttempts   int64  `json:"connect_attempts"`
	ConnectFailures   int64  `json:"connect_failures"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		Lookups:           c.lookups.Load(),
		LookupFailures:    c.lookupFailures.Load(),
		ConnectAttempts:   c.connectAttempts.Load(),
		ConnectFailures:   c.connectFailures.Load(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

// ── Prometheus ───────────────────────────────────────────────────────

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		lookupsDesc, lookupFailuresDesc, attemptsDesc, connectFailuresDesc,
		activeDesc, connectionsDesc, bytesInDesc, bytesOutDesc, errorsDesc, uptimeDesc,
	} {
		ch <- d
	}
	c.connectSeconds.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(lookupsDesc, c.lookups.Load())
	counter(lookupFailuresDesc, c.lookupFailures.Load())
	counter(attemptsDesc, c.connectAttempts.Load())
	counter(connectFailuresDesc, c.connectFailures.Load())
	counter(connectionsDesc, c.connectionsTotal.Load())
	counter(bytesInDesc, c.bytesIn.Load())
	counter(bytesOutDesc, c.bytesOut.Load())
	counter(errorsDesc, c.errorsTotal.Load())

	ch <- prometheus.MustNewConstMetric(activeDesc, prometheus.GaugeValue,
		float64(c.connectionsActive.Load()))
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds())

	c.connectSeconds.Collect(ch)
}

// WriteText renders the collector in the Prometheus text exposition
// format.
func (c *Collector) WriteText(w io.Writer) error {
	if c == nil {
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
