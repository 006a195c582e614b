package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultDNSPort is added to --dns-server when it has no port.
	DefaultDNSPort = 53

	// DefaultScanTimeout is the per-port timeout for port scanning.
	DefaultScanTimeout = 3 * time.Second

	// DefaultMaxConcurrentScans limits the number of simultaneous scan
	// goroutines to prevent resource exhaustion.
	DefaultMaxConcurrentScans = 100

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultDNSTimeout bounds a single query to --dns-server.
	DefaultDNSTimeout = 5 * time.Second

	// DefaultCacheSize is the number of resolved hosts kept in memory.
	DefaultCacheSize = 256

	// DefaultCacheTTL is how long a resolved host stays cached.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultRetryDelay is the wait before the first connect retry.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the wait between connect retries.
	DefaultMaxRetryDelay = 10 * time.Second

	// DefaultScanResolveFailures is how many failed lookups stop a scan.
	DefaultScanResolveFailures = 3
)
