// Package config defines the runtime configuration for nconnect and
// provides helpers for parsing ports, tunnel specs and host mappings.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "nconnect/internal/errors"
)

// Config holds every tuneable for a single nconnect run.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host      string
	Port      int         // primary destination port
	Ports     []PortRange // all destination port specs (scanning)
	LocalPort int         // -p: local bind port
	Timeout   time.Duration
	Retries   int // extra attempts after the first connect fails

	// ── Resolution ───────────────────────────────────────────────────
	NoDNS     bool
	IPv4Only  bool
	IPv6Only  bool
	DNSServer string // query this server directly instead of the system resolver
	HostMap   map[string]netip.Addr
	CacheSize int
	CacheTTL  time.Duration

	// ── SOCKS5 proxy ─────────────────────────────────────────────────
	SOCKSProxy    string
	SOCKSUser     string
	SOCKSPassword string

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Execution ────────────────────────────────────────────────────
	Execute string // -e: program path
	Command string // -c: shell command

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	ZeroIO  bool
	Metrics string // "", "json" or "prom"
	DryRun  bool
}

// Network returns the address family lookups should use: "ip4",
// "ip6" or "ip".
func (c *Config) Network() string {
	switch {
	case c.IPv4Only:
		return "ip4"
	case c.IPv6Only:
		return "ip6"
	}
	return "ip"
}

// DNSServerAddr returns DNSServer with the DNS port added when it has
// none.
func (c *Config) DNSServerAddr() string {
	if c.DNSServer == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(c.DNSServer); err == nil {
		return c.DNSServer
	}
	return net.JoinHostPort(strings.Trim(c.DNSServer, "[]"), strconv.Itoa(DefaultDNSPort))
}

// ── Port helpers ─────────────────────────────────────────────────────

// PortRange is an inclusive start-end pair.
type PortRange struct {
	Start int
	End   int
}

// Expand returns every port in the range.
func (pr PortRange) Expand() []int {
	out := make([]int, 0, pr.End-pr.Start+1)
	for p := pr.Start; p <= pr.End; p++ {
		out = append(out, p)
	}
	return out
}

// AllPorts flattens every PortRange into a single slice.
func (c *Config) AllPorts() []int {
	var out []int
	for _, pr := range c.Ports {
		out = append(out, pr.Expand()...)
	}
	return out
}

// ParsePortSpec accepts "80" or "80-90".
func ParsePortSpec(spec string) (PortRange, error) {
	if strings.Contains(spec, "-") {
		parts := strings.SplitN(spec, "-", 2)
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range start %q", parts[0])
		}
		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range end %q", parts[1])
		}
		if start < 1 || end > 65535 || start > end {
			return PortRange{}, fmt.Errorf("invalid port range %d-%d", start, end)
		}
		return PortRange{Start: start, End: end}, nil
	}

	port, err := strconv.Atoi(spec)
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return PortRange{}, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return PortRange{Start: port, End: port}, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Host map ─────────────────────────────────────────────────────────

// ParseHostMap parses a "host=ip" mapping as given to --map.
func ParseHostMap(spec string) (string, netip.Addr, error) {
	host, ip, ok := strings.Cut(spec, "=")
	host = strings.TrimSpace(host)
	if !ok || host == "" {
		return "", netip.Addr{}, fmt.Errorf("invalid mapping %q: expected host=ip", spec)
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", netip.Addr{}, fmt.Errorf("invalid mapping %q: %w", spec, err)
	}
	return host, addr, nil
}

// AddHostMap parses each spec and adds it to c.HostMap.
func (c *Config) AddHostMap(specs ...string) error {
	for _, spec := range specs {
		host, addr, err := ParseHostMap(spec)
		if err != nil {
			return err
		}
		if c.HostMap == nil {
			c.HostMap = make(map[string]netip.Addr)
		}
		c.HostMap[HostKey(host)] = addr
	}
	return nil
}

// Mapped reports the --map address for host, matching names the way
// the static resolver does.
func (c *Config) Mapped(host string) (netip.Addr, bool) {
	key := HostKey(host)
	for h, addr := range c.HostMap {
		if HostKey(h) == key {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// HostKey folds case and drops a trailing root dot.
func HostKey(host string) string {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Every failure is a *ncerr.ConfigError naming the offending flag.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ncerr.ConfigError{Field: "host", Message: "hostname is required", Hint: "use --help for usage"}
	}
	if c.Port == 0 && len(c.Ports) == 0 {
		return &ncerr.ConfigError{Field: "port", Message: "destination port is required"}
	}

	if c.Execute != "" && c.Command != "" {
		return &ncerr.ConfigError{Field: "command", Value: c.Command, Message: "-e and -c are mutually exclusive"}
	}
	if c.ZeroIO && (c.Execute != "" || c.Command != "") {
		return &ncerr.ConfigError{Field: "zero-io", Message: "cannot run a program in scan mode"}
	}
	if c.ZeroIO && c.LocalPort != 0 && len(c.AllPorts()) > 1 {
		return &ncerr.ConfigError{Field: "port", Value: c.LocalPort,
			Message: "a fixed source port cannot be shared by concurrent probes"}
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.LocalPort, Message: "out of range 0-65535"}
	}

	if c.IPv4Only && c.IPv6Only {
		return &ncerr.ConfigError{Field: "ipv6", Message: "-4 and -6 are mutually exclusive"}
	}
	if c.NoDNS && c.DNSServer != "" {
		return &ncerr.ConfigError{Field: "dns-server", Value: c.DNSServer, Message: "has no effect with -n"}
	}
	if c.CacheSize < 0 {
		return &ncerr.ConfigError{Field: "cache-size", Value: c.CacheSize, Message: "must not be negative"}
	}
	if c.Retries < 0 {
		return &ncerr.ConfigError{Field: "retries", Value: c.Retries, Message: "must not be negative"}
	}

	if c.SOCKSProxy != "" && c.TunnelEnabled {
		return &ncerr.ConfigError{Field: "socks5", Value: c.SOCKSProxy, Message: "cannot be combined with -T"}
	}
	if c.SOCKSUser != "" && c.SOCKSProxy == "" {
		return &ncerr.ConfigError{Field: "socks5-user", Message: "requires --socks5"}
	}
	if c.SOCKSProxy != "" {
		if _, _, err := net.SplitHostPort(c.SOCKSProxy); err != nil {
			return &ncerr.ConfigError{Field: "socks5", Value: c.SOCKSProxy, Message: "expected host:port"}
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}

	switch c.Metrics {
	case "", "json", "prom":
	default:
		return &ncerr.ConfigError{Field: "metrics", Value: c.Metrics, Message: "unknown format", Hint: "use json or prom"}
	}
	return nil
}
