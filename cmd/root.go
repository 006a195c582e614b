// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"nconnect/config"
	"nconnect/internal/core"
	"nconnect/internal/metrics"
	"nconnect/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X nconnect/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate nconnect mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := &config.Config{
		CacheSize: config.DefaultCacheSize,
		CacheTTL:  config.DefaultCacheTTL,
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return err
	}

	fs := flag.NewFlagSet("nconnect", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── connection ───────────────────────────────────────────────
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Local source port")
	fs.BoolVarP(&cfg.ZeroIO, "zero-io", "z", false, "Zero-I/O mode (port scanning)")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Extra connect attempts after a failure")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Timeout in seconds")

	// ── resolution ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.BoolVarP(&cfg.IPv4Only, "ipv4", "4", false, "Resolve IPv4 addresses only")
	fs.BoolVarP(&cfg.IPv6Only, "ipv6", "6", false, "Resolve IPv6 addresses only")
	fs.StringVar(&cfg.DNSServer, "dns-server", cfg.DNSServer, "Query this DNS server directly (host[:port])")

	var hostMaps []string
	fs.StringArrayVar(&hostMaps, "map", nil, "Resolve host to ip without DNS (host=ip, repeatable)")
	fs.IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "Resolved hosts to cache (0 disables)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "How long a resolved host stays cached")

	// ── SOCKS5 proxy ─────────────────────────────────────────────
	fs.StringVar(&cfg.SOCKSProxy, "socks5", cfg.SOCKSProxy, "Connect through a SOCKS5 proxy (host:port)")
	var socksUser string
	fs.StringVar(&socksUser, "socks5-user", "", "SOCKS5 credentials as user[:password]")

	// ── execution ────────────────────────────────────────────────
	fs.StringVarP(&cfg.Execute, "exec", "e", "", "Execute program after connect")
	fs.StringVarP(&cfg.Command, "command", "c", "", "Execute shell command after connect")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.StringVar(&cfg.Metrics, "metrics", cfg.Metrics, "Print metrics to stderr on exit: json or prom")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate and print the plan without connecting")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(stderr, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "nconnect %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	if err := cfg.AddHostMap(hostMaps...); err != nil {
		return fmt.Errorf("map: %w", err)
	}
	if socksUser != "" {
		cfg.SOCKSUser, cfg.SOCKSPassword, _ = strings.Cut(socksUser, ":")
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)

	var collector *metrics.Collector
	if cfg.Metrics != "" {
		collector = metrics.New()
	}

	mode, err := core.Build(cfg, logger, collector)
	if err != nil {
		return err
	}
	if cfg.DryRun {
		fmt.Fprintln(stdout, mode.String())
		return nil
	}

	runErr := mode.Run(ctx)
	if err := writeMetrics(stderr, cfg.Metrics, collector); err != nil {
		logger.Warn("metrics: %v", err)
	}
	return runErr
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads "host port [port ...]".  A host taken from
// NCONNECT_HOST lets the ports stand alone.
func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) < 1 {
		return fmt.Errorf("hostname required (use --help for usage)")
	}
	ports := remaining
	if cfg.Host == "" || len(remaining) > 1 {
		cfg.Host = remaining[0]
		ports = remaining[1:]
	}
	if len(ports) == 0 {
		return fmt.Errorf("port required")
	}

	for _, arg := range ports {
		pr, err := config.ParsePortSpec(arg)
		if err != nil {
			return fmt.Errorf("port %q: %w", arg, err)
		}
		cfg.Ports = append(cfg.Ports, pr)
	}
	cfg.Port = cfg.Ports[0].Start
	return nil
}

func writeMetrics(w io.Writer, format string, c *metrics.Collector) error {
	switch format {
	case "json":
		_, err := fmt.Fprintln(w, c.JSON())
		return err
	case "prom":
		return c.WriteText(w)
	}
	return nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `nconnect v%s

Resolve a name, then connect to it: directly, through a SOCKS5 proxy,
or through an SSH gateway.

Usage:
  nconnect [options] <host> <port>             Connect
  nconnect -z [options] <host> <ports...>      Scan
  nconnect -T user@gateway <host> <port>       Tunnel

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  nconnect example.com 80                      TCP connect
  nconnect -vz host.example.com 20-25 80 443   Port scan
  nconnect -T admin@bastion db-internal 5432   SSH tunnel
  nconnect --socks5 127.0.0.1:1080 svc 443     Through a SOCKS5 proxy
  nconnect --map svc-a=10.0.0.5 -n svc-a 443   Fixed address, no DNS
  nconnect --retries 3 --metrics json host 22  Retry and report
  echo "hello" | nconnect host.example.com 9000
`)
}
