package core

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"nconnect/config"
	"nconnect/connector"
	"nconnect/internal/capability"
	ncerr "nconnect/internal/errors"
	"nconnect/internal/metrics"
	"nconnect/internal/resolve"
	"nconnect/internal/retry"
	"nconnect/internal/transport"
	"nconnect/tunnel"
	"nconnect/util"
)

// Build constructs the appropriate Mode from the given configuration.
// Lookups and attempts are counted in collector, which may be nil.
func Build(cfg *config.Config, logger *util.Logger, collector *metrics.Collector) (Mode, error) {
	if cfg.NoDNS {
		_, mapped := cfg.Mapped(cfg.Host)
		if _, err := netip.ParseAddr(cfg.Host); err != nil && !mapped {
			return nil, fmt.Errorf("%q: %w", cfg.Host, resolve.ErrNumericOnly)
		}
	}

	resolver, rname := buildResolver(cfg, logger.Named("resolve"))
	establisher, ename := buildEstablisher(cfg, logger.Named("transport"))

	establisher = metrics.InstrumentEstablisher(establisher, collector)
	conn := connector.New[resolve.Target](
		establisher,
		metrics.InstrumentResolver(resolver, collector),
	)
	r := route{resolver: rname, establisher: ename, establisherRef: establisher}

	if cfg.ZeroIO {
		return buildScan(cfg, conn, r, logger, collector), nil
	}
	return buildConnect(cfg, conn, r, logger, collector), nil
}

// route names the collaborators a mode was built from and keeps the
// establisher so the mode can release it.
type route struct {
	resolver       string
	establisher    string
	establisherRef connector.Establisher
}

func (r route) String() string {
	return fmt.Sprintf("resolver=%s establisher=%s", r.resolver, r.establisher)
}

func (r route) close() error {
	if r.establisherRef == nil {
		return nil
	}
	return transport.Close(r.establisherRef)
}

// ── mode builders ────────────────────────────────────────────────────

func buildConnect(cfg *config.Config, conn *connector.Connector[resolve.Target], r route,
	logger *util.Logger, collector *metrics.Collector) *ConnectMode {
	return &ConnectMode{
		Connector:  conn,
		Target:     resolve.NewTarget(cfg.Host, cfg.Port),
		Backoff:    retry.ForRetries(cfg.Retries),
		Timeout:    cfg.Timeout,
		Capability: buildCapability(cfg),
		Logger:     logger,
		Metrics:    collector,
		route:      r,
	}
}

func buildScan(cfg *config.Config, conn *connector.Connector[resolve.Target], r route,
	logger *util.Logger, collector *metrics.Collector) *ScanMode {
	ports := cfg.AllPorts()
	if len(ports) == 0 && cfg.Port > 0 {
		ports = []int{cfg.Port}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultScanTimeout
	}

	breaker := retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		MaxFailures:  config.DefaultScanResolveFailures,
		ResetTimeout: time.Minute,
		HalfOpenMax:  1,
		IsFailure:    func(err error) bool { return ncerr.Stage(err) == "resolve" },
		OnStateChange: func(from, to retry.State) {
			logger.Debug("scan breaker: %s -> %s", from, to)
		},
	})

	return &ScanMode{
		Connector: conn,
		Host:      cfg.Host,
		Ports:     ports,
		Timeout:   timeout,
		Breaker:   breaker,
		Logger:    logger,
		Metrics:   collector,
		Verbose:   cfg.Verbose,
		route:     r,
	}
}

// ── collaborators ────────────────────────────────────────────────────

// buildResolver picks how targets are resolved: numeric only, one
// explicit DNS server, or the system resolver.  Host mappings and the
// cache are layered on top.
func buildResolver(cfg *config.Config, logger *util.Logger) (connector.Resolver[resolve.Target], string) {
	var (
		r    connector.Resolver[resolve.Target]
		name string
	)
	switch {
	case cfg.NoDNS:
		r, name = resolve.Numeric{}, "numeric"
	case cfg.DNSServer != "":
		r = &resolve.DNS{
			Server:  cfg.DNSServerAddr(),
			Network: cfg.Network(),
			Timeout: config.DefaultDNSTimeout,
			Logger:  logger,
		}
		name = "dns(" + cfg.DNSServerAddr() + ")"
	default:
		r, name = &resolve.System{Network: cfg.Network(), Logger: logger}, "system"
	}

	if len(cfg.HostMap) > 0 {
		r = resolve.NewStatic(cfg.HostMap, r)
		name = "static+" + name
	}
	if cfg.CacheSize > 0 && !cfg.NoDNS {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = config.DefaultCacheTTL
		}
		r = resolve.NewCached(r, cfg.CacheSize, ttl)
		name = "cached+" + name
	}
	return r, name
}

// buildEstablisher picks how resolved addresses are reached: through
// an SSH gateway, a SOCKS5 proxy, or directly.
func buildEstablisher(cfg *config.Config, logger *util.Logger) (connector.Establisher, string) {
	switch {
	case cfg.TunnelEnabled:
		return transport.NewSSH(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
		}, logger), "ssh(" + tunnelLabel(cfg) + ")"

	case cfg.SOCKSProxy != "":
		s := &transport.SOCKS5{Proxy: cfg.SOCKSProxy, Timeout: cfg.Timeout, Logger: logger}
		if cfg.SOCKSUser != "" {
			s.Auth = &proxy.Auth{User: cfg.SOCKSUser, Password: cfg.SOCKSPassword}
		}
		return s, "socks5(" + cfg.SOCKSProxy + ")"
	}

	name := "tcp"
	if cfg.LocalPort > 0 {
		name = fmt.Sprintf("tcp(source port %d)", cfg.LocalPort)
	}
	return &transport.TCP{Timeout: cfg.Timeout, LocalPort: cfg.LocalPort, Logger: logger}, name
}

func tunnelLabel(cfg *config.Config) string {
	var b strings.Builder
	if cfg.TunnelUser != "" {
		b.WriteString(cfg.TunnelUser + "@")
	}
	b.WriteString(util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	return b.String()
}

// buildCapability selects the per-connection behaviour.
func buildCapability(cfg *config.Config) capability.Capability {
	if cfg.Execute != "" || cfg.Command != "" {
		return &capability.Exec{
			Program: cfg.Execute,
			Command: cfg.Command,
		}
	}
	return &capability.Relay{}
}
