package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the NCONNECT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.  Malformed values
// are reported rather than ignored.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("NCONNECT_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("NCONNECT_LOCAL_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if v := envInt("NCONNECT_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v := envInt("NCONNECT_RETRIES"); v > 0 {
		cfg.Retries = v
	}

	// Resolution
	if envBool("NCONNECT_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := os.Getenv("NCONNECT_DNS_SERVER"); v != "" {
		cfg.DNSServer = v
	}
	if v := os.Getenv("NCONNECT_MAP"); v != "" {
		if err := cfg.AddHostMap(strings.Split(v, ",")...); err != nil {
			return fmt.Errorf("NCONNECT_MAP: %w", err)
		}
	}
	if v := os.Getenv("NCONNECT_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NCONNECT_CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = n
	}
	if v := os.Getenv("NCONNECT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NCONNECT_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = d
	}

	// SOCKS5
	if v := os.Getenv("NCONNECT_SOCKS5"); v != "" {
		cfg.SOCKSProxy = v
	}
	if v := os.Getenv("NCONNECT_SOCKS5_USER"); v != "" {
		cfg.SOCKSUser, cfg.SOCKSPassword, _ = strings.Cut(v, ":")
	}

	// SSH tunnel
	if v := os.Getenv("NCONNECT_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("NCONNECT_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("NCONNECT_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("NCONNECT_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("NCONNECT_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("NCONNECT_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("NCONNECT_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("NCONNECT_METRICS"); v != "" {
		cfg.Metrics = v
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
