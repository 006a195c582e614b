package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"nconnect/config"
	ncerr "nconnect/internal/errors"
	"nconnect/util"
)

// SSHConfig holds everything needed to reach an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// Addr returns the gateway's host:port.
func (c *SSHConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHTunnel forwards connections over direct-tcpip channels of one
// shared SSH client.  The client is dialled on the first Dial and
// replaced after it drops.  Safe for concurrent use.
type SSHTunnel struct {
	cfg    SSHConfig
	logger *util.Logger

	// connectMu serialises handshakes so concurrent first dials share
	// one client.  It also guards auth, built once so a reconnect does
	// not prompt for the password again.
	connectMu sync.Mutex
	auth      []ssh.AuthMethod

	mu     sync.RWMutex
	client *ssh.Client
}

var _ Tunnel = (*SSHTunnel)(nil)

// NewSSHTunnel returns an unconnected tunnel to the gateway in cfg.
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	t := &SSHTunnel{cfg: *cfg, logger: logger}
	if t.cfg.Port == 0 {
		t.cfg.Port = config.DefaultSSHPort
	}
	if t.cfg.ConnTimeout == 0 {
		t.cfg.ConnTimeout = config.DefaultConnTimeout
	}
	return t
}

// Dial forwards a connection to address, connecting to the gateway
// first if needed.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := t.connected(ctx)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("forwarding %s %s", network, address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.WrapSSH("forward", t.cfg.Host, t.cfg.Port,
			fmt.Errorf("%s: %w", address, err))
	}
	return conn, nil
}

// Close shuts down the current SSH client, if any.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// IsAlive reports whether an SSH client is connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client != nil
}

// connected returns the live client, dialling a new one when there is
// none.
func (t *SSHTunnel) connected(ctx context.Context) (*ssh.Client, error) {
	if c := t.current(); c != nil {
		return c, nil
	}

	t.connectMu.Lock()
	defer t.connectMu.Unlock()
	if c := t.current(); c != nil {
		return c, nil
	}

	client, err := t.handshake(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	go t.watch(client)
	return client, nil
}

func (t *SSHTunnel) current() *ssh.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.client
}

func (t *SSHTunnel) handshake(ctx context.Context) (*ssh.Client, error) {
	if t.auth == nil {
		auth, err := BuildAuthMethods(&t.cfg)
		if err != nil {
			return nil, ncerr.WrapSSH("auth", t.cfg.Host, t.cfg.Port, err)
		}
		t.auth = auth
	}
	hostKey, err := hostKeyCallback(&t.cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("hostkey", t.cfg.Host, t.cfg.Port, err)
	}

	addr := t.cfg.Addr()
	t.logger.Verbose("connecting to gateway %s as %s", addr, t.cfg.User)

	d := net.Dialer{Timeout: t.cfg.ConnTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("dial", addr, err)
	}

	// ClientConfig.Timeout only covers the TCP dial, so the handshake
	// is bounded through the connection itself.
	if deadline, ok := handshakeDeadline(ctx, t.cfg.ConnTimeout); ok {
		nc.SetDeadline(deadline) //nolint:errcheck
	}
	stop := context.AfterFunc(ctx, func() { nc.Close() })

	conn, chans, reqs, err := ssh.NewClientConn(nc, addr, &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            t.auth,
		HostKeyCallback: hostKey,
		Timeout:         t.cfg.ConnTimeout,
	})
	if !stop() && err == nil {
		conn.Close()
		err = ctx.Err()
	}
	if err != nil {
		nc.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, ncerr.WrapSSH("handshake", t.cfg.Host, t.cfg.Port, err)
	}
	nc.SetDeadline(time.Time{}) //nolint:errcheck

	t.logger.Verbose("gateway %s ready", addr)
	return ssh.NewClient(conn, chans, reqs), nil
}

// handshakeDeadline is the earlier of ctx's deadline and now+timeout.
func handshakeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if timeout > 0 {
		if d := time.Now().Add(timeout); !ok || d.Before(deadline) {
			deadline, ok = d, true
		}
	}
	return deadline, ok
}

// watch clears client once its connection ends so the next Dial
// reconnects.
func (t *SSHTunnel) watch(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	dropped := t.client == client
	if dropped {
		t.client = nil
	}
	t.mu.Unlock()

	if dropped {
		t.logger.Warn("gateway %s dropped: %v", t.cfg.Addr(), err)
	}
}
