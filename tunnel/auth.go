package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	ncerr "nconnect/internal/errors"
)

// ReadSecret prompts on stderr and reads a line from the terminal
// without echo.  Tests replace it.
var ReadSecret = func(prompt string) ([]byte, error) { //nolint:gochecknoglobals
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return secret, err
}

// BuildAuthMethods assembles an ordered list of SSH authentication
// methods from the tunnel configuration: key file, agent, password,
// and finally the agent plus default key files when nothing was asked
// for explicitly.
func BuildAuthMethods(cfg *SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.KeyPath != "" {
		m, err := publicKeyAuth(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", cfg.KeyPath, err)
		}
		methods = append(methods, m)
	}

	if cfg.UseAgent {
		m, err := agentAuth()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}

	if cfg.PromptPass {
		pass, err := ReadSecret(fmt.Sprintf("%s@%s password: ", cfg.User, cfg.Host))
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		methods = append(methods, ssh.Password(string(pass)))
	}

	if len(methods) == 0 {
		methods = defaultAuthMethods()
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: no SSH authentication methods available "+
			"(use --ssh-key, --ssh-password, or --ssh-agent)", ncerr.ErrAuthFailed)
	}
	return methods, nil
}

// ── individual auth builders ─────────────────────────────────────────

func publicKeyAuth(keyPath string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	switch {
	case errors.As(err, &missing):
		pass, perr := ReadSecret(fmt.Sprintf("Enter passphrase for %s: ", keyPath))
		if perr != nil {
			return nil, fmt.Errorf("reading passphrase: %w", perr)
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, pass)
		if err != nil {
			return nil, fmt.Errorf("decrypting key: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("parsing key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent at %s: %w", sock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// defaultAuthMethods tries the agent and the common unencrypted key
// files.  Encrypted keys are skipped rather than prompted for.
func defaultAuthMethods() []ssh.AuthMethod {
	var out []ssh.AuthMethod

	if m, err := agentAuth(); err == nil {
		out = append(out, m)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return out
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		if signer, err := ssh.ParsePrivateKey(data); err == nil {
			out = append(out, ssh.PublicKeys(signer))
		}
	}
	return out
}

// ── host-key verification ────────────────────────────────────────────

func hostKeyCallback(cfg *SSHConfig) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		//nolint:gosec // user opted out of host key checking
		return ssh.InsecureIgnoreHostKey(), nil
	}

	khFile := cfg.KnownHosts
	if khFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		khFile = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(khFile)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts from %s: %w", khFile, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := cb(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return fmt.Errorf("%w: %s", ncerr.ErrHostKeyMismatch, hostname)
		}
		return err
	}, nil
}
