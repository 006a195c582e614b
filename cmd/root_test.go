package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	out, _, err := run(t, "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "nconnect ") {
		t.Errorf("version output = %q", out)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			_, errOut, err := run(t, args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(errOut, "Usage:") {
				t.Error("usage not printed")
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and prints the plan.
func TestExecute_DryRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"connect", []string{"--dry-run", "example.com", "80"},
			[]string{"connect example.com:80", "tcp", "attempts=1"}},
		{"scan", []string{"--dry-run", "-z", "-w", "2", "example.com", "20-25", "80"},
			[]string{"scan example.com ports=7", "timeout=2s"}},
		{"retries", []string{"--dry-run", "--retries", "2", "example.com", "80"},
			[]string{"attempts=3"}},
		{"socks5", []string{"--dry-run", "--socks5", "127.0.0.1:1080", "--socks5-user", "u:p", "svc", "443"},
			[]string{"socks5"}},
		{"tunnel", []string{"--dry-run", "-T", "admin@bastion", "db", "5432"},
			[]string{"ssh(admin@bastion:22)"}},
		{"mapped", []string{"--dry-run", "-n", "--map", "svc-a=10.0.0.5", "svc-a", "443"},
			[]string{"static+"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("plan %q missing %q", out, w)
				}
			}
		})
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"--dry-run", "example.com"},
		{"--dry-run", "-4", "-6", "example.com", "80"},
		{"--dry-run", "--metrics", "xml", "example.com", "80"},
		{"--dry-run", "--map", "broken", "example.com", "80"},
		{"--dry-run", "-n", "example.com", "80"},
	} {
		if _, _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected validation error", args)
		}
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	if _, _, err := run(t, "--nonexistent-flag"); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

// TestExecute_ConflictingFlags verifies -e and -c conflict is caught.
func TestExecute_ConflictingFlags(t *testing.T) {
	_, _, err := run(t, "-e", "cat", "-c", "ls", "localhost", "80", "--dry-run")
	if err == nil {
		t.Fatal("expected error for -e and -c conflict")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("error should mention mutually exclusive: %v", err)
	}
}

// TestExecute_EnvOverlay verifies flags override the environment.
func TestExecute_EnvOverlay(t *testing.T) {
	t.Setenv("NCONNECT_RETRIES", "4")
	t.Setenv("NCONNECT_HOST", "example.com")

	out, _, err := run(t, "--dry-run", "80")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "example.com:80") || !strings.Contains(out, "attempts=5") {
		t.Errorf("plan = %q", out)
	}

	out, _, err = run(t, "--dry-run", "--retries", "1", "other.example", "81")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "other.example:81") || !strings.Contains(out, "attempts=2") {
		t.Errorf("plan = %q", out)
	}
}

// TestExecute_ScanMetrics runs a real scan and checks the JSON report.
func TestExecute_ScanMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	_, errOut, err := run(t, "-z", "-n", "--metrics", "json", "127.0.0.1", strconv.Itoa(port))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	i := strings.Index(errOut, "{\n")
	if i < 0 {
		t.Fatalf("no metrics in %q", errOut)
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(errOut[i:]), &snap); err != nil {
		t.Fatalf("metrics %q: %v", errOut[i:], err)
	}
	if snap["connect_attempts"] != float64(1) {
		t.Errorf("connect_attempts = %v", snap["connect_attempts"])
	}
}
