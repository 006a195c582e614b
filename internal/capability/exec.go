package capability

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"nconnect/internal/session"
)

// Exec hands the connection to a child process: its stdin, stdout and
// stderr are the connection.  Either Program (-e) or Command (-c) must
// be set.
//
// The child sees the connection in its environment:
//
//	NCONNECT_TARGET       the logical target, host:port as given
//	NCONNECT_REMOTE_ADDR  the address actually connected to
type Exec struct {
	Program string // -e: execute a program directly
	Command string // -c: execute via the system shell
}

// Handle runs the child to completion.
func (e *Exec) Handle(ctx context.Context, sess *session.Session) error {
	var cmd *exec.Cmd
	switch {
	case e.Command != "" && runtime.GOOS == "windows":
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", e.Command)
	case e.Command != "":
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", e.Command)
	case e.Program != "":
		cmd = exec.CommandContext(ctx, e.Program)
	default:
		return fmt.Errorf("no command specified for exec mode")
	}

	cmd.Stdin, cmd.Stdout, cmd.Stderr = sess.Conn, sess.Conn, sess.Conn
	cmd.Env = append(os.Environ(),
		"NCONNECT_TARGET="+sess.Target,
		"NCONNECT_REMOTE_ADDR="+sess.Conn.RemoteAddr().String(),
	)

	sess.Logger.Verbose("exec: %s for %s", cmd.String(), sess.Target)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("exec %q: %w", cmd.Path, err)
	}
	return nil
}
