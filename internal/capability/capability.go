// Package capability defines what happens over an established
// connection: relaying stdin/stdout or running a child process.
package capability

import (
	"context"

	"nconnect/internal/session"
)

// Capability handles a single connection according to a specific
// behaviour.
type Capability interface {
	// Handle runs the capability against the given session.
	// It blocks until the connection is done or the context is
	// cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}
