package capability

import (
	"context"

	"nconnect/internal/session"
	"nconnect/util"
)

// Relay copies data bidirectionally between the connection and the
// session's stdin/stdout.  It is the default capability.
type Relay struct{}

// Handle shuttles bytes between the network connection and the local
// I/O endpoints until one side closes or the context is cancelled.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	sess.Logger.Debug("relay: %s <-> stdio", sess.Target)
	return util.BidirectionalCopy(ctx, sess.Conn, sess.Stdin, sess.Stdout)
}
