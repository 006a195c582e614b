package retry

import (
	"context"
	"fmt"
	"net"
	"time"

	"nconnect/connector"
	ncerr "nconnect/internal/errors"
	"nconnect/util"
)

// Dial connects to target through svc, starting a fresh connect
// operation for every attempt.  Each attempt is bounded by timeout when
// it is positive.  Errors that ncerr.IsRetryable rejects end the loop
// at once; a nil b means a single attempt.  Retries are logged at
// verbose level, replacing any OnRetry hook on b.
func Dial[T any](ctx context.Context, b *Backoff, svc connector.ConnectService[T],
	target T, timeout time.Duration, logger *util.Logger) (net.Conn, error) {
	sched := Backoff{MaxAttempts: 1}
	if b != nil {
		sched = *b
	}
	sched.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Verbose("attempt %d to %v failed: %v (retrying in %v)",
			attempt, target, err, wait.Round(time.Millisecond))
	}

	var conn net.Conn
	err := sched.Do(ctx, func(int) error {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		c, err := connector.Dial(actx, svc, target)
		if err == nil {
			conn = c
			return nil
		}
		if ctx.Err() == nil && actx.Err() != nil {
			err = &ncerr.NetworkError{
				Op: "connect", Addr: fmt.Sprint(target), Err: ncerr.ErrTimeout, Retryable: true,
			}
		}
		if !ncerr.IsRetryable(err) {
			return Permanent(err)
		}
		return err
	})
	return conn, err
}
