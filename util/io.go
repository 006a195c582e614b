package util

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// closeWriter is implemented by connections that support half-close:
// *net.TCPConn, SSH channels and the metrics wrapper around both.
type closeWriter interface {
	CloseWrite() error
}

// BidirectionalCopy shuffles data between a network connection and an
// arbitrary reader/writer pair (typically stdin/stdout) until the
// remote side is done or the context is cancelled.
func BidirectionalCopy(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	// network → writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- pooledCopy(w, conn)
		cancel()
	}()

	// reader → network
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := pooledCopy(conn, r)
		// Half-close so the remote sees EOF while we keep draining
		// its reply.
		if cw, ok := conn.(closeWriter); ok {
			cw.CloseWrite() //nolint:errcheck
		}
		errCh <- err
		// A clean EOF on the reader must not tear down the
		// connection before the remote finishes sending.
		if err != nil {
			cancel()
		}
	}()

	<-ctx.Done()
	conn.Close() // unblock any pending reads/writes
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil && !isHarmless(err) {
			return err
		}
	}
	return nil
}

// pooledCopy is io.CopyBuffer with a buffer from BufPool.
func pooledCopy(dst io.Writer, src io.Reader) error {
	if src == nil {
		return nil
	}
	buf := GetBuf()
	defer PutBuf(buf)
	_, err := io.CopyBuffer(dst, src, *buf)
	return err
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
