// Package future is a small cooperative-polling primitive.
//
// A Future is advanced by repeated calls to Poll from whichever task
// owns it.  A Poll that cannot finish returns ready == false after
// arranging for the supplied Waker to be called once progress is
// possible; the owner then polls again.  Futures own no scheduler of
// their own: [Await] is the reference driver.
//
// Go has no destructors, so "dropping" an unfinished future is spelled
// Cancel.  Cancel releases whatever work is in flight and is a no-op
// once the result has been delivered.
package future

import (
	"errors"
	"io"
	"reflect"
)

// ErrCancelled is returned by Poll on a future that was cancelled
// before it completed.
var ErrCancelled = errors.New("future cancelled")

// Waker is notified when a pending future can make progress.
type Waker interface {
	Wake()
}

// WakerFunc adapts a plain function to the Waker interface.
type WakerFunc func()

// Wake calls f.
func (f WakerFunc) Wake() { f() }

// Noop is a Waker that does nothing.  Useful for a single probing
// Poll when the caller does not intend to wait.
var Noop Waker = WakerFunc(func() {})

// Future is an in-flight computation producing a T.
type Future[T any] interface {
	// Poll advances the computation.  When ready is false, v and err
	// are zero and w will be woken later.  When ready is true the
	// outcome is final.
	Poll(w Waker) (v T, ready bool, err error)

	// Cancel abandons the computation and releases its resources.
	// A produced value that was never delivered and implements
	// io.Closer is closed.
	Cancel()
}

// ── immediate futures ────────────────────────────────────────────────

type immediate[T any] struct {
	v         T
	err       error
	delivered bool
	cancelled bool
}

// Ready returns a future that completes with v on its first Poll.
func Ready[T any](v T) Future[T] { return &immediate[T]{v: v} }

// Failed returns a future that fails with err on its first Poll.
func Failed[T any](err error) Future[T] { return &immediate[T]{err: err} }

func (f *immediate[T]) Poll(Waker) (T, bool, error) {
	if f.cancelled {
		var zero T
		return zero, true, ErrCancelled
	}
	f.delivered = true
	return f.v, true, f.err
}

func (f *immediate[T]) Cancel() {
	if f.delivered || f.cancelled {
		return
	}
	f.cancelled = true
	if f.err == nil {
		release(f.v)
	}
}

// release closes v if it holds a resource.  Nil pointers and other
// nil references boxed in v are skipped.
func release(v any) {
	c, ok := v.(io.Closer)
	if !ok || c == nil {
		return
	}
	switch rv := reflect.ValueOf(c); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if rv.IsNil() {
			return
		}
	}
	c.Close() //nolint:errcheck
}
