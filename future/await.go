package future

import "context"

// Map returns a future whose outcome is fn applied to the outcome of f.
// Polls and cancellation pass straight through to f.
func Map[T, U any](f Future[T], fn func(T, error) (U, error)) Future[U] {
	return &mapped[T, U]{inner: f, fn: fn}
}

type mapped[T, U any] struct {
	inner Future[T]
	fn    func(T, error) (U, error)
	done  bool
	v     U
	err   error
}

func (m *mapped[T, U]) Poll(w Waker) (U, bool, error) {
	if m.done {
		return m.v, true, m.err
	}
	v, ready, err := m.inner.Poll(w)
	if !ready {
		var zero U
		return zero, false, nil
	}
	m.v, m.err = m.fn(v, err)
	m.done = true
	return m.v, true, m.err
}

func (m *mapped[T, U]) Cancel() {
	if !m.done {
		m.inner.Cancel()
	}
}

// Await drives f to completion on the calling goroutine, sleeping
// between polls until f's waker fires.  If ctx ends first, f is
// cancelled and ctx.Err() is returned.
func Await[T any](ctx context.Context, f Future[T]) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		f.Cancel()
		return zero, err
	}

	wake := make(chan struct{}, 1)
	w := WakerFunc(func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	for {
		v, ready, err := f.Poll(w)
		if ready {
			return v, err
		}
		select {
		case <-wake:
		case <-ctx.Done():
			f.Cancel()
			return zero, ctx.Err()
		}
	}
}
