package future

import (
	"context"
	"sync"
)

type taskState int

const (
	taskIdle taskState = iota
	taskRunning
	taskDone
	taskCancelled
)

// task runs a blocking function on its own goroutine.
type task[T any] struct {
	fn func(ctx context.Context) (T, error)

	mu        sync.Mutex
	state     taskState
	delivered bool
	cancel    context.CancelFunc
	waker     Waker
	v         T
	err       error
}

// Go wraps a blocking function as a Future.  The goroutine running fn
// starts on the first Poll, not before; Cancel cancels the context
// handed to fn.
func Go[T any](fn func(ctx context.Context) (T, error)) Future[T] {
	return &task[T]{fn: fn}
}

func (t *task[T]) Poll(w Waker) (T, bool, error) {
	var zero T

	t.mu.Lock()
	switch t.state {
	case taskCancelled:
		t.mu.Unlock()
		return zero, true, ErrCancelled
	case taskDone:
		t.delivered = true
		v, err := t.v, t.err
		t.mu.Unlock()
		return v, true, err
	case taskIdle:
		ctx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		t.state = taskRunning
		t.waker = w
		t.mu.Unlock()
		go t.run(ctx, cancel)
		return zero, false, nil
	}

	// Running: only the most recent waker is kept.
	t.waker = w
	t.mu.Unlock()
	return zero, false, nil
}

func (t *task[T]) run(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	v, err := t.fn(ctx)

	t.mu.Lock()
	if t.state == taskCancelled {
		t.mu.Unlock()
		if err == nil {
			release(v)
		}
		return
	}
	t.v, t.err, t.state = v, err, taskDone
	w := t.waker
	t.waker = nil
	t.mu.Unlock()

	if w != nil {
		w.Wake()
	}
}

func (t *task[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case taskCancelled:
		return
	case taskDone:
		if t.delivered {
			return
		}
		if t.err == nil {
			release(t.v)
		}
	case taskRunning:
		t.cancel()
	}
	t.state = taskCancelled
	t.waker = nil
}
