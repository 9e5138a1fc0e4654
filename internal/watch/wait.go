package watch

import (
	"context"
	"time"
)

// Watcher is implemented by Collection and Document.
type Watcher[T any] interface {
	State() State[T]
	Updates() <-chan State[T]
}

// WaitFor blocks until pred holds for the watch state, the timeout elapses or
// ctx ends. It lets a caller write and then await the snapshot reflecting the
// write. A zero timeout waits as long as ctx allows.
func WaitFor[T any](ctx context.Context, w Watcher[T], pred func(State[T]) bool, timeout time.Duration) (State[T], error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if s := w.State(); pred(s) {
		return s, nil
	}
	updates := w.Updates()
	for {
		select {
		case <-ctx.Done():
			return w.State(), ctx.Err()
		case _, ok := <-updates:
			if !ok {
				return State[T]{}, ErrClosed
			}
			if s := w.State(); pred(s) {
				return s, nil
			}
		}
	}
}

// Settled reports whether the watch has delivered a result or an error for its current input.
func Settled[T any](s State[T]) bool {
	return !s.Loading
}
