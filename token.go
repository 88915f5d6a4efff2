package mqtt5

import (
	"context"
	"sync"
)

// Token is the completion handle of an asynchronous operation. It completes
// exactly once, with a result and an error.
type Token[T any] struct {
	done chan struct{}
	once sync.Once
	res  T
	err  error
}

func newToken[T any]() *Token[T] {
	return &Token[T]{done: make(chan struct{})}
}

// Done is closed when the operation has completed.
func (t *Token[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the operation completes or ctx is done. Giving up on the
// wait does not cancel the operation.
func (t *Token[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.res, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome. It must only be called after Done is closed.
func (t *Token[T]) Result() (T, error) {
	return t.res, t.err
}

// complete records the outcome; it reports false when the token had
// already completed.
func (t *Token[T]) complete(res T, err error) bool {
	first := false
	t.once.Do(func() {
		t.res = res
		t.err = err
		first = true
		close(t.done)
	})
	return first
}

func (t *Token[T]) completed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
