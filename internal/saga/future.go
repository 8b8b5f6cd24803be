package saga

import (
	"context"
	"sync"
)

// future carries the result of one task invocation back to the caller that
// started it. It resolves at most once.
type future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

func (f *future[T]) resolve(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// wait returns the resolved value, or ctx's error if ctx ends first.
func (f *future[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
