package kvdb

import (
	"context"
	"sync"
)

// Result is the outcome of a transaction that has been issued but may not
// have completed yet.
type Result[T any] struct {
	done chan struct{}

	mu    sync.Mutex
	value T
	ok    bool
	err   error
	thens []func(T, bool, error)
}

func newResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// Done is closed when the transaction completes.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the transaction completes or ctx is done. ok reports
// whether a value was found; it is only meaningful for reads.
func (r *Result[T]) Wait(ctx context.Context) (value T, ok bool, err error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return value, false, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.ok, r.err
}

// Err returns the transaction error, or nil while it is still pending.
func (r *Result[T]) Err() error {
	select {
	case <-r.done:
	default:
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Then registers fn to run once the transaction completes. If it already
// has, fn runs immediately on the calling goroutine; otherwise it runs on
// the store's worker before the next transaction starts.
func (r *Result[T]) Then(fn func(value T, ok bool, err error)) {
	r.mu.Lock()
	select {
	case <-r.done:
		value, ok, err := r.value, r.ok, r.err
		r.mu.Unlock()
		fn(value, ok, err)
		return
	default:
	}
	r.thens = append(r.thens, fn)
	r.mu.Unlock()
}

func (r *Result[T]) resolve(value T, ok bool, err error) {
	r.mu.Lock()
	r.value, r.ok, r.err = value, ok, err
	thens := r.thens
	r.thens = nil
	close(r.done)
	r.mu.Unlock()

	for _, fn := range thens {
		fn(value, ok, err)
	}
}
