/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package reactive

import (
	"context"
)

// Future is a single-value result handle. It resolves exactly once, to a
// value, to absent, or to an error.
type Future[T any] struct {
	done    chan struct{}
	value   T
	present bool
	err     error
}

// Go runs fn on its own goroutine and returns a future for its result.
// fn reports absence by returning present == false with a nil error.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (value T, present bool, err error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.present, f.err = fn(ctx)
		if f.err != nil {
			var zero T
			f.value, f.present = zero, false
		}
	}()
	return f
}

// Resolved returns a future already holding v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: v, present: true}
	close(f.done)
	return f
}

// Absent returns a future already resolved to absent.
func Absent[T any]() *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	close(f.done)
	return f
}

// Failed returns a future already failed with err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx is done. This is the only
// blocking call on a Future.
func (f *Future[T]) Await(ctx context.Context) (T, bool, error) {
	select {
	case <-f.done:
		return f.value, f.present, f.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Err blocks like Await and only reports the failure, for futures whose
// value is irrelevant.
func (f *Future[T]) Err(ctx context.Context) error {
	_, _, err := f.Await(ctx)
	return err
}

// Subscribe calls fn with the outcome once the future resolves, on a
// separate goroutine. It does not block the caller.
func (f *Future[T]) Subscribe(fn func(value T, present bool, err error)) {
	go func() {
		<-f.done
		fn(f.value, f.present, f.err)
	}()
}

// Then chains a transformation of a present value. Absent and failed
// futures pass through unchanged.
func Then[T, U any](ctx context.Context, f *Future[T], fn func(ctx context.Context, v T) (U, bool, error)) *Future[U] {
	return Go(ctx, func(ctx context.Context) (U, bool, error) {
		var zero U
		select {
		case <-f.done:
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
		if f.err != nil || !f.present {
			return zero, false, f.err
		}
		return fn(ctx, f.value)
	})
}
