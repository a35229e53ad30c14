/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package reactive

import (
	"context"
	"errors"
	"iter"
	"runtime"
	"sync/atomic"
)

// ErrConsumed is reported when a sequence is consumed a second time.
var ErrConsumed = errors.New("sequence already consumed")

// Emit hands one item to the consumer. It returns false once the consumer
// has gone away, after which the producer must stop.
type Emit[T any] func(item T) bool

// Producer fills a sequence. It may call emit from several goroutines but
// must not return before all of them have stopped emitting. Its error, if
// any, terminates the sequence after every item already emitted.
type Producer[T any] func(ctx context.Context, emit Emit[T]) error

// Sequence is a one-shot, finite stream of items that completes or fails.
// Items are produced as the consumer takes them, up to a small buffer.
type Sequence[T any] struct {
	st *sequenceState[T]
}

type sequenceState[T any] struct {
	items   chan T
	done    chan struct{}
	err     error
	cancel  context.CancelFunc
	claimed atomic.Bool
}

// Stream starts produce on its own goroutine and returns the sequence it
// fills. Cancelling ctx, calling Cancel, breaking out of All, or dropping an
// unconsumed sequence all stop the producer.
func Stream[T any](ctx context.Context, buffer int, produce Producer[T]) *Sequence[T] {
	if buffer < 0 {
		buffer = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	st := &sequenceState[T]{
		items:  make(chan T, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(st.done)
		defer cancel()

		var abandoned atomic.Bool
		err := produce(ctx, func(item T) bool {
			select {
			case st.items <- item:
				return true
			case <-ctx.Done():
				abandoned.Store(true)
				return false
			}
		})
		if err == nil && abandoned.Load() {
			err = ctx.Err()
		}
		st.err = err
		close(st.items)
	}()

	s := &Sequence[T]{st: st}
	runtime.SetFinalizer(s, func(s *Sequence[T]) {
		if !s.st.claimed.Load() {
			s.st.cancel()
		}
	})
	return s
}

// Empty returns a sequence that completes without items.
func Empty[T any]() *Sequence[T] {
	return Stream(context.Background(), 0, func(context.Context, Emit[T]) error { return nil })
}

// Fail returns a sequence that fails with err without items.
func Fail[T any](err error) *Sequence[T] {
	return Stream(context.Background(), 0, func(context.Context, Emit[T]) error { return err })
}

// Items claims the raw item channel. It is closed when the sequence
// terminates; Err then reports the outcome. A consumer that stops reading
// early must call Cancel. A second claim gets a closed channel.
func (s *Sequence[T]) Items() <-chan T {
	if !s.st.claimed.CompareAndSwap(false, true) {
		ch := make(chan T)
		close(ch)
		return ch
	}
	return s.st.items
}

// Done is closed once the producer has finished.
func (s *Sequence[T]) Done() <-chan struct{} {
	return s.st.done
}

// Err reports the terminal error once the sequence is done, nil before
// that or on completion.
func (s *Sequence[T]) Err() error {
	select {
	case <-s.st.done:
		return s.st.err
	default:
		return nil
	}
}

// Cancel abandons the sequence and stops the producer.
func (s *Sequence[T]) Cancel() {
	s.st.cancel()
}

// All claims the sequence as an iterator. A failure is yielded last, with a
// zero item. Breaking out of the loop cancels the producer.
func (s *Sequence[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if !s.st.claimed.CompareAndSwap(false, true) {
			var zero T
			yield(zero, ErrConsumed)
			return
		}
		for item := range s.st.items {
			if !yield(item, nil) {
				s.st.cancel()
				return
			}
		}
		<-s.st.done
		if s.st.err != nil {
			var zero T
			yield(zero, s.st.err)
		}
	}
}

// ForEach blocks, calling fn for each item until the sequence terminates,
// fn fails, or ctx is done. Items delivered before a failure are kept.
func (s *Sequence[T]) ForEach(ctx context.Context, fn func(T) error) error {
	if !s.st.claimed.CompareAndSwap(false, true) {
		return ErrConsumed
	}
	defer s.st.cancel()
	for {
		select {
		case item, ok := <-s.st.items:
			if !ok {
				<-s.st.done
				return s.st.err
			}
			if err := fn(item); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Collect blocks until the sequence terminates and returns every item. On
// failure the items received before it are returned with the error.
func (s *Sequence[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	err := s.ForEach(ctx, func(item T) error {
		out = append(out, item)
		return nil
	})
	return out, err
}

// Subscribe consumes the sequence on a separate goroutine, calling onNext
// per item and onDone with the terminal error. It does not block the caller.
func (s *Sequence[T]) Subscribe(onNext func(T), onDone func(error)) {
	go func() {
		err := s.ForEach(context.Background(), func(item T) error {
			onNext(item)
			return nil
		})
		if onDone != nil {
			onDone(err)
		}
	}()
}

// First returns a future for the first item of s, or absent when s completes
// empty. The rest of the sequence is cancelled.
func First[T any](ctx context.Context, s *Sequence[T]) *Future[T] {
	return Go(ctx, func(ctx context.Context) (T, bool, error) {
		for item, err := range s.All() {
			if err != nil {
				var zero T
				return zero, false, err
			}
			return item, true, nil
		}
		var zero T
		return zero, false, nil
	})
}
