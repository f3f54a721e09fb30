// Package ready provides a one-shot readiness signal: a value that is
// published (or fails) exactly once and can be awaited by any number of
// goroutines.
package ready

import (
	"context"
	"errors"
	"sync"
)

var ErrNotReady = errors.New("not ready")

type Signal[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func New[T any]() *Signal[T] {
	return &Signal[T]{done: make(chan struct{})}
}

// Publish moves the signal to READY. Only the first Publish or Fail wins.
func (s *Signal[T]) Publish(v T) bool {
	won := false
	s.once.Do(func() {
		s.value = v
		won = true
		close(s.done)
	})
	return won
}

// Fail moves the signal to FAILED with err.
func (s *Signal[T]) Fail(err error) bool {
	if err == nil {
		err = errors.New("ready: failed with nil error")
	}
	won := false
	s.once.Do(func() {
		s.err = err
		won = true
		close(s.done)
	})
	return won
}

// Wait blocks until the signal fires or ctx is done. A fired signal wins
// over a done ctx.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-s.done:
		return s.value, s.err
	default:
	}
	select {
	case <-s.done:
		return s.value, s.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek never blocks. It returns ErrNotReady while waiting.
func (s *Signal[T]) Peek() (T, error) {
	select {
	case <-s.done:
		return s.value, s.err
	default:
		var zero T
		return zero, ErrNotReady
	}
}
