package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
	ErrActionPanic   = errors.New("throttled action panicked")
)

// Action is a unit of work submitted to a Throttler.
type Action[T any] func(ctx context.Context) (T, error)

// Result represents a queued, in-flight, or completed action.
type Result[T any] struct {
	done       chan struct{}
	value      T
	err        error
	dispatched time.Time
}

func newResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// Done returns a channel that is closed when the action completes.
func (r *Result[T]) Done() <-chan struct{} { return r.done }

// Err blocks until the action completes and returns its error.
func (r *Result[T]) Err() error {
	<-r.done
	return r.err
}

// Value blocks until the action completes and returns its outcome.
func (r *Result[T]) Value() (T, error) {
	<-r.done
	return r.value, r.err
}

// Wait is Value bounded by ctx. It does not cancel the action itself.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w while waiting for result: %w", ErrContextEnded, ctx.Err())
	}
}

// Dispatched reports when the action started. It is the zero
// time if the action never ran.
func (r *Result[T]) Dispatched() time.Time {
	<-r.done
	return r.dispatched
}

func (r *Result[T]) resolve(value T, err error) {
	r.value = value
	r.err = err
	close(r.done)
}
