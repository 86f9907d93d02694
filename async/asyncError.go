// Package async provides the futures, worker pools and delayed actions the
// scheduling engine uses to keep blocking work off its own goroutines.
package async

import (
	"context"
	"sync"
)

// AsyncError is an async value that will eventually return an error.
// It is similar to a Promise/Future which returns an error.
// The value is supplied by calling SetValue; only the first call has an effect.
type AsyncError struct {
	done chan struct{}
	once sync.Once
	val  error
}

func NewAsyncError() *AsyncError {
	return &AsyncError{done: make(chan struct{})}
}

// CompletedAsyncError returns an AsyncError already completed with err.
func CompletedAsyncError(err error) *AsyncError {
	e := NewAsyncError()
	e.SetValue(err)
	return e
}

// Sets the value for the AsyncError and marks it Completed.
// Later calls are ignored.
func (e *AsyncError) SetValue(err error) {
	e.once.Do(func() {
		e.val = err
		close(e.done)
	})
}

// Returns true and the value if the AsyncError is Completed,
// false and nil while it is Pending.
func (e *AsyncError) TryGetValue() (bool, error) {
	select {
	case <-e.done:
		return true, e.val
	default:
		return false, nil
	}
}

// Done is closed once the value is set.
func (e *AsyncError) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the value is set or ctx is done, in which case ctx.Err() is returned.
func (e *AsyncError) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.val
	case <-ctx.Done():
		return ctx.Err()
	}
}
