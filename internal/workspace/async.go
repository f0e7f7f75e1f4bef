package workspace

import "context"

// Outcome carries the result of an operation run with Go.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Go runs fn in its own goroutine and delivers its outcome on the returned
// channel, which receives exactly one value and is then closed. Callers on an
// interactive thread select on it instead of blocking.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)
	go func() {
		defer close(out)
		value, err := fn(ctx)
		out <- Outcome[T]{Value: value, Err: err}
	}()
	return out
}
