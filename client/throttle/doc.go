// Package throttle serializes work through a FIFO queue and spaces
// dispatches by a minimum interval using the token-bucket limiter from
// [golang.org/x/time/rate] with a burst of one.
//
// # Usage
//
// Create a [Throttler] with a maximum rate and submit actions with
// [Throttler.Execute]:
//
//	th := throttle.New[string](2, // requests per second
//		throttle.WithLogger(func() *slog.Logger { return slog.Default() }),
//	)
//	res := th.Execute(ctx, func(ctx context.Context) (string, error) {
//		return fetch(ctx)
//	})
//	v, err := res.Value()
//
// Actions are dispatched one at a time in submission order, and no two
// dispatches start closer together than 1/rate seconds. A rate of zero or
// less disables throttling: every action starts immediately in its own
// goroutine.
package throttle
