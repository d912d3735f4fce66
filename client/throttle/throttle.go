package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Option configures a Throttler.
type Option func(*config)

type config struct {
	logFn   func() *slog.Logger
	mapErrs func(error) error
}

// WithLogger lazily resolves the logger at dispatch time, making option
// ordering in callers irrelevant. A nil-returning logFn disables logging.
func WithLogger(logFn func() *slog.Logger) Option {
	return func(c *config) {
		if logFn != nil {
			c.logFn = logFn
		}
	}
}

// WithErrorMapper rewrites every non-nil error before it reaches a Result,
// whether it came from the action or from waiting in the queue.
func WithErrorMapper(fn func(error) error) Option {
	return func(c *config) {
		if fn != nil {
			c.mapErrs = fn
		}
	}
}

type task[T any] struct {
	ctx    context.Context
	fn     Action[T]
	result *Result[T]
}

// Throttler dispatches actions in FIFO order, one at a time, with at
// least Interval between dispatch starts.
type Throttler[T any] struct {
	limiter  *rate.Limiter
	rps      float64
	interval time.Duration
	logFn    func() *slog.Logger
	mapErrs  func(error) error

	mu       sync.Mutex
	queue    []*task[T]
	draining bool
	last     time.Time
}

// New returns a Throttler allowing at most maxRequestsPerSecond dispatches
// per second. A non-positive rate yields an unlimited passthrough.
func New[T any](maxRequestsPerSecond float64, opts ...Option) *Throttler[T] {
	cfg := config{logFn: func() *slog.Logger { return nil }}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Throttler[T]{
		rps:     maxRequestsPerSecond,
		logFn:   cfg.logFn,
		mapErrs: cfg.mapErrs,
	}

	if maxRequestsPerSecond > 0 {
		t.interval = time.Duration(float64(time.Second) / maxRequestsPerSecond)
		t.limiter = rate.NewLimiter(rate.Every(t.interval), 1)
	}

	return t
}

// Limited reports whether dispatches are rate limited.
func (t *Throttler[T]) Limited() bool {
	return t.limiter != nil
}

// Interval is the minimum gap between dispatches, zero when unlimited.
func (t *Throttler[T]) Interval() time.Duration {
	return t.interval
}

// Len returns the number of queued actions not yet dispatched.
func (t *Throttler[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.queue)
}

// Execute enqueues fn and returns a Result that resolves with whatever fn
// returns once it has been dispatched. A failing action only fails its own
// Result; the queue keeps draining.
func (t *Throttler[T]) Execute(ctx context.Context, fn Action[T]) *Result[T] {
	if ctx == nil {
		ctx = context.Background()
	}

	tk := &task[T]{ctx: ctx, fn: fn, result: newResult[T]()}

	if t.limiter == nil {
		go t.run(tk)
		return tk.result
	}

	t.mu.Lock()
	t.queue = append(t.queue, tk)
	if !t.draining {
		t.draining = true
		go t.drain()
	}
	t.mu.Unlock()

	return tk.result
}

// drain pops and dispatches tasks until the queue is empty.
func (t *Throttler[T]) drain() {
	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.draining = false
			t.mu.Unlock()
			return
		}
		tk := t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		t.mu.Unlock()

		if err := t.wait(tk.ctx); err != nil {
			var zero T
			t.resolve(tk, zero, err)
			continue
		}

		t.run(tk)
	}
}

// wait blocks until the next dispatch slot. Only the drain goroutine
// calls it, so t.last needs no lock.
func (t *Throttler[T]) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	logger := t.logFn()
	start := time.Now()

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	// The limiter measures from its own clock reading, so hold
	// the gap against the recorded dispatch time too.
	if !t.last.IsZero() {
		if d := t.interval - time.Since(t.last); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w: %w", ErrWaitingFailed, ctx.Err())
			case <-timer.C:
			}
		}
	}

	if waited := time.Since(start); logger != nil && waited > time.Millisecond {
		logger.Info("throttle wait complete", "waited", waited.String(), "rate", t.rps, "queued", t.Len())
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	t.last = time.Now()

	return nil
}

// run invokes the task's action and resolves its result.
func (t *Throttler[T]) run(tk *task[T]) {
	tk.result.dispatched = time.Now()
	if t.limiter != nil {
		tk.result.dispatched = t.last
	}

	var (
		value T
		err   error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%w: %v", ErrActionPanic, rec)
				if logger := t.logFn(); logger != nil {
					logger.Error("throttled action panicked", "panic", rec)
				}
			}
		}()
		value, err = tk.fn(tk.ctx)
	}()

	t.resolve(tk, value, err)
}

func (t *Throttler[T]) resolve(tk *task[T], value T, err error) {
	if err != nil && t.mapErrs != nil {
		err = t.mapErrs(err)
	}
	tk.result.resolve(value, err)
}
