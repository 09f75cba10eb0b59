// Package resilience guards remote calls with a named circuit breaker,
// bounded retry, and a hard deadline. A policy object wraps a callable and
// returns the same value/error shape plus failure-class-aware behaviour:
// transient errors are retried with backoff, an open circuit short-circuits
// without touching the dependency, and the deadline bounds the whole call
// including retries.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
)

// Policy-level errors. Both classify as transient for the caller's fallback
// path; neither carries detail about the guarded dependency's internals.
var (
	// ErrCircuitOpen is returned when the breaker short-circuits a call
	// without invoking the dependency.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrDeadlineExceeded is returned when the call, including retries, did
	// not complete within the configured deadline.
	ErrDeadlineExceeded = errors.New("call deadline exceeded")
)

// Permanent marks err as non-retryable. Calls should use it for business
// rejections that re-invoking the dependency cannot change.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Config tunes a Policy. Zero values fall back to the defaults below.
type Config struct {
	// FailureRatio is the failure share over the rolling window that trips
	// the breaker from closed to open.
	FailureRatio float64
	// MinRequests is the number of calls required in the window before the
	// failure ratio is evaluated.
	MinRequests uint32
	// Window is the rolling period over which closed-state counts accumulate.
	Window time.Duration
	// OpenWait is how long the breaker stays open before allowing trial calls.
	OpenWait time.Duration
	// HalfOpenCalls is the number of trial calls allowed while half-open.
	HalfOpenCalls uint32
	// MaxRetries is the number of re-invocations after a failed attempt.
	MaxRetries uint64
	// RetryInterval is the initial backoff delay between attempts.
	RetryInterval time.Duration
	// CallTimeout bounds the whole call including retries and backoff waits.
	CallTimeout time.Duration
	// OnStateChange, when set, observes breaker transitions.
	OnStateChange func(name string, from, to gobreaker.State)
}

func (c Config) withDefaults() Config {
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.5
	}
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.Window <= 0 {
		c.Window = 30 * time.Second
	}
	if c.OpenWait <= 0 {
		c.OpenWait = 10 * time.Second
	}
	if c.HalfOpenCalls == 0 {
		c.HalfOpenCalls = 1
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 100 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 3 * time.Second
	}
	return c
}

// Call is the remote invocation a Policy guards.
type Call[T any] func(ctx context.Context) (T, error)

// Policy is a named resilience policy. One instance is shared by every
// concurrent invocation of the dependency it guards; the breaker state and
// its counters are the only shared mutable state, and gobreaker serializes
// access to them internally.
type Policy[T any] struct {
	name    string
	cfg     Config
	breaker *gobreaker.CircuitBreaker[T]
}

// New creates a named Policy with the given configuration.
func New[T any](name string, cfg Config) *Policy[T] {
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenCalls,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenWait,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}

	return &Policy[T]{
		name:    name,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[T](settings),
	}
}

// State reports the current breaker state.
func (p *Policy[T]) State() gobreaker.State {
	return p.breaker.State()
}

// Do runs fn under the policy. It returns fn's result, ErrCircuitOpen when
// the breaker rejected the call, or ErrDeadlineExceeded when the deadline
// elapsed first. The deadline is enforced with a hard select so even a call
// that ignores its context cannot hold the invoker past it.
func (p *Policy[T]) Do(parent context.Context, fn Call[T]) (T, error) {
	ctx, cancel := context.WithTimeout(parent, p.cfg.CallTimeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := p.attempt(ctx, fn)
		done <- outcome{val: val, err: err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrapf(ErrDeadlineExceeded, "%s: %v", p.name, ctx.Err())
	}
}

// attempt re-invokes fn through the breaker until it succeeds, fails
// permanently, hits an open circuit, or exhausts the retry budget. Each
// attempt is accounted individually in the breaker's rolling window.
func (p *Policy[T]) attempt(ctx context.Context, fn Call[T]) (T, error) {
	op := func() (T, error) {
		val, err := p.breaker.Execute(func() (T, error) {
			return fn(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// The dependency was never called; retrying inside the open
			// window cannot succeed.
			return val, backoff.Permanent(errors.Wrap(ErrCircuitOpen, p.name))
		}
		return val, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryInterval

	return backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(bo, p.cfg.MaxRetries), ctx))
}
