package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote failure")

// fastConfig keeps retries and windows short so breaker transitions can be
// observed without slowing the suite down.
func fastConfig() Config {
	return Config{
		FailureRatio:  1.0,
		MinRequests:   3,
		Window:        time.Minute,
		OpenWait:      50 * time.Millisecond,
		HalfOpenCalls: 1,
		MaxRetries:    0,
		RetryInterval: time.Millisecond,
		CallTimeout:   time.Second,
	}
}

func TestDo_PassesThroughResult(t *testing.T) {
	p := New[string]("test", fastConfig())

	got, err := p.Do(context.Background(), func(context.Context) (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestDo_RetriesTransientFailure(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	cfg.MinRequests = 100
	p := New[int]("test", cfg)

	var calls atomic.Int32
	got, err := p.Do(context.Background(), func(context.Context) (int, error) {
		if calls.Add(1) < 3 {
			return 0, errRemote
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_RetryBudgetExhausted(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	cfg.MinRequests = 100
	p := New[int]("test", cfg)

	var calls atomic.Int32
	_, err := p.Do(context.Background(), func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errRemote
	})

	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, int32(3), calls.Load(), "initial call plus two retries")
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 5
	cfg.MinRequests = 100
	p := New[int]("test", cfg)

	var calls atomic.Int32
	_, err := p.Do(context.Background(), func(context.Context) (int, error) {
		calls.Add(1)
		return 0, Permanent(errRemote)
	})

	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_OpensAfterThreshold(t *testing.T) {
	p := New[int]("test", fastConfig())

	var calls atomic.Int32
	fail := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errRemote
	}

	for range 3 {
		_, err := p.Do(context.Background(), fail)
		require.ErrorIs(t, err, errRemote)
	}
	require.Equal(t, gobreaker.StateOpen, p.State())
	callsBefore := calls.Load()

	_, err := p.Do(context.Background(), fail)

	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, callsBefore, calls.Load(), "open circuit must short-circuit without invoking the call")
}

func TestDo_HalfOpenRecovery(t *testing.T) {
	cfg := fastConfig()
	p := New[int]("test", cfg)

	for range 3 {
		_, _ = p.Do(context.Background(), func(context.Context) (int, error) {
			return 0, errRemote
		})
	}
	require.Equal(t, gobreaker.StateOpen, p.State())

	// Wait out the open window; the next call is a trial that closes the
	// breaker on success.
	time.Sleep(cfg.OpenWait + 20*time.Millisecond)

	got, err := p.Do(context.Background(), func(context.Context) (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, gobreaker.StateClosed, p.State())

	// Subsequent calls pass through again.
	_, err = p.Do(context.Background(), func(context.Context) (int, error) {
		return 8, nil
	})
	require.NoError(t, err)
}

func TestDo_HalfOpenFailureReopens(t *testing.T) {
	cfg := fastConfig()
	p := New[int]("test", cfg)

	for range 3 {
		_, _ = p.Do(context.Background(), func(context.Context) (int, error) {
			return 0, errRemote
		})
	}
	time.Sleep(cfg.OpenWait + 20*time.Millisecond)

	_, err := p.Do(context.Background(), func(context.Context) (int, error) {
		return 0, errRemote
	})

	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, gobreaker.StateOpen, p.State())
}

func TestDo_DeadlineBoundsCall(t *testing.T) {
	cfg := fastConfig()
	cfg.CallTimeout = 100 * time.Millisecond
	cfg.MinRequests = 100
	p := New[int]("test", cfg)

	start := time.Now()
	_, err := p.Do(context.Background(), func(context.Context) (int, error) {
		// Deliberately ignores its context.
		time.Sleep(time.Second)
		return 0, nil
	})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrDeadlineExceeded)
	assert.Less(t, elapsed, 400*time.Millisecond, "the deadline must unblock the invoker")
}

func TestDo_ConcurrentCallsShareBreakerState(t *testing.T) {
	cfg := fastConfig()
	cfg.MinRequests = 10
	p := New[int]("test", cfg)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Do(context.Background(), func(context.Context) (int, error) {
				return 0, errRemote
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, gobreaker.StateOpen, p.State(), "a concurrent failure burst must trip the shared breaker exactly like a serial one")
}
