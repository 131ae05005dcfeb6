package ratelimit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"spacetrack/pkg/logger"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T, maxCalls int, period time.Duration, kind BindingKind, opts ...Option) (*Gate, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	opts = append([]Option{
		WithClock(clock),
		WithBindingKind(kind),
		WithLogger(logger.NewNopLogger()),
	}, opts...)
	g, err := NewGate(maxCalls, period, opts...)
	require.NoError(t, err)
	return g, clock
}

// acquireAsync starts Acquire on its own goroutine.
func acquireAsync(ctx context.Context, g *Gate) <-chan error {
	done := make(chan error, 1)
	go func() { done <- g.Acquire(ctx) }()
	return done
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Acquire")
		return nil
	}
}

func assertPending(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		t.Fatalf("Acquire returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

// assertUnlocked checks nobody owns the gate.
func assertUnlocked(t *testing.T, g *Gate) {
	t.Helper()
	locked := make(chan error, 1)
	go func() { locked <- g.binding.Lock(context.Background()) }()
	require.NoError(t, waitErr(t, locked), "gate lock is still held")
	g.binding.Unlock()
}

func bothBindings(t *testing.T, fn func(t *testing.T, kind BindingKind)) {
	for _, kind := range []BindingKind{Cooperative, Blocking} {
		t.Run(string(kind), func(t *testing.T) { fn(t, kind) })
	}
}

func TestNewGateValidation(t *testing.T) {
	_, err := NewGate(0, time.Second)
	assert.ErrorIs(t, err, ErrInvalidMaxCalls)

	_, err = NewGate(-1, time.Second)
	assert.ErrorIs(t, err, ErrInvalidMaxCalls)

	_, err = NewGate(1, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	g, err := NewGate(3, time.Second, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	assert.Equal(t, 3, g.MaxCalls())
	assert.Equal(t, time.Second, g.Period())
	assert.Equal(t, Cooperative, g.Kind())
}

func TestParseBindingKind(t *testing.T) {
	kind, err := ParseBindingKind("Blocking")
	require.NoError(t, err)
	assert.Equal(t, Blocking, kind)

	kind, err = ParseBindingKind("")
	require.NoError(t, err)
	assert.Equal(t, Cooperative, kind)

	_, err = ParseBindingKind("threads")
	assert.Error(t, err)
}

func TestGateAdmitsUpToMaxWithoutWaiting(t *testing.T) {
	bothBindings(t, func(t *testing.T, kind BindingKind) {
		g, _ := newTestGate(t, 3, 10*time.Second, kind)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			require.NoError(t, g.Acquire(ctx))
			g.Release()
		}

		assert.Equal(t, 3, g.admissions.Len())
		assert.Equal(t, uint64(3), g.Stats().Admitted)
		assert.Zero(t, g.Stats().Throttled)
	})
}

// max=2, period=10s. Two completions at 0.1s and 0.3s; a third caller
// arriving at 0.5s is held until 0.5 + 10 - (0.3 - 0.1) = 10.3s.
func TestGateSlidingWindowScenario(t *testing.T) {
	bothBindings(t, func(t *testing.T, kind BindingKind) {
		var untils []time.Time
		var mu sync.Mutex
		notified := make(chan struct{}, 1)
		g, clock := newTestGate(t, 2, 10*time.Second, kind, WithOnThrottle(func(ctx context.Context, until time.Time) error {
			mu.Lock()
			untils = append(untils, until)
			mu.Unlock()
			notified <- struct{}{}
			return nil
		}))
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx))
		clock.Advance(100 * time.Millisecond)
		g.Release()

		clock.Advance(100 * time.Millisecond)
		require.NoError(t, g.Acquire(ctx))
		clock.Advance(100 * time.Millisecond)
		g.Release()

		clock.Advance(200 * time.Millisecond)
		done := acquireAsync(ctx, g)
		clock.BlockUntil(1)

		clock.Advance(9600 * time.Millisecond) // 10.1s
		assertPending(t, done)

		clock.Advance(200 * time.Millisecond) // 10.3s
		require.NoError(t, waitErr(t, done))
		assert.Equal(t, epoch.Add(10300*time.Millisecond), clock.Now())

		<-notified
		mu.Lock()
		require.Len(t, untils, 1)
		assert.Equal(t, epoch.Add(10300*time.Millisecond), untils[0])
		mu.Unlock()

		g.Release()
		stats := g.Stats()
		assert.Equal(t, uint64(3), stats.Admitted)
		assert.Equal(t, uint64(1), stats.Throttled)
		assert.Equal(t, 9800*time.Millisecond, stats.Waited)
	})
}

// max=1, period=5s. B waits for A to finish and then a full period more.
func TestGateTwoConcurrentCallers(t *testing.T) {
	bothBindings(t, func(t *testing.T, kind BindingKind) {
		g, clock := newTestGate(t, 1, 5*time.Second, kind)
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx))
		b := acquireAsync(ctx, g)

		clock.Advance(time.Second)
		assertPending(t, b)
		g.Release() // A's completion at 1s

		clock.BlockUntil(1)
		clock.Advance(4 * time.Second)
		assertPending(t, b)

		clock.Advance(time.Second)
		require.NoError(t, waitErr(t, b))
		assert.Equal(t, epoch.Add(6*time.Second), clock.Now())
		g.Release()
	})
}

// With a single entry the span is zero, so a full log waits a whole
// period from now even when that entry is already outside the window.
func TestGateSingleEntryWaitsFullPeriod(t *testing.T) {
	bothBindings(t, func(t *testing.T, kind BindingKind) {
		g, clock := newTestGate(t, 1, 10*time.Second, kind)
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx))
		g.Release()

		clock.Advance(30 * time.Second)
		start := clock.Now()
		done := acquireAsync(ctx, g)
		clock.BlockUntil(1)

		clock.Advance(9 * time.Second)
		assertPending(t, done)
		clock.Advance(time.Second)
		require.NoError(t, waitErr(t, done))
		assert.Equal(t, start.Add(10*time.Second), clock.Now())
		g.Release()
	})
}

func TestGateReleasePrunesStaleEntries(t *testing.T) {
	g, clock := newTestGate(t, 5, 10*time.Second, Cooperative)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Acquire(ctx))
		g.Release()
		clock.Advance(time.Second)
	}
	require.Equal(t, 3, g.admissions.Len())

	clock.Advance(20 * time.Second)
	require.NoError(t, g.Acquire(ctx))
	g.Release()

	assert.Equal(t, 1, g.admissions.Len())
	assert.Equal(t, clock.Now(), g.admissions.Front())
}

func TestGateCancelDuringThrottleWait(t *testing.T) {
	// Only the cooperative binding can be interrupted mid-wait.
	g, clock := newTestGate(t, 1, 10*time.Second, Cooperative)

	require.NoError(t, g.Acquire(context.Background()))
	g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := acquireAsync(ctx, g)
	clock.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, waitErr(t, done), context.Canceled)
	assert.Equal(t, 1, g.admissions.Len())
	assert.Equal(t, uint64(1), g.Stats().Admitted)
	assertUnlocked(t, g)
}

func TestGateBlockingBacksOutAfterWait(t *testing.T) {
	g, clock := newTestGate(t, 1, 10*time.Second, Blocking)

	require.NoError(t, g.Acquire(context.Background()))
	g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := acquireAsync(ctx, g)
	clock.BlockUntil(1)
	cancel()
	assertPending(t, done)

	clock.Advance(10 * time.Second)
	assert.ErrorIs(t, waitErr(t, done), context.Canceled)
	assert.Equal(t, 1, g.admissions.Len())
	assertUnlocked(t, g)
}

func TestGateCancelWhileWaitingForLock(t *testing.T) {
	g, _ := newTestGate(t, 5, 10*time.Second, Cooperative)

	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := acquireAsync(ctx, g)
	assertPending(t, done)
	cancel()
	assert.ErrorIs(t, waitErr(t, done), context.Canceled)

	g.Release()
	assert.Equal(t, 1, g.admissions.Len())
	assertUnlocked(t, g)
}

func TestGateAlreadyCancelledContext(t *testing.T) {
	bothBindings(t, func(t *testing.T, kind BindingKind) {
		g, _ := newTestGate(t, 1, time.Second, kind)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, g.Acquire(ctx), context.Canceled)
		assert.Zero(t, g.admissions.Len())
		assertUnlocked(t, g)
	})
}

func TestGateThrottleCallbackFailuresAreIsolated(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		tl := logger.NewTestLogger()
		g, clock := newTestGate(t, 1, time.Second, Cooperative,
			WithLogger(tl),
			WithOnThrottle(func(ctx context.Context, until time.Time) error {
				return errors.New("notifier offline")
			}))
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx))
		g.Release()

		done := acquireAsync(ctx, g)
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		require.NoError(t, waitErr(t, done))
		g.Release()

		assert.Eventually(t, func() bool {
			return tl.HasMessage("throttle callback failed")
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("panic", func(t *testing.T) {
		tl := logger.NewTestLogger()
		g, clock := newTestGate(t, 1, time.Second, Cooperative,
			WithLogger(tl),
			WithOnThrottle(func(ctx context.Context, until time.Time) error {
				panic("boom")
			}))
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx))
		g.Release()

		done := acquireAsync(ctx, g)
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		require.NoError(t, waitErr(t, done))
		g.Release()

		assert.Eventually(t, tl.HasError, time.Second, 5*time.Millisecond)
	})
}

func TestGateThrottleCallbackOutlivesCancellation(t *testing.T) {
	ctxSeen := make(chan error, 1)
	g, clock := newTestGate(t, 1, time.Second, Cooperative,
		WithOnThrottle(func(ctx context.Context, until time.Time) error {
			ctxSeen <- ctx.Err()
			return nil
		}))

	require.NoError(t, g.Acquire(context.Background()))
	g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := acquireAsync(ctx, g)
	clock.BlockUntil(1)
	cancel()
	assert.ErrorIs(t, waitErr(t, done), context.Canceled)

	assert.NoError(t, waitErr(t, ctxSeen))
}

// Admission times of any maxCalls+1 consecutive operations span at least
// one period.
func TestGateWindowNeverExceedsMaxCalls(t *testing.T) {
	bothBindings(t, func(t *testing.T, kind BindingKind) {
		const (
			maxCalls = 3
			period   = 40 * time.Millisecond
			callers  = 10
		)
		g, err := NewGate(maxCalls, period, WithBindingKind(kind), WithLogger(logger.NewNopLogger()))
		require.NoError(t, err)

		var (
			mu       sync.Mutex
			admitted []time.Time
			wg       sync.WaitGroup
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := g.Run(context.Background(), func(ctx context.Context) error {
					mu.Lock()
					admitted = append(admitted, time.Now())
					mu.Unlock()
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		require.Len(t, admitted, callers)
		sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })
		for i := 0; i+maxCalls < len(admitted); i++ {
			assert.GreaterOrEqual(t, admitted[i+maxCalls].Sub(admitted[i]), period)
		}
		assert.LessOrEqual(t, g.admissions.Len(), maxCalls)
	})
}
