package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"github.com/jonboulle/clockwork"
	"spacetrack/pkg/logger"
)

var (
	ErrInvalidMaxCalls = errors.New("ratelimit: max calls must be positive")
	ErrInvalidPeriod   = errors.New("ratelimit: period must be positive")
)

// Limiter is the acquire/release pair guarded operations run between.
type Limiter interface {
	// Acquire blocks until the caller may start. On success the caller
	// owns the limiter until Release.
	Acquire(ctx context.Context) error
	// Release ends a guarded operation started by a successful Acquire.
	Release()
}

// ThrottleFunc is told when a caller is about to wait and until when.
// It runs on its own goroutine; its error and any panic are logged only.
type ThrottleFunc func(ctx context.Context, until time.Time) error

// Gate caps how many guarded operations may finish within any sliding
// window of length period. Completions are recorded in an admission log;
// a caller that finds the log full waits until the oldest entry has aged
// out of the window.
//
// Ownership taken by Acquire is held until Release, so operations guarded
// by one Gate run one at a time.
type Gate struct {
	maxCalls   int
	period     time.Duration
	clock      clockwork.Clock
	binding    Binding
	kind       BindingKind
	onThrottle ThrottleFunc
	log        logger.Logger

	// admissions holds completion timestamps, oldest first. Guarded by binding.
	admissions deque.Deque[time.Time]

	admitted  atomic.Uint64
	throttled atomic.Uint64
	waited    atomic.Int64
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the time source. Tests pass a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithBindingKind selects one of the built-in bindings.
func WithBindingKind(kind BindingKind) Option {
	return func(g *Gate) { g.kind = kind }
}

// WithBinding installs a custom binding and overrides WithBindingKind.
func WithBinding(b Binding) Option {
	return func(g *Gate) { g.binding = b }
}

// WithOnThrottle registers a callback fired once per throttle decision.
func WithOnThrottle(fn ThrottleFunc) Option {
	return func(g *Gate) { g.onThrottle = fn }
}

// WithLogger sets the logger for admissions and throttle decisions.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// NewGate creates a gate admitting at most maxCalls completions per period.
func NewGate(maxCalls int, period time.Duration, opts ...Option) (*Gate, error) {
	if maxCalls <= 0 {
		return nil, ErrInvalidMaxCalls
	}
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}

	g := &Gate{
		maxCalls: maxCalls,
		period:   period,
		kind:     Cooperative,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.clock == nil {
		g.clock = clockwork.NewRealClock()
	}
	if g.log == nil {
		g.log = logger.GetLogger()
	}
	if g.binding == nil {
		g.binding = newBinding(g.kind, g.clock)
	}
	g.log = g.log.WithField("component", "ratelimit")

	return g, nil
}

// Acquire waits for the gate and, when the admission log is full, for the
// window to slide. If ctx ends during either wait the gate is left exactly
// as it was and ctx.Err() is returned.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.binding.Lock(ctx); err != nil {
		return err
	}

	if g.admissions.Len() >= g.maxCalls {
		now := g.clock.Now()
		until := now.Add(g.period - g.span())
		g.throttled.Add(1)
		g.notify(ctx, until)

		if wait := until.Sub(now); wait > 0 {
			logger.LogThrottle(g.log, until, wait)
			if err := g.binding.Sleep(ctx, wait); err != nil {
				g.binding.Unlock()
				return err
			}
			g.waited.Add(int64(wait))
		}
	}

	g.admitted.Add(1)
	return nil
}

// Release records the completion, drops entries that fell out of the
// window and hands the gate to the next caller. It must be called exactly
// once for every successful Acquire.
func (g *Gate) Release() {
	g.admissions.PushBack(g.clock.Now())
	for g.admissions.Len() > 1 && g.span() >= g.period {
		g.admissions.PopFront()
	}
	g.binding.Unlock()
}

// span is newest minus oldest. With fewer than two entries it is zero, so a
// full log of one entry waits a whole period from now.
func (g *Gate) span() time.Duration {
	if g.admissions.Len() < 2 {
		return 0
	}
	return g.admissions.Back().Sub(g.admissions.Front())
}

func (g *Gate) notify(ctx context.Context, until time.Time) {
	if g.onThrottle == nil {
		return
	}

	cbCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.log.ErrorWithFields("throttle callback panicked", map[string]interface{}{
					"panic": fmt.Sprint(r),
				})
			}
		}()

		if err := g.onThrottle(cbCtx, until); err != nil {
			g.log.WithError(err).Warn("throttle callback failed")
		}
	}()
}

// MaxCalls returns the admission limit per window.
func (g *Gate) MaxCalls() int { return g.maxCalls }

// Period returns the window length.
func (g *Gate) Period() time.Duration { return g.period }

// Kind returns the built-in binding kind, or "" for a custom binding.
func (g *Gate) Kind() BindingKind {
	switch g.binding.(type) {
	case *blockingBinding:
		return Blocking
	case *cooperativeBinding:
		return Cooperative
	default:
		return ""
	}
}

// Stats is a snapshot of gate counters.
type Stats struct {
	MaxCalls  int           `json:"max_calls"`
	Period    time.Duration `json:"period"`
	Admitted  uint64        `json:"admitted"`
	Throttled uint64        `json:"throttled"`
	Waited    time.Duration `json:"waited"`
}

// Stats reads the counters without taking the gate.
func (g *Gate) Stats() Stats {
	return Stats{
		MaxCalls:  g.maxCalls,
		Period:    g.period,
		Admitted:  g.admitted.Load(),
		Throttled: g.throttled.Load(),
		Waited:    time.Duration(g.waited.Load()),
	}
}
