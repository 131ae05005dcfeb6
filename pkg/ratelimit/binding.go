package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"
)

// Binding supplies the exclusive scope and the wait primitive a Gate runs
// its admission algorithm on. A gate uses exactly one binding for its life.
type Binding interface {
	// Lock takes exclusive ownership of the gate.
	Lock(ctx context.Context) error
	// Unlock gives up ownership taken by a successful Lock.
	Unlock()
	// Sleep suspends the owner for d. It returns ctx.Err() if the caller
	// should back out instead of proceeding.
	Sleep(ctx context.Context, d time.Duration) error
}

// BindingKind names one of the built-in bindings.
type BindingKind string

const (
	// Cooperative suspends callers on channels; both the lock wait and the
	// throttle wait return as soon as the context is done.
	Cooperative BindingKind = "cooperative"
	// Blocking parks the calling goroutine on a mutex and a plain sleep.
	// Cancellation is only observed once the wait is over.
	Blocking BindingKind = "blocking"
)

// ParseBindingKind maps a configuration value to a BindingKind.
func ParseBindingKind(s string) (BindingKind, error) {
	switch BindingKind(strings.ToLower(strings.TrimSpace(s))) {
	case Cooperative, "":
		return Cooperative, nil
	case Blocking:
		return Blocking, nil
	default:
		return "", fmt.Errorf("unknown binding %q", s)
	}
}

func newBinding(kind BindingKind, clock clockwork.Clock) Binding {
	if kind == Blocking {
		return NewBlockingBinding(clock)
	}
	return NewCooperativeBinding(clock)
}

type blockingBinding struct {
	mu    sync.Mutex
	clock clockwork.Clock
}

// NewBlockingBinding returns a Binding built on sync.Mutex and clock.Sleep.
func NewBlockingBinding(clock clockwork.Clock) Binding {
	return &blockingBinding{clock: clock}
}

func (b *blockingBinding) Lock(ctx context.Context) error {
	b.mu.Lock()
	if err := ctx.Err(); err != nil {
		b.mu.Unlock()
		return err
	}
	return nil
}

func (b *blockingBinding) Unlock() {
	b.mu.Unlock()
}

func (b *blockingBinding) Sleep(ctx context.Context, d time.Duration) error {
	b.clock.Sleep(d)
	return ctx.Err()
}

type cooperativeBinding struct {
	sem   *semaphore.Weighted
	clock clockwork.Clock
}

// NewCooperativeBinding returns a Binding whose waits select on ctx.Done.
func NewCooperativeBinding(clock clockwork.Clock) Binding {
	return &cooperativeBinding{
		sem:   semaphore.NewWeighted(1),
		clock: clock,
	}
}

func (b *cooperativeBinding) Lock(ctx context.Context) error {
	return b.sem.Acquire(ctx, 1)
}

func (b *cooperativeBinding) Unlock() {
	b.sem.Release(1)
}

func (b *cooperativeBinding) Sleep(ctx context.Context, d time.Duration) error {
	timer := b.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
