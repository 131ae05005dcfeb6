package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"spacetrack/pkg/config"
	errs "spacetrack/pkg/errors"
	"spacetrack/pkg/logger"
)

func quickConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Logger:      logger.NewNopLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		d := backoff.NextDelay(2)
		assert.InDelta(t, float64(200*time.Millisecond), float64(d), float64(60*time.Millisecond))
		delays[d] = true
	}
	assert.Greater(t, len(delays), 1)
}

func TestLinearBackoff(t *testing.T) {
	backoff := &LinearBackoff{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  500 * time.Millisecond,
		Increment: 100 * time.Millisecond,
	}

	assert.Equal(t, 100*time.Millisecond, backoff.NextDelay(1))
	assert.Equal(t, 300*time.Millisecond, backoff.NextDelay(3))
	assert.Equal(t, 500*time.Millisecond, backoff.NextDelay(9))
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, quickConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	cause := errors.New("persistent error")
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return cause
	}, quickConfig(3))

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, 3, attempts)
}

func TestRetryDoesNotWaitAfterLastAttempt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := quickConfig(2)
	cfg.Clock = clock
	cfg.Backoff = &ConstantBackoff{Delay: 300 * time.Millisecond}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("x")
		}, cfg)
	}()

	// only the wait between the two attempts
	clock.BlockUntil(1)
	clock.Advance(300 * time.Millisecond)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retry attempts (2) exceeded")
	case <-time.After(2 * time.Second):
		t.Fatal("retry waited after the final attempt")
	}
	assert.Equal(t, 2, attempts)
}

func TestRetryWithNonRetryableError(t *testing.T) {
	cfg := quickConfig(5)
	cfg.RetryIf = DefaultRetryIf

	attempts := 0
	authErr := errs.New(errs.ErrorTypeAuth, 401, "login rejected")
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return authErr
	}, cfg)

	assert.Same(t, authErr, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := quickConfig(5)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("error")
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetryUsesErrorTypeBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var delays []time.Duration

	cfg := quickConfig(2)
	cfg.Clock = clock
	cfg.ByErrorType = &ErrorTypeBackoff{
		NetworkErrorBackoff: &ConstantBackoff{Delay: time.Second},
		RateLimitBackoff:    &ConstantBackoff{Delay: time.Minute},
		ServerErrorBackoff:  &ConstantBackoff{Delay: 5 * time.Second},
		DefaultBackoff:      &ConstantBackoff{Delay: 2 * time.Second},
	}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	done := make(chan error, 1)
	go func() {
		done <- Do(context.Background(), func(ctx context.Context) error {
			return errs.New(errs.ErrorTypeRateLimit, 429, "slow down")
		}, cfg)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not finish")
	}
	assert.Equal(t, []time.Duration{time.Minute}, delays)
}

func TestErrorTypeBackoffForType(t *testing.T) {
	etb := NewErrorTypeBackoff()

	network, ok := etb.ForType(errs.ErrorTypeNetwork).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Second, network.BaseDelay)

	rateLimit, ok := etb.ForType(errs.ErrorTypeRateLimit).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, rateLimit.BaseDelay)

	assert.Same(t, etb.DefaultBackoff, etb.ForType(errs.ErrorTypeParsing))
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.EntityNotSupported("x")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeServerError, 503, "down")))
	assert.True(t, DefaultRetryIf(errors.New("mystery")))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   3,
	}, logger.NewNopLogger())

	assert.Equal(t, 4, cfg.MaxAttempts)
	backoff, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 200*time.Millisecond, backoff.BaseDelay)
	assert.Equal(t, 3.0, backoff.Multiplier)
	assert.Same(t, cfg.Backoff, cfg.ByErrorType.DefaultBackoff)
}

func TestFromConfigStrategies(t *testing.T) {
	rc := config.RetryConfig{
		MaxAttempts:  2,
		Strategy:     "linear",
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}
	linear, ok := FromConfig(rc, logger.NewNopLogger()).Backoff.(*LinearBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Second, linear.BaseDelay)
	assert.Equal(t, time.Second, linear.Increment)

	rc.Strategy = "Constant"
	constant, ok := FromConfig(rc, logger.NewNopLogger()).Backoff.(*ConstantBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Second, constant.NextDelay(5))
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}, quickConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}

func TestWaitClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	done := make(chan error, 1)
	go func() { done <- WaitClock(context.Background(), clock, time.Second) }()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	require.NoError(t, <-done)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
