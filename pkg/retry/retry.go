package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"spacetrack/pkg/config"
	errs "spacetrack/pkg/errors"
	"spacetrack/pkg/logger"
)

// Operation is one attempt of something that might need retrying
type Operation func(ctx context.Context) error

// OperationWithResult is an attempt that also produces a value
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff is used for errors ByErrorType does not cover
	Backoff BackoffStrategy
	// ByErrorType picks a strategy from the typed error, when set
	ByErrorType *ErrorTypeBackoff
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Clock drives the waits between attempts
	Clock  clockwork.Clock
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		ByErrorType: NewErrorTypeBackoff(),
		RetryIf:     DefaultRetryIf,
		Clock:       clockwork.NewRealClock(),
		Logger:      logger.GetLogger(),
	}
}

// FromConfig builds a retry configuration from the retry config section.
func FromConfig(rc config.RetryConfig, log logger.Logger) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = rc.MaxAttempts
	switch strings.ToLower(rc.Strategy) {
	case "linear":
		cfg.Backoff = &LinearBackoff{
			BaseDelay:    rc.InitialDelay,
			MaxDelay:     rc.MaxDelay,
			Increment:    rc.InitialDelay,
			JitterFactor: 0.1,
		}
	case "constant":
		cfg.Backoff = &ConstantBackoff{Delay: rc.InitialDelay}
	default:
		cfg.Backoff = &ExponentialBackoff{
			BaseDelay:    rc.InitialDelay,
			MaxDelay:     rc.MaxDelay,
			Multiplier:   rc.Multiplier,
			JitterFactor: 0.1,
		}
	}
	cfg.ByErrorType.DefaultBackoff = cfg.Backoff
	cfg.Logger = log
	return cfg
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	// Unknown errors are retried
	return true
}

func (c *Config) delayFor(attempt int, err error) time.Duration {
	var apiErr *errs.Error
	if c.ByErrorType != nil && errors.As(err, &apiErr) {
		return c.ByErrorType.ForType(apiErr.Type).NextDelay(attempt)
	}
	return c.Backoff.NextDelay(attempt)
}

// Do executes op until it succeeds, fails with a non-retryable error, runs
// out of attempts or ctx is done.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			log.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		delay := cfg.delayFor(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})

		if err := WaitClock(ctx, clock, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, err
}
