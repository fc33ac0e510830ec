// SPDX-License-Identifier: Apache-2.0
// Package resilience provides the retry engine, the rate-limited caller used
// for every remote model call, and fallback helpers for degraded mode.
package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (must be >= 1).
	MaxAttempts int

	// InitialDelay is the initial backoff delay.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier for exponential backoff (default 2.0). Use 1 for a constant delay.
	Multiplier float64

	// IsRecoverable determines if an error should be retried.
	// If nil, all errors are considered recoverable.
	IsRecoverable func(error) bool

	// Jitter adds randomness to backoff to prevent thundering herd.
	// Value between 0 and 1; 0.1 means ±10% jitter.
	Jitter float64

	// Sleep waits between attempts. Defaults to a timer honoring ctx.
	Sleep SleepFunc

	// OnRetry is called before each retry with the error that triggered it.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: isRecoverableDefault,
	}
}

// WithMaxAttempts returns a new config with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(max int) RetryConfig {
	rc.MaxAttempts = max
	return rc
}

// WithConstantDelay returns a new config that waits exactly d before every
// retry, without growth or jitter.
func (rc RetryConfig) WithConstantDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	rc.MaxDelay = d
	rc.Multiplier = 1
	rc.Jitter = 0
	return rc
}

// WithIsRecoverable returns a new config with IsRecoverable set.
func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

// WithSleep returns a new config with Sleep set.
func (rc RetryConfig) WithSleep(fn SleepFunc) RetryConfig {
	rc.Sleep = fn
	return rc
}

// WithOnRetry returns a new config with OnRetry set.
func (rc RetryConfig) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) RetryConfig {
	rc.OnRetry = fn
	return rc
}

// Do executes fn with retry logic, returning the last error if all attempts fail.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.IsRecoverable == nil {
		rc.IsRecoverable = isRecoverableDefault
	}
	if rc.Sleep == nil {
		rc.Sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt, rc)
			if rc.OnRetry != nil {
				rc.OnRetry(attempt, lastErr, delay)
			}
			if err := rc.Sleep(ctx, delay); err != nil {
				return errors.New(errors.CodeTimeout, "context canceled during retry", err).
					WithContext("attempt", attempt).
					WithContext("max_attempts", rc.MaxAttempts)
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !rc.IsRecoverable(err) {
			return err
		}
	}

	return lastErr
}

// calculateBackoff computes exponential backoff delay with jitter.
func calculateBackoff(attempt int, rc RetryConfig) time.Duration {
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}

	// initialDelay * multiplier^(attempt-1); the first retry waits InitialDelay.
	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(rc.Multiplier, float64(attempt-1)))

	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}

	if rc.Jitter > 0 {
		jitterRange := float64(delay) * rc.Jitter * 2 * (rand.Float64() - 0.5)
		delay = time.Duration(float64(delay) + jitterRange)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// isRecoverableDefault retries unless the error is typed as fatal or
// explicitly marked non-recoverable.
func isRecoverableDefault(err error) bool {
	if err == nil {
		return false
	}
	var te *errors.Error
	if stderrors.As(err, &te) {
		if te.Kind == errors.KindFatal {
			return false
		}
		return te.Recoverable || te.Kind == errors.KindTransient
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
