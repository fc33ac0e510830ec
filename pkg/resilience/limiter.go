// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
)

const (
	// DefaultMinInterval is the minimum spacing between two remote calls.
	DefaultMinInterval = 2 * time.Second
	// DefaultCooldown is the wait before the single retry of a quota failure.
	DefaultCooldown = 5 * time.Second
)

// Limiter spaces outbound calls by a minimum interval and retries a call
// exactly once, after a fixed cooldown, when it fails with a transient error.
// The last-call timestamp only advances on success.
//
// A Limiter serializes its callers. It is owned by one agent.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	cooldown    time.Duration
	lastCall    time.Time

	now     func() time.Time
	sleep   SleepFunc
	onWait  func(time.Duration)
	onRetry func(error)
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithMinInterval sets the minimum spacing between calls.
func WithMinInterval(d time.Duration) LimiterOption {
	return func(l *Limiter) {
		if d >= 0 {
			l.minInterval = d
		}
	}
}

// WithCooldown sets the wait before the retry.
func WithCooldown(d time.Duration) LimiterOption {
	return func(l *Limiter) {
		if d >= 0 {
			l.cooldown = d
		}
	}
}

// WithClock replaces the time source and the sleeper. Used by tests.
func WithClock(now func() time.Time, sleep SleepFunc) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// WithObserver registers callbacks for throttling waits and retries.
func WithObserver(onWait func(time.Duration), onRetry func(error)) LimiterOption {
	return func(l *Limiter) {
		l.onWait = onWait
		l.onRetry = onRetry
	}
}

// NewLimiter creates a Limiter with the default interval and cooldown.
func NewLimiter(opts ...LimiterOption) *Limiter {
	l := &Limiter{
		minInterval: DefaultMinInterval,
		cooldown:    DefaultCooldown,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Do runs fn under the limiter policy. When the retry also fails, the
// retry's error is returned.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastCall.IsZero() {
		if wait := l.minInterval - l.now().Sub(l.lastCall); wait > 0 {
			if l.onWait != nil {
				l.onWait(wait)
			}
			if err := l.sleep(ctx, wait); err != nil {
				return errors.New(errors.CodeTimeout, "context canceled while throttling", err)
			}
		}
	}

	rc := DefaultRetryConfig().
		WithMaxAttempts(2).
		WithConstantDelay(l.cooldown).
		WithIsRecoverable(errors.IsTransient).
		WithSleep(l.sleep).
		WithOnRetry(func(_ int, err error, _ time.Duration) {
			if l.onRetry != nil {
				l.onRetry(err)
			}
		})
	if err := rc.Do(ctx, func() error { return fn(ctx) }); err != nil {
		return err
	}
	l.lastCall = l.now()
	return nil
}

// LastCall returns the completion time of the last successful call.
func (l *Limiter) LastCall() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastCall
}

// Call runs fn through l and returns its result unchanged.
func Call[T any](ctx context.Context, l *Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := l.Do(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}
