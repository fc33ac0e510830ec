// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"sync"
)

// FallbackStrategy produces a substitute value when the primary operation fails.
type FallbackStrategy[T any] interface {
	Execute(ctx context.Context, primaryErr error) (T, error)
}

// FallbackFunc wraps a function as a FallbackStrategy.
type FallbackFunc[T any] func(ctx context.Context, primaryErr error) (T, error)

// Execute implements FallbackStrategy.
func (f FallbackFunc[T]) Execute(ctx context.Context, err error) (T, error) {
	return f(ctx, err)
}

// StaticFallback returns a fixed value on failure.
type StaticFallback[T any] struct {
	Value T
}

// Execute implements FallbackStrategy.
func (s StaticFallback[T]) Execute(context.Context, error) (T, error) {
	return s.Value, nil
}

// ChainedFallback tries multiple fallbacks in sequence.
type ChainedFallback[T any] struct {
	Fallbacks []FallbackStrategy[T]
}

// Execute implements FallbackStrategy.
func (c ChainedFallback[T]) Execute(ctx context.Context, primaryErr error) (T, error) {
	var zero T
	lastErr := primaryErr
	for _, fallback := range c.Fallbacks {
		value, err := fallback.Execute(ctx, lastErr)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// WithFallback executes fn, and on error, uses the fallback strategy.
func WithFallback[T any](ctx context.Context, fn func(ctx context.Context) (T, error), fallback FallbackStrategy[T]) (T, error) {
	value, err := fn(ctx)
	if err == nil || fallback == nil {
		return value, err
	}
	return fallback.Execute(ctx, err)
}

// Degradation tracks consecutive failures of a dependency and reports it as
// degraded once MaxErrors is reached. A success resets the count.
type Degradation struct {
	MaxErrors int

	mu      sync.Mutex
	count   int
	lastErr error
}

// Record updates the failure count from the outcome of one call.
func (d *Degradation) Record(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		d.count = 0
		d.lastErr = nil
		return
	}
	d.count++
	d.lastErr = err
}

// IsOperational returns true while the failure count is below MaxErrors.
func (d *Degradation) IsOperational() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	max := d.MaxErrors
	if max <= 0 {
		max = 1
	}
	return d.count < max
}

// Status returns "operational" or "degraded".
func (d *Degradation) Status() string {
	if d.IsOperational() {
		return "operational"
	}
	return "degraded"
}

// LastError returns the most recent failure, if the dependency is failing.
func (d *Degradation) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}
