// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
)

// fakeClock advances only when sleep is called.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithSleep(noSleep)
	err := config.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return stderrors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithMaxAttempts(2).WithSleep(noSleep)
	err := config.Do(context.Background(), func() error {
		attempts++
		return stderrors.New("always fails")
	})

	if err == nil {
		t.Errorf("expected error after max attempts")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryNonRecoverable(t *testing.T) {
	attempts := 0
	config := DefaultRetryConfig().WithIsRecoverable(func(err error) bool {
		return false
	})
	err := config.Do(context.Background(), func() error {
		attempts++
		return stderrors.New("non-recoverable error")
	})

	if err == nil {
		t.Errorf("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryFatalKindNotRetried(t *testing.T) {
	attempts := 0
	err := DefaultRetryConfig().WithSleep(noSleep).Do(context.Background(), func() error {
		attempts++
		return errors.New(errors.CodeInvalidInput, "bad", nil)
	})
	if err == nil || attempts != 1 {
		t.Errorf("expected a single attempt for a fatal error, got %d (%v)", attempts, err)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig().WithConstantDelay(time.Second)

	attempts := 0
	err := config.Do(ctx, func() error {
		attempts++
		cancel()
		return stderrors.New("transient error")
	})

	if !errors.IsCode(err, errors.CodeTimeout) {
		t.Errorf("expected timeout error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestCalculateBackoff(t *testing.T) {
	rc := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, rc); got != tt.want {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, got, tt.want)
		}
	}

	constant := DefaultRetryConfig().WithConstantDelay(5 * time.Second)
	for attempt := 1; attempt <= 4; attempt++ {
		if got := calculateBackoff(attempt, constant); got != 5*time.Second {
			t.Errorf("attempt %d: expected a constant 5s delay, got %v", attempt, got)
		}
	}
}

func TestLimiterSpacesCalls(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(WithClock(clock.now, clock.sleep))
	ok := func(context.Context) error { return nil }

	if err := l.Do(context.Background(), ok); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("first call should not wait, slept %v", clock.sleeps)
	}

	clock.t = clock.t.Add(500 * time.Millisecond)
	if err := l.Do(context.Background(), ok); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 1500*time.Millisecond {
		t.Errorf("expected a 1.5s wait, got %v", clock.sleeps)
	}

	clock.t = clock.t.Add(3 * time.Second)
	if err := l.Do(context.Background(), ok); err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Errorf("expected no wait after the interval elapsed, got %v", clock.sleeps)
	}
}

func TestLimiterRetriesQuotaOnce(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantSleep []time.Duration
		wantErr   string
	}{
		{
			name:      "429 then success",
			errs:      []error{stderrors.New("Error 429: too many requests"), nil},
			wantCalls: 2,
			wantSleep: []time.Duration{5 * time.Second},
		},
		{
			name:      "quota twice propagates retry error",
			errs:      []error{stderrors.New("quota exceeded"), stderrors.New("second failure: rate limited")},
			wantCalls: 2,
			wantSleep: []time.Duration{5 * time.Second},
			wantErr:   "second failure: rate limited",
		},
		{
			name:      "other errors propagate immediately",
			errs:      []error{stderrors.New("connection refused")},
			wantCalls: 1,
			wantErr:   "connection refused",
		},
		{
			name:      "typed rate limit",
			errs:      []error{errors.New(errors.CodeRateLimit, "slow down", nil), nil},
			wantCalls: 2,
			wantSleep: []time.Duration{5 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			retries := 0
			l := NewLimiter(WithClock(clock.now, clock.sleep), WithObserver(nil, func(error) { retries++ }))

			calls := 0
			err := l.Do(context.Background(), func(context.Context) error {
				err := tt.errs[calls]
				calls++
				return err
			})

			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
			if len(clock.sleeps) != len(tt.wantSleep) {
				t.Fatalf("expected sleeps %v, got %v", tt.wantSleep, clock.sleeps)
			}
			for i := range tt.wantSleep {
				if clock.sleeps[i] != tt.wantSleep[i] {
					t.Errorf("sleep %d: got %v, want %v", i, clock.sleeps[i], tt.wantSleep[i])
				}
			}
			if retries != len(tt.wantSleep) {
				t.Errorf("expected %d retry notifications, got %d", len(tt.wantSleep), retries)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if l.LastCall().IsZero() {
					t.Error("expected last call to be recorded on success")
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %v", tt.wantErr, err)
			}
			if !l.LastCall().IsZero() {
				t.Error("last call must not advance on failure")
			}
		})
	}
}

func TestCallReturnsResult(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(WithClock(clock.now, clock.sleep))
	got, err := Call(context.Background(), l, func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %d (%v)", got, err)
	}
}

func TestLimiterContextCanceledWhileThrottling(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(WithClock(clock.now, clock.sleep))
	if err := l.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := l.Do(ctx, func(context.Context) error { called = true; return nil })
	if err == nil || called {
		t.Errorf("expected canceled call to abort before running, err=%v called=%v", err, called)
	}
}

func TestWithFallback(t *testing.T) {
	primary := func(context.Context) (string, error) { return "", stderrors.New("down") }
	chain := ChainedFallback[string]{Fallbacks: []FallbackStrategy[string]{
		FallbackFunc[string](func(_ context.Context, err error) (string, error) { return "", err }),
		StaticFallback[string]{Value: "static"},
	}}

	got, err := WithFallback(context.Background(), primary, FallbackStrategy[string](chain))
	if err != nil || got != "static" {
		t.Errorf("expected static fallback, got %q (%v)", got, err)
	}

	ok := func(context.Context) (string, error) { return "primary", nil }
	got, _ = WithFallback(context.Background(), ok, FallbackStrategy[string](chain))
	if got != "primary" {
		t.Errorf("expected primary value, got %q", got)
	}
}

func TestDegradation(t *testing.T) {
	d := &Degradation{MaxErrors: 2}
	if d.Status() != "operational" {
		t.Fatalf("expected operational at start")
	}
	d.Record(stderrors.New("a"))
	if d.Status() != "operational" {
		t.Errorf("expected operational after one failure")
	}
	d.Record(stderrors.New("b"))
	if d.Status() != "degraded" || d.LastError() == nil {
		t.Errorf("expected degraded after two failures")
	}
	d.Record(nil)
	if !d.IsOperational() || d.LastError() != nil {
		t.Errorf("expected success to reset the count")
	}
}
