package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		RetryAfterMax:       20 * time.Millisecond,
	}
}

func TestExecuteRetryBehaviour(t *testing.T) {
	errFlaky := errors.New("flaky")

	tests := []struct {
		name         string
		class        ErrorClassification
		failUntil    int
		wantAttempts int
		wantErr      bool
	}{
		{name: "transient recovers", class: Transient, failUntil: 2, wantAttempts: 3},
		{name: "transient exhausts attempts", class: Transient, failUntil: 10, wantAttempts: 3, wantErr: true},
		{name: "permanent stops at once", class: Permanent, failUntil: 10, wantAttempts: 1, wantErr: true},
		{name: "ignored stops at once", class: Ignored, failUntil: 10, wantAttempts: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(fastConfig())
			attempts := 0
			err := exec.Execute(context.Background(), "embed", func(context.Context) error {
				attempts++
				if attempts <= tt.failUntil {
					return errFlaky
				}
				return nil
			}, func(error) ErrorClassification { return tt.class })

			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errFlaky) {
				t.Fatalf("Execute() error = %v, want %v", err, errFlaky)
			}
			if attempts != tt.wantAttempts {
				t.Fatalf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
		})
	}
}

func TestExecuteHonoursRetryAfterHint(t *testing.T) {
	exec := NewExecutor(fastConfig())
	throttled := &HTTPStatusError{
		Provider:   "openai",
		Operation:  "embeddings",
		StatusCode: http.StatusTooManyRequests,
		Status:     "429 Too Many Requests",
		RetryAfter: 15 * time.Millisecond,
	}

	attempts := 0
	start := time.Now()
	err := exec.Execute(context.Background(), "embed", func(context.Context) error {
		attempts++
		if attempts == 1 {
			return throttled
		}
		return nil
	}, ClassifyUpstreamError)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("elapsed = %v, want at least the Retry-After hint", elapsed)
	}
}

func TestExecuteCapsRetryAfterHint(t *testing.T) {
	exec := NewExecutor(fastConfig())
	err := &HTTPStatusError{StatusCode: http.StatusServiceUnavailable, RetryAfter: time.Hour}

	wait := exec.waitFor(err, newBackoff(exec.cfg))
	if wait != 20*time.Millisecond {
		t.Fatalf("waitFor() = %v, want RetryAfterMax", wait)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	exec := NewExecutor(cfg)

	errDown := errors.New("upstream down")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "embed", func(context.Context) error {
			return errDown
		}, func(error) ErrorClassification { return Permanent })
		if !errors.Is(err, errDown) {
			t.Fatalf("Execute() iteration %d error = %v", i, err)
		}
	}
	if got := exec.BreakerState("embed"); got != "open" {
		t.Fatalf("BreakerState() = %q, want open", got)
	}

	err := exec.Execute(context.Background(), "embed", func(context.Context) error {
		t.Fatalf("operation must not run while the circuit is open")
		return nil
	}, nil)
	if !IsCircuitOpen(err) {
		t.Fatalf("Execute() error = %v, want open circuit", err)
	}
	if got := exec.BreakerState("other"); got != "closed" {
		t.Fatalf("BreakerState(other) = %q, want closed", got)
	}
}

func TestExecuteDoesNotRecordIgnoredFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 1
	cfg.BreakerFailureRatio = 0.1
	exec := NewExecutor(cfg)

	for i := 0; i < 5; i++ {
		_ = exec.Execute(context.Background(), "embed", func(context.Context) error {
			return context.Canceled
		}, ClassifyUpstreamError)
	}
	if got := exec.BreakerState("embed"); got != "closed" {
		t.Fatalf("BreakerState() = %q, want closed", got)
	}
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryInitialBackoff = time.Second
	cfg.RetryMaxBackoff = time.Second
	exec := NewExecutor(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errFlaky := errors.New("flaky")
	attempts := 0
	err := exec.Execute(ctx, "embed", func(context.Context) error {
		attempts++
		cancel()
		return errFlaky
	}, func(error) ErrorClassification { return Transient })
	if !errors.Is(err, errFlaky) {
		t.Fatalf("Execute() error = %v, want last attempt error", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestExecuteRejectsNilCallback(t *testing.T) {
	if err := NewExecutor(Config{}).Execute(context.Background(), "op", nil, nil); err == nil {
		t.Fatalf("Execute() error = nil, want error")
	}
}

func TestBackoffGrowsToCap(t *testing.T) {
	b := newBackoff(Config{RetryInitialBackoff: 10 * time.Millisecond, RetryMaxBackoff: 25 * time.Millisecond, RetryMultiplier: 2})
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("Next() #%d = %v, want %v", i, got, w)
		}
	}
}
