package adsb

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestRetryWithBackoff tests basic retry logic.
func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failures     int
		wantErr      bool
		wantAttempts int
	}{
		{name: "Success on first attempt", maxRetries: 3, failures: 0, wantAttempts: 1},
		{name: "Success after retries", maxRetries: 3, failures: 2, wantAttempts: 3},
		{name: "Max retries exceeded", maxRetries: 3, failures: 10, wantErr: true, wantAttempts: 4},
		{name: "Zero retries", maxRetries: 0, failures: 10, wantErr: true, wantAttempts: 1},
		{name: "Unlimited retries until success", maxRetries: -1, failures: 6, wantAttempts: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := RetryWithBackoff(context.Background(), fastRetry(tt.maxRetries), func() error {
				attempts++
				if attempts <= tt.failures {
					return errors.New("temporary error")
				}
				return nil
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got: %v", tt.wantErr, err)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("Expected %d attempts, got %d", tt.wantAttempts, attempts)
			}
		})
	}
}

// TestRetryCancellation tests that a cancelled context stops the retry loop.
func TestRetryCancellation(t *testing.T) {
	t.Run("Already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attempts := 0
		cfg := DefaultRetryConfig()
		err := RetryWithBackoff(ctx, cfg, func() error {
			attempts++
			return errors.New("error")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Unlimited retries stop on timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := RetryWithBackoff(ctx, fastRetry(-1), func() error {
			return errors.New("still down")
		})

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline error, got: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("Expected quick timeout, took %v", elapsed)
		}
	})
}

// TestRetryPermanent tests that permanent errors short-circuit retries.
func TestRetryPermanent(t *testing.T) {
	cause := errors.New("bad credentials")
	attempts := 0

	err := RetryWithBackoff(context.Background(), fastRetry(5), func() error {
		attempts++
		return Permanent(cause)
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, cause) || !errors.Is(err, ErrPermanent) {
		t.Errorf("Expected permanent error wrapping cause, got: %v", err)
	}
}

// TestRetryOnRetryHook tests that the hook sees every failed attempt.
func TestRetryOnRetryHook(t *testing.T) {
	var seen []int
	var delays []time.Duration

	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
		delays = append(delays, delay)
	}

	calls := 0
	_ = RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("Expected retries [1 2], got %v", seen)
	}
	if len(delays) == 2 && delays[1] != 2*delays[0] {
		t.Errorf("Expected doubling delays, got %v", delays)
	}
}

// TestRetryDelay tests exponential growth and the max delay cap.
func TestRetryDelay(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
	}

	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := cfg.Delay(attempt); got != expected {
			t.Errorf("Delay(%d): expected %v, got %v", attempt, expected, got)
		}
	}

	if got := cfg.Delay(200); got != cfg.MaxDelay {
		t.Errorf("Expected overflowed delay capped at %v, got %v", cfg.MaxDelay, got)
	}
}

// TestRetryWithBackoffResult tests retry with result return.
func TestRetryWithBackoffResult(t *testing.T) {
	t.Run("Success with result", func(t *testing.T) {
		attempts := 0
		result, err := RetryWithBackoffResult(context.Background(), fastRetry(3), func() (string, error) {
			attempts++
			if attempts < 2 {
				return "", errors.New("temporary error")
			}
			return "success", nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if result != "success" {
			t.Errorf("Expected result 'success', got %s", result)
		}
	})

	t.Run("Rate limit uses Retry-After", func(t *testing.T) {
		cfg := fastRetry(1)
		cfg.RespectRetryAfter = true
		var waited time.Duration
		cfg.OnRetry = func(_ int, _ error, delay time.Duration) { waited = delay }

		_, _ = RetryWithBackoffResult(context.Background(), cfg, func() (int, error) {
			return 0, &RateLimitError{StatusCode: 429, RetryAfter: 15 * time.Millisecond, Message: "slow down"}
		})

		if waited != 15*time.Millisecond {
			t.Errorf("Expected Retry-After delay 15ms, got %v", waited)
		}
	})
}

// TestDefaultRetryConfig tests default configuration.
func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != time.Second {
		t.Errorf("Expected InitialDelay 1s, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 60*time.Second {
		t.Errorf("Expected MaxDelay 60s, got %v", cfg.MaxDelay)
	}
	if ReconnectConfig().MaxRetries >= 0 {
		t.Error("Expected ReconnectConfig to retry forever")
	}
}
