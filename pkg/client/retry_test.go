package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want 10s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfig_ForClass(t *testing.T) {
	base := DefaultRetryConfig()

	tests := []struct {
		name            string
		errorClass      ErrorClass
		expectedInitial time.Duration
		expectedMax     time.Duration
	}{
		{name: "server error keeps base", errorClass: ErrorClassServer, expectedInitial: 500 * time.Millisecond, expectedMax: 10 * time.Second},
		{name: "network error keeps base", errorClass: ErrorClassNetwork, expectedInitial: 500 * time.Millisecond, expectedMax: 10 * time.Second},
		{name: "rate limit stretches", errorClass: ErrorClassRateLimit, expectedInitial: 2 * time.Second, expectedMax: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base.forClass(tt.errorClass)
			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxBackoff != tt.expectedMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.expectedMax)
			}
		})
	}
}

func TestRetryConfig_Normalized(t *testing.T) {
	config := RetryConfig{MaxAttempts: 0, InitialBackoff: time.Second, MaxBackoff: 0, BackoffMultiplier: 0.5}.normalized()

	if config.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", config.MaxAttempts)
	}
	if config.BackoffMultiplier != 1 {
		t.Errorf("BackoffMultiplier = %v, want 1", config.BackoffMultiplier)
	}
	if config.MaxBackoff != time.Second {
		t.Errorf("MaxBackoff = %v, want 1s", config.MaxBackoff)
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	base := fastRetry()

	tests := []struct {
		name       string
		errorClass ErrorClass
		attempt    int
		want       time.Duration
	}{
		{name: "first network retry", errorClass: ErrorClassNetwork, attempt: 1, want: 20 * time.Millisecond},
		{name: "second network retry", errorClass: ErrorClassNetwork, attempt: 2, want: 40 * time.Millisecond},
		{name: "network capped", errorClass: ErrorClassNetwork, attempt: 5, want: 100 * time.Millisecond},
		{name: "first rate limit retry", errorClass: ErrorClassRateLimit, attempt: 1, want: 80 * time.Millisecond},
		{name: "rate limit after a network error", errorClass: ErrorClassRateLimit, attempt: 2, want: 160 * time.Millisecond},
		{name: "rate limit capped", errorClass: ErrorClassRateLimit, attempt: 4, want: 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.backoff(tt.errorClass, tt.attempt); got != tt.want {
				t.Errorf("backoff(%s, %d) = %v, want %v", tt.errorClass, tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryWithBackoff_ClassChangeUsesRateLimitBackoff(t *testing.T) {
	classes := []ErrorClass{ErrorClassNetwork, ErrorClassRateLimit}
	var calls []time.Time
	err := retryWithBackoff(context.Background(), fastRetry(), zerolog.Nop(), func() (ErrorClass, error) {
		calls = append(calls, time.Now())
		if len(calls) <= len(classes) {
			return classes[len(calls)-1], errors.New("transient")
		}
		return "", nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("Expected 3 calls, got %d", len(calls))
	}
	// rate limit on attempt 2: 80ms * 2 = 160ms, -20% jitter at worst
	if gap := calls[2].Sub(calls[1]); gap < 120*time.Millisecond {
		t.Errorf("Backoff after rate limit = %v, want >= ~128ms", gap)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(), zerolog.Nop(), func() (ErrorClass, error) {
		callCount++
		return "", nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	start := time.Now()
	err := retryWithBackoff(context.Background(), fastRetry(), zerolog.Nop(), func() (ErrorClass, error) {
		callCount++
		if callCount < 3 {
			return ErrorClassServer, errors.New("temporary error")
		}
		return "", nil
	})
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
	// 20ms + 40ms, each -20% at worst
	if duration < 45*time.Millisecond {
		t.Errorf("Expected some backoff delay, got %v", duration)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	testErr := errors.New("persistent error")
	err := retryWithBackoff(context.Background(), fastRetry(), zerolog.Nop(), func() (ErrorClass, error) {
		callCount++
		return ErrorClassNetwork, testErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected last error in chain, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_NonRetriableClasses(t *testing.T) {
	for _, class := range []ErrorClass{ErrorClassClient, ErrorClassShape, ErrorClassTimeout, ErrorClassCanceled} {
		t.Run(string(class), func(t *testing.T) {
			callCount := 0
			testErr := errors.New("fatal")
			err := retryWithBackoff(context.Background(), fastRetry(), zerolog.Nop(), func() (ErrorClass, error) {
				callCount++
				return class, testErr
			})

			if callCount != 1 {
				t.Errorf("Expected 1 call, got %d", callCount)
			}
			if errors.Is(err, ErrRetryExhausted) {
				t.Error("Should not return ErrRetryExhausted when no retry was attempted")
			}
			if !errors.Is(err, testErr) {
				t.Errorf("Expected original error, got %v", err)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := fastRetry()
	config.InitialBackoff = 5 * time.Second
	config.MaxBackoff = 5 * time.Second

	callCount := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := retryWithBackoff(ctx, config, zerolog.Nop(), func() (ErrorClass, error) {
		callCount++
		return ErrorClassServer, errors.New("error")
	})

	if !errors.Is(err, ErrContextCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("Expected ErrContextCancelled wrapping context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestRetryWithBackoff_ContextAlreadyDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	callCount := 0
	testErr := errors.New("error")
	err := retryWithBackoff(ctx, fastRetry(), zerolog.Nop(), func() (ErrorClass, error) {
		callCount++
		return ErrorClassServer, testErr
	})

	if callCount != 1 {
		t.Errorf("Expected exactly 1 call, got %d", callCount)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	var timestamps []time.Time
	_ = retryWithBackoff(context.Background(), fastRetry(), zerolog.Nop(), func() (ErrorClass, error) {
		timestamps = append(timestamps, time.Now())
		return ErrorClassServer, errors.New("error")
	})

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	firstDelay := timestamps[1].Sub(timestamps[0])
	secondDelay := timestamps[2].Sub(timestamps[1])

	// 20ms and 40ms with ±20% jitter
	if firstDelay < 16*time.Millisecond {
		t.Errorf("First retry delay %v below jitter range", firstDelay)
	}
	if secondDelay < 32*time.Millisecond {
		t.Errorf("Second retry delay %v below jitter range", secondDelay)
	}
}

func TestRetryWithBackoff_RateLimitLongerBackoff(t *testing.T) {
	var timestamps []time.Time
	config := fastRetry()
	config.MaxAttempts = 2

	_ = retryWithBackoff(context.Background(), config, zerolog.Nop(), func() (ErrorClass, error) {
		timestamps = append(timestamps, time.Now())
		return ErrorClassRateLimit, errors.New("rate limit error")
	})

	if len(timestamps) != 2 {
		t.Fatalf("Expected 2 timestamps, got %d", len(timestamps))
	}

	// 4 x 20ms with -20% jitter at worst
	if delay := timestamps[1].Sub(timestamps[0]); delay < 64*time.Millisecond {
		t.Errorf("Rate limit retry delay %v, want >= 64ms", delay)
	}
}
