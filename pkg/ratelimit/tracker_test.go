package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newLocalTracker(rps float64, burst int) *Tracker {
	return NewTracker(rps, burst, nil, zerolog.Nop())
}

func TestTracker_WaitUnlimited(t *testing.T) {
	tracker := newLocalTracker(0, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := tracker.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("unlimited tracker took %v for 100 waits", elapsed)
	}
}

func TestTracker_WaitPaces(t *testing.T) {
	// 20 rps, burst 1: the third request is released ~100ms after the first
	tracker := newLocalTracker(20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := tracker.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 paced waits took %v, want >= ~100ms", elapsed)
	}
}

func TestTracker_UpdateFromResponse(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantActive bool
		wantMin    time.Duration
	}{
		{name: "ok response", status: http.StatusOK, wantActive: false},
		{name: "server error", status: http.StatusInternalServerError, wantActive: false},
		{name: "429 with retry-after", status: http.StatusTooManyRequests, retryAfter: "2", wantActive: true, wantMin: 1500 * time.Millisecond},
		{name: "503 without retry-after", status: http.StatusServiceUnavailable, wantActive: true, wantMin: DefaultCooldown - time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newLocalTracker(0, 0)
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			if tt.retryAfter != "" {
				resp.Header.Set("Retry-After", tt.retryAfter)
			}

			if err := tracker.UpdateFromResponse(context.Background(), resp); err != nil {
				t.Fatalf("UpdateFromResponse() error = %v", err)
			}

			state, err := tracker.State(context.Background())
			if err != nil {
				t.Fatalf("State() error = %v", err)
			}
			if state.Active() != tt.wantActive {
				t.Fatalf("Active() = %v, want %v", state.Active(), tt.wantActive)
			}
			if tt.wantActive && state.Remaining() < tt.wantMin {
				t.Errorf("Remaining() = %v, want >= %v", state.Remaining(), tt.wantMin)
			}
			if tt.wantActive && state.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", state.StatusCode, tt.status)
			}
		})
	}
}

func TestTracker_UpdateFromResponse_KeepsLongestCooldown(t *testing.T) {
	tracker := newLocalTracker(0, 0)
	ctx := context.Background()

	long := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"60"}}}
	short := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"1"}}}

	_ = tracker.UpdateFromResponse(ctx, long)
	_ = tracker.UpdateFromResponse(ctx, short)

	state, _ := tracker.State(ctx)
	if state.Remaining() < 50*time.Second {
		t.Errorf("shorter cooldown overwrote longer one: remaining %v", state.Remaining())
	}
}

func TestTracker_WaitHonoursCooldownAndContext(t *testing.T) {
	tracker := newLocalTracker(0, 0)
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"30"}}}
	_ = tracker.UpdateFromResponse(context.Background(), resp)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tracker.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTracker_UpdateFromResponse_Nil(t *testing.T) {
	tracker := newLocalTracker(0, 0)
	if err := tracker.UpdateFromResponse(context.Background(), nil); err != nil {
		t.Errorf("UpdateFromResponse(nil) error = %v", err)
	}
}

func TestTracker_WaitDeadlineTooShortForPacer(t *testing.T) {
	// one token per 10s: the second request cannot be released within 50ms
	tracker := newLocalTracker(0.1, 1)
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tracker.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("Wait() took %v, want an immediate refusal", elapsed)
	}
}

func TestTracker_WaitCanceledDuringPacer(t *testing.T) {
	tracker := newLocalTracker(0.1, 1)
	_ = tracker.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}
