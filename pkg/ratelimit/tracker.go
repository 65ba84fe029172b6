package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zoo_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the request pacer or a server cooldown",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	rateLimitCooldownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoo_rate_limit_cooldowns_total",
		Help: "Total number of server-imposed cooldowns by status code",
	}, []string{"status"})
)

// Tracker paces requests with a token bucket and blocks them while a
// server cooldown is active.
type Tracker struct {
	limiter *rate.Limiter
	redis   *redis.Client
	logger  zerolog.Logger

	mu    sync.Mutex
	local CooldownState
}

// NewTracker creates a tracker allowing rps requests per second with the
// given burst. rps <= 0 disables pacing. redisClient may be nil, in which
// case cooldowns are tracked in-process only.
func NewTracker(rps float64, burst int, redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}

	return &Tracker{
		limiter: rate.NewLimiter(limit, burst),
		redis:   redisClient,
		logger:  logger,
	}
}

// State returns the current cooldown. Without Redis, or when Redis holds no
// state, the in-process state is returned.
func (t *Tracker) State(ctx context.Context) (*CooldownState, error) {
	t.mu.Lock()
	local := t.local
	t.mu.Unlock()

	if t.redis == nil {
		return &local, nil
	}

	data, err := t.redis.Get(ctx, RedisKeyCooldown).Bytes()
	if errors.Is(err, redis.Nil) {
		return &local, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cooldown state: %w", err)
	}

	var state CooldownState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse cooldown state: %w", err)
	}
	if local.Until.After(state.Until) {
		return &local, nil
	}
	return &state, nil
}

// Wait blocks until a request may be sent: first through any active
// cooldown, then through the token bucket.
func (t *Tracker) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	state, err := t.State(ctx)
	if err != nil {
		// shared state unavailable; fall back to the pacer alone
		t.logger.Warn().Err(err).Msg("Cooldown state unavailable")
	} else if state.Active() {
		wait := state.Remaining()
		t.logger.Warn().
			Dur("wait", wait).
			Int("status", state.StatusCode).
			Msg("Server cooldown active - delaying request")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("rate limiter: %w", ctxErr)
		}
		// burst is at least 1, so the limiter only refuses a single token
		// when the wait would outlast the context deadline
		return fmt.Errorf("rate limiter: %w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// UpdateFromResponse starts a cooldown when resp is a 429 or 503. Other
// responses are ignored.
func (t *Tracker) UpdateFromResponse(ctx context.Context, resp *http.Response) error {
	if resp == nil || !TriggersCooldown(resp.StatusCode) {
		return nil
	}

	now := time.Now()
	wait, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), now)
	if !ok {
		wait = DefaultCooldown
	}

	state := CooldownState{
		Until:      now.Add(wait),
		StatusCode: resp.StatusCode,
		LastUpdate: now,
	}

	t.mu.Lock()
	if state.Until.After(t.local.Until) {
		t.local = state
	}
	t.mu.Unlock()

	rateLimitCooldownsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
	t.logger.Warn().
		Int("status", resp.StatusCode).
		Dur("cooldown", wait).
		Time("until", state.Until).
		Msg("Server requested cooldown")

	if t.redis == nil || wait <= 0 {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cooldown state: %w", err)
	}
	if err := t.redis.Set(ctx, RedisKeyCooldown, data, wait).Err(); err != nil {
		return fmt.Errorf("store cooldown state in redis: %w", err)
	}
	return nil
}
