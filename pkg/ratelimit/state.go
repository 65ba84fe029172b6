// Package ratelimit paces outbound artifact API requests and honours
// Retry-After cooldowns announced by the server. The cooldown is shared
// across processes through Redis when a client is configured.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RedisKeyCooldown holds the JSON-encoded CooldownState.
const RedisKeyCooldown = "zoo:rate_limit:cooldown"

const (
	// DefaultCooldown applies when a 429/503 carries no usable Retry-After.
	DefaultCooldown = 5 * time.Second

	// MaxCooldown caps any server-announced cooldown.
	MaxCooldown = 5 * time.Minute
)

// CooldownState records a server-imposed pause.
type CooldownState struct {
	// Until is when requests may resume.
	Until time.Time `json:"until"`

	// StatusCode of the response that triggered the cooldown.
	StatusCode int `json:"status_code"`

	// LastUpdate is when the state was written.
	LastUpdate time.Time `json:"last_update"`
}

// Active reports whether requests must still wait.
func (s *CooldownState) Active() bool {
	return s != nil && time.Now().Before(s.Until)
}

// Remaining returns the time left in the cooldown, 0 when inactive.
func (s *CooldownState) Remaining() time.Duration {
	if s == nil {
		return 0
	}
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}

// TriggersCooldown reports whether a status code asks the client to back off.
func TriggersCooldown(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable
}

// ParseRetryAfter parses a Retry-After header given either as delay-seconds
// or as an HTTP date. The result is capped at MaxCooldown.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(value); err == nil {
		d = t.Sub(now)
		if d < 0 {
			d = 0
		}
	} else {
		return 0, false
	}

	if d > MaxCooldown {
		d = MaxCooldown
	}
	return d, true
}
