package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// millisThreshold separates second-based from millisecond-based epochs.
// 1e12 seconds is far beyond any plausible modification date.
const millisThreshold = 1e12

// DateLayout is the calendar-date format used for display.
const DateLayout = "2006-01-02"

// Timestamp is a point in time as reported by the artifact API. The API
// reports epoch seconds, but ISO-8601 strings and epoch milliseconds are
// accepted too.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("timestamp string: %w", err)
		}
		if s == "" {
			ts.Time = time.Time{}
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", DateLayout} {
			if t, err := time.Parse(layout, s); err == nil {
				ts.Time = t
				return nil
			}
		}
		return fmt.Errorf("unrecognised timestamp %q", s)
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("timestamp number: %w", err)
	}
	ts.Time = fromEpoch(f)
	return nil
}

// MarshalJSON implements json.Marshaler. Zero timestamps encode as null.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339))
}

// Date returns the UTC calendar date (YYYY-MM-DD), or "" when unset.
func (ts Timestamp) Date() string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(DateLayout)
}

func fromEpoch(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	if math.Abs(f) >= millisThreshold {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
