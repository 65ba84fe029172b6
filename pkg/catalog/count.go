package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Count is a non-negative usage counter. The artifact API stores counters
// as floats, so 7, 7.0 and 7.9 all decode to 7; negative, missing and null
// values decode to 0.
type Count int64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("count: %w", err)
	}
	switch {
	case f <= 0 || math.IsNaN(f):
		*c = 0
	case f >= math.MaxInt64:
		*c = math.MaxInt64
	default:
		*c = Count(math.Trunc(f))
	}
	return nil
}
