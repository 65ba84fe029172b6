package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPage is returned when a listing response does not have the
// expected {"items": [...], "total": n} shape.
var ErrMalformedPage = errors.New("malformed page")

// PageResult is one response page of the listing API.
type PageResult struct {
	// Items in server order.
	Items []ResourceItem `json:"items"`

	// Total is the server's count for the current filter.
	Total int `json:"total"`
}

// DecodePage decodes and validates a listing response body. A missing or
// non-array "items" field is a shape error, never an empty page.
func DecodePage(data []byte) (*PageResult, error) {
	var raw struct {
		Items json.RawMessage `json:"items"`
		Total *int            `json:"total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	items := bytes.TrimSpace(raw.Items)
	if len(items) == 0 || items[0] != '[' {
		return nil, fmt.Errorf("%w: items is missing or not an array", ErrMalformedPage)
	}

	page := &PageResult{}
	if err := json.Unmarshal(items, &page.Items); err != nil {
		return nil, fmt.Errorf("%w: items: %v", ErrMalformedPage, err)
	}

	switch {
	case raw.Total == nil:
		page.Total = len(page.Items)
	case *raw.Total < 0:
		return nil, fmt.Errorf("%w: negative total %d", ErrMalformedPage, *raw.Total)
	default:
		page.Total = *raw.Total
	}

	return page, nil
}
