// Package catalog defines the model-zoo resource types shared by the client,
// the paginator and the dashboard aggregation.
package catalog

import (
	"fmt"
	"strings"
)

// Kind is the resource-type filter dimension of the catalog.
type Kind string

const (
	// KindModel is a trained model resource.
	KindModel Kind = "model"

	// KindDataset is a dataset resource.
	KindDataset Kind = "dataset"

	// KindApplication is an application resource.
	KindApplication Kind = "application"

	// KindNotebook is a notebook resource.
	KindNotebook Kind = "notebook"
)

// AllKinds lists every kind in display order.
var AllKinds = []Kind{KindModel, KindDataset, KindApplication, KindNotebook}

// pathSegments maps plural URL path segments to kinds.
var pathSegments = map[string]Kind{
	"models":       KindModel,
	"datasets":     KindDataset,
	"applications": KindApplication,
	"notebooks":    KindNotebook,
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindModel, KindDataset, KindApplication, KindNotebook:
		return true
	default:
		return false
	}
}

// Title returns the capitalised singular label, e.g. "Model".
func (k Kind) Title() string {
	if k == "" {
		return "Resource"
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Plural returns the URL path segment for the kind, e.g. "models".
func (k Kind) Plural() string {
	return string(k) + "s"
}

// ParseKind parses a singular kind name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
	return k, nil
}

// KindFromPath maps the first segment of a browse path ("/models/...") to a
// kind. The second return value is false when the segment names no kind.
func KindFromPath(path string) (Kind, bool) {
	segment := strings.Trim(path, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	k, ok := pathSegments[strings.ToLower(segment)]
	return k, ok
}
