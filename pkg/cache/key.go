package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "zoo:cache"

// Key identifies a cached response.
type Key struct {
	// Endpoint is the request path, e.g. "/bioimage-io/artifacts/bioimage.io/children"
	Endpoint string

	// Query holds the request query parameters
	Query url.Values
}

// String generates a deterministic key.
// Format: zoo:cache:<endpoint>:<name>=<value>[,<value>]...
//
// Example:
//
//	zoo:cache:bioimage-io/artifacts/bioimage.io/children:limit=12:offset=0
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+"="+strings.Join(k.Query[name], ","))
	}

	return strings.Join(parts, ":")
}

// KeyFromURL builds the key for a request URL.
func KeyFromURL(u *url.URL) Key {
	return Key{Endpoint: u.Path, Query: u.Query()}
}
