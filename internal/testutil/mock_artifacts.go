// Package testutil provides testing utilities for the artifact API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
)

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPage is one scripted listing page.
type MockPage struct {
	Items []catalog.ResourceItem
	Total int
}

// MockArtifactAPI is a configurable mock of the artifact listing API.
//
// Listing requests are answered from scripted pages when set for the
// requested kind, otherwise by slicing the items added for that kind with
// offset and limit.
type MockArtifactAPI struct {
	server     *httptest.Server
	workspace  string
	collection string

	mu        sync.RWMutex
	handlers  map[string]func(w http.ResponseWriter, r *http.Request)
	items     map[catalog.Kind][]catalog.ResourceItem
	pages     map[catalog.Kind][]MockPage
	failures  map[catalog.Kind]MockResponse
	artifacts map[string]catalog.ResourceItem
	files     map[string]string
	delay     time.Duration

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	LastQuery         map[string][]string
	kindRequests      map[catalog.Kind]int
}

// NewMockArtifactAPI creates a mock serving <workspace>/artifacts/<collection>.
func NewMockArtifactAPI(workspace, collection string) *MockArtifactAPI {
	mock := &MockArtifactAPI{
		workspace:    workspace,
		collection:   collection,
		handlers:     make(map[string]func(w http.ResponseWriter, r *http.Request)),
		items:        make(map[catalog.Kind][]catalog.ResourceItem),
		pages:        make(map[catalog.Kind][]MockPage),
		failures:     make(map[catalog.Kind]MockResponse),
		artifacts:    make(map[string]catalog.ResourceItem),
		files:        make(map[string]string),
		kindRequests: make(map[catalog.Kind]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = r.URL.Query()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		delay := mock.delay
		mock.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockArtifactAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockArtifactAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockArtifactAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = nil
	m.kindRequests = make(map[catalog.Kind]int)
}

// ChildrenPath returns the listing path.
func (m *MockArtifactAPI) ChildrenPath() string {
	return fmt.Sprintf("/%s/artifacts/%s/children", m.workspace, m.collection)
}

// ArtifactPath returns the path of a single artifact.
func (m *MockArtifactAPI) ArtifactPath(alias string) string {
	return fmt.Sprintf("/%s/artifacts/%s", m.workspace, alias)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockArtifactAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockArtifactAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, resp)
	})
}

// SetDelay delays every response.
func (m *MockArtifactAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// AddItems adds listable items of one kind. Items without an ID get one.
func (m *MockArtifactAPI) AddItems(kind catalog.Kind, items ...catalog.ResourceItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		item.Kind = kind
		if item.ID == "" {
			item.ID = fmt.Sprintf("%s/%s-%d", m.workspace, kind, len(m.items[kind])+1)
		}
		m.items[kind] = append(m.items[kind], item)
		m.artifacts[item.Alias()] = item
	}
}

// SetPages scripts the listing responses of one kind: the n-th request for
// the kind gets pages[n], later requests get an empty page.
func (m *MockArtifactAPI) SetPages(kind catalog.Kind, pages ...MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[kind] = pages
}

// FailKind makes every listing request for kind return resp.
func (m *MockArtifactAPI) FailKind(kind catalog.Kind, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind] = resp
}

// AddArtifact makes an artifact retrievable by its alias.
func (m *MockArtifactAPI) AddArtifact(item catalog.ResourceItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[item.Alias()] = item
}

// AddFile stores a file of an artifact.
func (m *MockArtifactAPI) AddFile(alias, path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[alias+"/"+strings.TrimLeft(path, "/")] = content
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockArtifactAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockArtifactAPI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// KindRequestCount returns the number of listing requests for a kind.
func (m *MockArtifactAPI) KindRequestCount(kind catalog.Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kindRequests[kind]
}

// GetLastQuery returns the query of the last request.
func (m *MockArtifactAPI) GetLastQuery() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

func (m *MockArtifactAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	prefix := "/" + m.workspace + "/artifacts/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "workspace not found", http.StatusNotFound)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case r.URL.Path == m.ChildrenPath():
		m.handleChildren(w, r)
	case strings.Contains(rest, "/files/"):
		alias, path, _ := strings.Cut(rest, "/files/")
		m.mu.RLock()
		content, ok := m.files[alias+"/"+path]
		m.mu.RUnlock()
		if !ok {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(content))
	case !strings.Contains(rest, "/"):
		m.mu.RLock()
		item, ok := m.artifacts[rest]
		m.mu.RUnlock()
		if !ok {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return
		}
		writeJSON(w, item)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type listingFilter struct {
	Type     catalog.Kind `json:"type"`
	Manifest struct {
		Tags []string `json:"tags"`
	} `json:"manifest"`
}

func (m *MockArtifactAPI) handleChildren(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	var filter listingFilter
	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			http.Error(w, "invalid filters", http.StatusBadRequest)
			return
		}
	}

	m.mu.Lock()
	n := m.kindRequests[filter.Type]
	m.kindRequests[filter.Type]++
	failure, failing := m.failures[filter.Type]
	scripted, hasPages := m.pages[filter.Type]
	var candidates []catalog.ResourceItem
	if filter.Type != "" {
		candidates = slices.Clone(m.items[filter.Type])
	} else {
		for _, kind := range catalog.AllKinds {
			candidates = append(candidates, m.items[kind]...)
		}
	}
	m.mu.Unlock()

	if failing {
		writeResponse(w, r, failure)
		return
	}

	if hasPages {
		page := MockPage{Items: []catalog.ResourceItem{}}
		if n < len(scripted) {
			page = scripted[n]
		}
		writeJSON(w, map[string]any{"items": page.Items, "total": page.Total})
		return
	}

	matched := make([]catalog.ResourceItem, 0, len(candidates))
	for _, item := range candidates {
		if matchesKeywords(item, q.Get("keywords")) && hasAllTags(item, filter.Manifest.Tags) {
			matched = append(matched, item)
		}
	}

	start := min(offset, len(matched))
	end := min(offset+limit, len(matched))
	writeJSON(w, map[string]any{"items": matched[start:end], "total": len(matched)})
}

func matchesKeywords(item catalog.ResourceItem, keywords string) bool {
	if keywords == "" {
		return true
	}
	name := strings.ToLower(item.Name())
	for _, kw := range strings.Split(keywords, ",") {
		if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func hasAllTags(item catalog.ResourceItem, tags []string) bool {
	for _, tag := range tags {
		if !slices.Contains(item.Tags(), tag) {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// MakeItems builds n items of a kind named "<prefix> <i>" with download
// counts n..1.
func MakeItems(kind catalog.Kind, prefix string, n int) []catalog.ResourceItem {
	items := make([]catalog.ResourceItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, catalog.ResourceItem{
			ID:            fmt.Sprintf("bioimage-io/%s-%s-%d", kind, strings.ToLower(prefix), i),
			Kind:          kind,
			Manifest:      &catalog.Manifest{Name: fmt.Sprintf("%s %d", prefix, i)},
			DownloadCount: catalog.Count(n - i + 1),
			LastModified:  catalog.NewTimestamp(time.Date(2024, 3, i%28+1, 12, 0, 0, 0, time.UTC)),
		})
	}
	return items
}

// NewHealthyResponse creates a 200 OK JSON response with caching headers.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"ETag":          `"test-etag-123"`,
			"Cache-Control": "max-age=300",
			"Content-Type":  "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Too many requests"}`,
		Headers: map[string]string{
			"Retry-After":  retryAfter,
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewConditionalHandler responds 304 when If-None-Match matches etag. The
// full response is immediately stale so every later request revalidates.
func NewConditionalHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
