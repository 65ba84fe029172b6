// Package client provides the artifact API HTTP client used to list and
// inspect model-zoo resources, with request pacing, response caching,
// retries and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/modelzoo-client/pkg/cache"
	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
	"github.com/Sternrassler/modelzoo-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for artifact API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoo_requests_total",
		Help: "Total artifact API requests by route and status",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoo_request_duration_seconds",
		Help:    "Artifact API request duration in seconds by route",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoo_errors_total",
		Help: "Total artifact API errors by class",
	}, []string{"class"})
)

// maxErrorBody bounds how much of an error response is kept in APIError.
const maxErrorBody = 512

// Client talks to the artifact API.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the artifact server, e.g. "https://hypha.aicell.io"
	BaseURL string

	// Workspace owning the collection, e.g. "bioimage-io"
	Workspace string

	// Collection whose children are listed, e.g. "bioimage.io"
	Collection string

	// User-Agent header sent with every request
	UserAgent string

	// Timeout for a single HTTP exchange
	Timeout time.Duration

	// Redis enables the response cache and the shared cooldown state (optional)
	Redis *redis.Client

	// CacheTTL is the freshness of responses without caching headers
	CacheTTL time.Duration

	// Pacing; RateLimit <= 0 disables it
	RateLimit float64
	RateBurst int

	Retry RetryConfig
}

// DefaultConfig returns the configuration for the public bioimage.io collection.
func DefaultConfig(redisClient *redis.Client, userAgent string) Config {
	return Config{
		BaseURL:    "https://hypha.aicell.io",
		Workspace:  "bioimage-io",
		Collection: "bioimage.io",
		UserAgent:  userAgent,
		Timeout:    30 * time.Second,
		Redis:      redisClient,
		CacheTTL:   cache.DefaultTTL,
		RateLimit:  10,
		RateBurst:  4,
		Retry:      DefaultRetryConfig(),
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	logger := log.With().Str("component", "artifact-client").Logger()

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     base,
		rateLimiter: ratelimit.NewTracker(cfg.RateLimit, cfg.RateBurst, cfg.Redis, logger),
		config:      cfg,
		logger:      logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, 0)
	}

	return c, nil
}

// Do performs a request with pacing, caching, retries and error
// classification. Any status >= 400 is returned as an *APIError; on success
// the caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	route := routeLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(route).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Cache lookup (GET only)
	var (
		cacheKey    cache.Key
		cachedEntry *cache.Entry
	)
	if c.cache != nil && req.Method == http.MethodGet {
		cacheKey = cache.KeyFromURL(req.URL)
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("route", route).Msg("Cache get error")
		}
		if entry != nil {
			if !entry.IsExpired() {
				cache.CacheHits.WithLabelValues("fresh").Inc()
				requestsTotal.WithLabelValues(route, "cache").Inc()
				return cache.EntryToResponse(entry, req), nil
			}
			if entry.CanRevalidate() {
				cachedEntry = entry
				cache.AddConditionalHeaders(req, entry)
				cache.ConditionalRequestsSent.Inc()
				c.logger.Debug().
					Str("route", route).
					Str("etag", entry.ETag).
					Msg("Making conditional request")
			}
		}
	}

	c.logger.Debug().
		Str("route", route).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Executing artifact API request")

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() (ErrorClass, error) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return Classify(err), err
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req.Clone(ctx))
		if reqErr != nil {
			errClass := Classify(reqErr)
			c.logger.Error().Err(reqErr).Str("route", route).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(route, "network_error").Inc()
			resp = nil
			return errClass, reqErr
		}

		if err := c.rateLimiter.UpdateFromResponse(ctx, resp); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record server cooldown")
		}

		requestsTotal.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusNotModified || resp.StatusCode < 400 {
			return "", nil
		}

		status := resp.StatusCode
		errClass := classifyStatus(status)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		resp = nil

		c.logger.Warn().
			Str("route", route).
			Int("status", status).
			Str("error_class", string(errClass)).
			Msg("Artifact API request error")

		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(status)
		}
		return errClass, &APIError{
			StatusCode: status,
			ErrorClass: errClass,
			Message:    message,
		}
	})
	if retryErr != nil {
		return nil, retryErr
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		if cachedEntry == nil {
			return nil, shapeError(http.StatusNotModified, "304 Not Modified without a cached entry", errors.New("no cached entry"))
		}
		cache.NotModifiedResponses.Inc()
		cache.CacheHits.WithLabelValues("revalidated").Inc()
		newExpires := cache.ExpiresFrom(resp.Header, c.config.CacheTTL)
		if err := c.cache.Refresh(ctx, cacheKey, cachedEntry, newExpires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		c.logger.Debug().Str("route", route).Msg("304 Not Modified - using cache")
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	if c.cache != nil && req.Method == http.MethodGet && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// Get performs a GET request against an absolute URL.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// getBody performs a GET and reads the whole body.
func (c *Client) getBody(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}
	return body, nil
}

// ChildrenURL builds the listing URL for one page.
func (c *Client) ChildrenURL(offset, limit int, filter catalog.Filter) string {
	q := url.Values{}
	q.Set("pagination", "true")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("stage", "false")
	if filters := filter.FiltersJSON(); filters != "" {
		q.Set("filters", filters)
	}
	if keywords := filter.KeywordsParam(); keywords != "" {
		q.Set("keywords", keywords)
	}

	return c.artifactURL(c.config.Workspace, c.config.Collection, "children") + "?" + q.Encode()
}

// ListChildren fetches one page of the collection's children. A body that
// is not {"items": [...], "total": n} yields an ErrorClassShape APIError.
func (c *Client) ListChildren(ctx context.Context, offset, limit int, filter catalog.Filter) (*catalog.PageResult, error) {
	if offset < 0 || limit < 1 {
		return nil, fmt.Errorf("invalid page window offset=%d limit=%d", offset, limit)
	}

	body, err := c.getBody(ctx, c.ChildrenURL(offset, limit, filter))
	if err != nil {
		return nil, err
	}

	page, err := catalog.DecodePage(body)
	if err != nil {
		return nil, shapeError(http.StatusOK, "unexpected listing response", err)
	}
	return page, nil
}

// FetchPage adapts ListChildren to the paginator's page fetcher.
func (c *Client) FetchPage(ctx context.Context, offset, limit int, filter catalog.Filter) (*catalog.PageResult, error) {
	return c.ListChildren(ctx, offset, limit, filter)
}

// GetArtifact fetches one artifact. version "" or "latest" selects the
// latest version.
func (c *Client) GetArtifact(ctx context.Context, id, version string) (*catalog.ResourceItem, error) {
	aid := c.resolveID(id)
	if aid.Alias == "" {
		return nil, fmt.Errorf("artifact id is required")
	}

	rawURL := c.artifactURL(aid.Workspace, aid.Alias)
	if version != "" && version != "latest" {
		rawURL += "?" + url.Values{"version": []string{version}}.Encode()
	}

	body, err := c.getBody(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	var item catalog.ResourceItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, shapeError(http.StatusOK, "unexpected artifact response", err)
	}
	if item.ID == "" {
		return nil, shapeError(http.StatusOK, "unexpected artifact response", errors.New("artifact has no id"))
	}
	return &item, nil
}

// GetFile downloads a file stored with an artifact (documentation, rdf.yaml).
func (c *Client) GetFile(ctx context.Context, id, path string) ([]byte, error) {
	fileURL := c.FileURL(id, path)
	if fileURL == "" {
		return nil, fmt.Errorf("file path is required")
	}
	return c.getBody(ctx, fileURL)
}

// FileURL resolves path against the artifact's file store. Absolute http(s)
// URLs are returned unchanged.
func (c *Client) FileURL(id, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return path
	}

	aid := c.resolveID(id)
	path = strings.TrimPrefix(strings.TrimLeft(path, "/"), "./")
	return c.artifactURL(aid.Workspace, aid.Alias, "files", path)
}

// DownloadURL returns the zip download URL of an artifact.
func (c *Client) DownloadURL(id, version string) string {
	aid := c.resolveID(id)
	rawURL := c.artifactURL(aid.Workspace, aid.Alias, "create-zip-file")
	if version != "" && version != "latest" {
		rawURL += "?" + url.Values{"version": []string{version}}.Encode()
	}
	return rawURL
}

// artifactURL joins <base>/<workspace>/artifacts/<segments...>. The last
// segment may contain "/" (file paths); each part is escaped separately.
func (c *Client) artifactURL(workspace string, segments ...string) string {
	parts := []string{c.baseURL.String(), url.PathEscape(workspace), "artifacts"}
	for _, s := range segments {
		for _, p := range strings.Split(s, "/") {
			parts = append(parts, url.PathEscape(p))
		}
	}
	return strings.Join(parts, "/")
}

func (c *Client) resolveID(id string) catalog.ArtifactID {
	aid := catalog.SplitID(strings.Trim(id, "/"))
	if aid.Workspace == "" {
		aid.Workspace = c.config.Workspace
	}
	return aid
}

// routeLabel keeps metric cardinality bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasSuffix(path, "/children"):
		return "children"
	case strings.Contains(path, "/files/"):
		return "file"
	case strings.HasSuffix(path, "/create-zip-file"):
		return "download"
	default:
		return "artifact"
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}
