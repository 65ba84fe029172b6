package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrPageLimitExceeded is returned when a run needs more than MaxPages requests.
	ErrPageLimitExceeded = errors.New("page limit exceeded")

	// ErrRequestTimeout is returned when a single page request exceeds RequestTimeout.
	ErrRequestTimeout = errors.New("page request timed out")

	// ErrEmptyResponse is returned when the fetcher yields neither a page nor an error.
	ErrEmptyResponse = errors.New("fetcher returned no page")
)

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoo_pagination_pages_total",
		Help: "Total listing pages fetched by kind",
	}, []string{"kind"})

	itemsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoo_pagination_items_total",
		Help: "Total listing items fetched by kind",
	}, []string{"kind"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoo_pagination_run_duration_seconds",
		Help:    "Duration of complete pagination runs by kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoo_pagination_failures_total",
		Help: "Total failed pagination runs by kind and reason",
	}, []string{"kind", "reason"})
)

// Config holds paginator configuration.
type Config struct {
	// PageSize is used when a call passes a page size < 1
	PageSize int
	// MaxPages caps the requests of one run
	MaxPages int
	// RequestTimeout bounds every single page request
	RequestTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:       12,
		MaxPages:       500,
		RequestTimeout: 30 * time.Second,
	}
}

// PageFetcher fetches one listing page. *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, limit int, filter catalog.Filter) (*catalog.PageResult, error)
}

// Paginator runs sequential offset/limit loops.
type Paginator struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a paginator. Zero config values fall back to DefaultConfig.
func New(fetcher PageFetcher, config Config) *Paginator {
	defaults := DefaultConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}

	return &Paginator{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "paginator").Logger(),
	}
}

// Config returns the effective configuration.
func (p *Paginator) Config() Config {
	return p.config
}

// FetchAllOfKind fetches every item of one kind. total is the count
// reported by the last non-empty page.
func (p *Paginator) FetchAllOfKind(ctx context.Context, kind catalog.Kind, pageSize int) ([]catalog.ResourceItem, int, error) {
	return p.FetchAll(ctx, catalog.Filter{Kind: kind}, pageSize)
}

// FetchAll fetches every item matching filter. Keywords and tags are passed
// through to the fetcher untouched. On error no items are returned.
func (p *Paginator) FetchAll(ctx context.Context, filter catalog.Filter, pageSize int) ([]catalog.ResourceItem, int, error) {
	if pageSize < 1 {
		pageSize = p.config.PageSize
	}

	kindLabel := string(filter.Kind)
	if kindLabel == "" {
		kindLabel = "all"
	}

	start := time.Now()
	defer func() {
		runDuration.WithLabelValues(kindLabel).Observe(time.Since(start).Seconds())
	}()

	var (
		offset      int
		total       int
		accumulated []catalog.ResourceItem
	)

	for pages := 0; ; pages++ {
		if pages >= p.config.MaxPages {
			runFailures.WithLabelValues(kindLabel, "page_limit").Inc()
			p.logger.Error().
				Str("kind", kindLabel).
				Int("max_pages", p.config.MaxPages).
				Int("items", len(accumulated)).
				Msg("Page limit exceeded - aborting run")
			return nil, 0, fmt.Errorf("%w: %s listing still returning full pages after %d requests",
				ErrPageLimitExceeded, kindLabel, p.config.MaxPages)
		}

		page, err := p.fetchPage(ctx, offset, pageSize, filter)
		if err != nil {
			reason := "fetch"
			if errors.Is(err, ErrRequestTimeout) {
				reason = "timeout"
			}
			runFailures.WithLabelValues(kindLabel, reason).Inc()
			p.logger.Warn().
				Err(err).
				Str("kind", kindLabel).
				Int("offset", offset).
				Msg("Page fetch failed - aborting run")
			return nil, 0, fmt.Errorf("fetch %s page at offset %d: %w", kindLabel, offset, err)
		}
		pagesFetched.WithLabelValues(kindLabel).Inc()

		if len(page.Items) == 0 {
			break
		}

		for _, item := range page.Items {
			if filter.Kind != "" {
				item.Kind = filter.Kind
			}
			accumulated = append(accumulated, item)
		}
		itemsFetched.WithLabelValues(kindLabel).Add(float64(len(page.Items)))
		total = page.Total

		if len(page.Items) < pageSize {
			break
		}
		offset += pageSize
	}

	p.logger.Debug().
		Str("kind", kindLabel).
		Int("items", len(accumulated)).
		Int("total", total).
		Dur("duration", time.Since(start)).
		Msg("Pagination run complete")

	if accumulated == nil {
		accumulated = []catalog.ResourceItem{}
	}
	return accumulated, total, nil
}

// fetchPage issues one request under RequestTimeout.
func (p *Paginator) fetchPage(ctx context.Context, offset, limit int, filter catalog.Filter) (*catalog.PageResult, error) {
	pageCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	page, err := p.fetcher.FetchPage(pageCtx, offset, limit, filter)
	if err != nil {
		if ctx.Err() == nil && errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", ErrRequestTimeout, p.config.RequestTimeout, err)
		}
		return nil, err
	}
	if page == nil {
		return nil, ErrEmptyResponse
	}
	return page, nil
}
