// Package browse serves the resource grid: one listing page at a time,
// restricted by kind, keywords and tags.
package browse

import (
	"context"
	"fmt"

	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
	"github.com/Sternrassler/modelzoo-client/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "zoo_browse_queries_total",
	Help: "Total resource grid queries by kind and result",
}, []string{"kind", "result"})

// pageLinks is the number of page links shown under the grid.
const pageLinks = 5

// Query selects one grid page. Page is 1-based.
type Query struct {
	Kind     catalog.Kind
	Page     int
	Keywords string
	Tags     []string
}

// Filter returns the listing filter of q.
func (q Query) Filter() catalog.Filter {
	return catalog.Filter{Kind: q.Kind, Keywords: q.Keywords, Tags: q.Tags}
}

// GridPage is one page of the resource grid.
type GridPage struct {
	Items      []catalog.ResourceItem `json:"items"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
	HasPrev    bool                   `json:"has_prev"`
	HasNext    bool                   `json:"has_next"`
	// PageNumbers are the direct page links, at most five starting at 1
	PageNumbers []int `json:"page_numbers"`
}

// Browser lists grid pages.
type Browser struct {
	fetcher   pagination.PageFetcher
	paginator *pagination.Paginator
	pageSize  int
	logger    zerolog.Logger
}

// New creates a browser. paginator is used by All and may share the fetcher.
func New(fetcher pagination.PageFetcher, paginator *pagination.Paginator, pageSize int) *Browser {
	if pageSize < 1 {
		pageSize = pagination.DefaultConfig().PageSize
	}
	return &Browser{
		fetcher:   fetcher,
		paginator: paginator,
		pageSize:  pageSize,
		logger:    log.With().Str("component", "browse").Logger(),
	}
}

// PageSize returns the grid page size.
func (b *Browser) PageSize() int {
	return b.pageSize
}

// Page fetches one grid page. Pages before the first are clamped to 1.
func (b *Browser) Page(ctx context.Context, q Query) (*GridPage, error) {
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, fmt.Errorf("unknown resource kind %q", q.Kind)
	}
	if q.Page < 1 {
		q.Page = 1
	}

	kindLabel := string(q.Kind)
	if kindLabel == "" {
		kindLabel = "all"
	}

	offset := (q.Page - 1) * b.pageSize
	result, err := b.fetcher.FetchPage(ctx, offset, b.pageSize, q.Filter())
	if err != nil {
		queriesTotal.WithLabelValues(kindLabel, "error").Inc()
		b.logger.Warn().Err(err).Str("kind", kindLabel).Int("page", q.Page).Msg("Grid page fetch failed")
		return nil, fmt.Errorf("fetch grid page %d: %w", q.Page, err)
	}
	if result == nil {
		queriesTotal.WithLabelValues(kindLabel, "error").Inc()
		return nil, fmt.Errorf("fetch grid page %d: %w", q.Page, pagination.ErrEmptyResponse)
	}
	queriesTotal.WithLabelValues(kindLabel, "ok").Inc()

	page := &GridPage{
		Items:      result.Items,
		Total:      result.Total,
		Page:       q.Page,
		PageSize:   b.pageSize,
		TotalPages: TotalPages(result.Total, b.pageSize),
	}
	if page.Items == nil {
		page.Items = []catalog.ResourceItem{}
	}
	page.HasPrev = page.Page > 1
	page.HasNext = page.Page < page.TotalPages
	page.PageNumbers = make([]int, 0, pageLinks)
	for i := 1; i <= min(pageLinks, page.TotalPages); i++ {
		page.PageNumbers = append(page.PageNumbers, i)
	}
	return page, nil
}

// All fetches every item matching q, ignoring q.Page.
func (b *Browser) All(ctx context.Context, q Query) ([]catalog.ResourceItem, int, error) {
	if b.paginator == nil {
		return nil, 0, fmt.Errorf("browser has no paginator")
	}
	kindLabel := string(q.Kind)
	if kindLabel == "" {
		kindLabel = "all"
	}
	items, total, err := b.paginator.FetchAll(ctx, q.Filter(), b.pageSize)
	if err != nil {
		queriesTotal.WithLabelValues(kindLabel, "error").Inc()
		return nil, 0, fmt.Errorf("fetch all %s: %w", kindLabel, err)
	}
	queriesTotal.WithLabelValues(kindLabel, "ok").Inc()
	return items, total, nil
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
