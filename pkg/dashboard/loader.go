// Package dashboard runs the reload cycle behind the dashboard: one
// pagination run per resource kind in parallel, a join, the aggregation and
// the publication of the result into an explicit State.
package dashboard

import (
	"context"
	"time"

	"github.com/Sternrassler/modelzoo-client/pkg/aggregate"
	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoo_dashboard_reloads_total",
		Help: "Total dashboard reloads by result",
	}, []string{"result"})

	reloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zoo_dashboard_reload_duration_seconds",
		Help:    "Duration of dashboard reloads in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	resourcesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zoo_dashboard_resources",
		Help: "Resources per kind after the last successful reload",
	}, []string{"kind"})

	lastSuccessGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zoo_dashboard_last_success_timestamp_seconds",
		Help: "Unix time of the last successful dashboard reload",
	})
)

// KindFetcher fetches every item of one kind. *pagination.Paginator
// implements it.
type KindFetcher interface {
	FetchAllOfKind(ctx context.Context, kind catalog.Kind, pageSize int) ([]catalog.ResourceItem, int, error)
}

// Config holds loader configuration.
type Config struct {
	// PageSize is shared read-only by all runs of a reload
	PageSize int

	// Scope and TopLimit of the popularity ranking
	Scope    aggregate.TopScope
	TopLimit int
}

// Loader performs reloads into a State.
type Loader struct {
	fetcher KindFetcher
	state   *State
	config  Config
	logger  zerolog.Logger
	now     func() time.Time
}

// NewLoader creates a loader. A nil state gets a fresh one.
func NewLoader(fetcher KindFetcher, state *State, config Config) *Loader {
	if state == nil {
		state = NewState()
	}
	return &Loader{
		fetcher: fetcher,
		state:   state,
		config:  config,
		logger:  log.With().Str("component", "dashboard").Logger(),
		now:     time.Now,
	}
}

// State returns the state the loader writes to.
func (l *Loader) State() *State {
	return l.state
}

// Snapshot returns a copy of the current state.
func (l *Loader) Snapshot() Snapshot {
	return l.state.Snapshot()
}

type kindResult struct {
	items []catalog.ResourceItem
	total int
}

// Reload fetches all kinds concurrently, aggregates and publishes the
// result. The first failing kind cancels the others; the returned error is
// then a *Failure and the snapshot keeps the previous data marked stale.
// A reload requested while another runs fails with ErrReloadInProgress
// without touching the state.
func (l *Loader) Reload(ctx context.Context) (Snapshot, error) {
	reloadID := uuid.NewString()
	start := l.now()
	if err := l.state.begin(reloadID, start); err != nil {
		reloadsTotal.WithLabelValues("rejected").Inc()
		return l.state.Snapshot(), err
	}

	logger := l.logger.With().Str("reload_id", reloadID).Logger()
	logger.Info().Int("page_size", l.config.PageSize).Msg("Dashboard reload started")

	// one slot per kind; each goroutine owns its slot
	results := make([]kindResult, len(catalog.AllKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range catalog.AllKinds {
		i, kind := i, kind
		g.Go(func() error {
			items, total, err := l.fetcher.FetchAllOfKind(gctx, kind, l.config.PageSize)
			if err != nil {
				return NewFailure(kind, err)
			}
			results[i] = kindResult{items: items, total: total}
			logger.Debug().
				Str("kind", string(kind)).
				Int("items", len(items)).
				Int("total", total).
				Msg("Kind fetched")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		failure := NewFailure("", err)
		if ctx.Err() != nil && failure.Kind != FailureCanceled {
			failure = NewFailure(failure.Resource, ctx.Err())
		}
		snap := l.state.fail(failure, l.now())

		reloadsTotal.WithLabelValues("failed").Inc()
		reloadDuration.Observe(time.Since(start).Seconds())
		logger.Error().
			Err(err).
			Str("failure", string(failure.Kind)).
			Str("resource", string(failure.Resource)).
			Bool("stale", snap.Stale).
			Msg("Dashboard reload failed")
		return snap, failure
	}

	itemsByKind := make(map[catalog.Kind][]catalog.ResourceItem, len(catalog.AllKinds))
	totals := make(map[catalog.Kind]int, len(catalog.AllKinds))
	for i, kind := range catalog.AllKinds {
		itemsByKind[kind] = results[i].items
		totals[kind] = results[i].total
	}

	counts := aggregate.Aggregate(itemsByKind, aggregate.Options{
		Scope: l.config.Scope,
		Limit: l.config.TopLimit,
	})
	snap := l.state.succeed(itemsByKind, totals, counts, l.now())

	for kind, n := range counts.PerKind {
		resourcesGauge.WithLabelValues(string(kind)).Set(float64(n))
	}
	lastSuccessGauge.Set(float64(snap.LastSuccess.Unix()))
	reloadsTotal.WithLabelValues("ready").Inc()
	reloadDuration.Observe(time.Since(start).Seconds())

	logger.Info().
		Int("grand_total", counts.GrandTotal).
		Int("top", len(counts.Top)).
		Dur("duration", time.Since(start)).
		Msg("Dashboard reload complete")

	return snap, nil
}
