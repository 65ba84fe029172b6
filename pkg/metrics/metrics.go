// Package metrics exposes the Prometheus registry of the catalog service.
// Metrics are declared with promauto in the packages that record them
// (client, cache, ratelimit, pagination, browse, dashboard); this package
// lists them and serves the registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric recorded by the service.
var Names = []string{
	// pkg/client
	"zoo_requests_total",
	"zoo_request_duration_seconds",
	"zoo_errors_total",
	"zoo_retries_total",
	"zoo_retry_backoff_seconds",
	"zoo_retry_exhausted_total",

	// pkg/cache
	"zoo_cache_hits_total",
	"zoo_cache_misses_total",
	"zoo_cache_conditional_requests_total",
	"zoo_cache_not_modified_total",
	"zoo_cache_errors_total",

	// pkg/ratelimit
	"zoo_rate_limit_wait_seconds",
	"zoo_rate_limit_cooldowns_total",

	// pkg/pagination
	"zoo_pagination_pages_total",
	"zoo_pagination_items_total",
	"zoo_pagination_run_duration_seconds",
	"zoo_pagination_failures_total",

	// pkg/browse
	"zoo_browse_queries_total",

	// pkg/dashboard
	"zoo_dashboard_reloads_total",
	"zoo_dashboard_reload_duration_seconds",
	"zoo_dashboard_resources",
	"zoo_dashboard_last_success_timestamp_seconds",
}

// Example Prometheus Queries:
//
//	# Cache hit rate
//	sum(rate(zoo_cache_hits_total[5m])) /
//	(sum(rate(zoo_cache_hits_total[5m])) + sum(rate(zoo_cache_misses_total[5m])))
//
//	# Failed reloads by result
//	sum by (result) (rate(zoo_dashboard_reloads_total[1h]))
//
//	# Dashboard data age
//	time() - zoo_dashboard_last_success_timestamp_seconds
//
//	# P95 listing latency
//	histogram_quantile(0.95, rate(zoo_request_duration_seconds_bucket{route="children"}[5m]))
