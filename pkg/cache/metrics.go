package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness state ("fresh", "revalidated")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoo_cache_hits_total",
			Help: "Total number of artifact API cache hits",
		},
		[]string{"state"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoo_cache_misses_total",
			Help: "Total number of artifact API cache misses",
		},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match / If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoo_cache_conditional_requests_total",
			Help: "Total number of conditional requests sent to revalidate cache entries",
		},
	)

	// NotModifiedResponses tracks 304 responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoo_cache_not_modified_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoo_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
