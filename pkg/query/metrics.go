package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queriesTotal counts executed queries by type and outcome
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coderef_query_total",
		Help: "Total queries by type and outcome",
	}, []string{"type", "outcome"})

	// queryDuration tracks uncached query latency
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coderef_query_duration_seconds",
		Help:    "Uncached query duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"type"})

	// cacheLookups counts result cache hits and misses
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coderef_query_cache_lookups_total",
		Help: "Query result cache lookups by result",
	}, []string{"result"})
)
