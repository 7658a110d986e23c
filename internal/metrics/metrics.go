// Package metrics declares the Prometheus collectors shared by the storage
// backend and the CLI.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// QueryTotal counts query executions by query name and result.
	QueryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcechain_query_total",
		Help: "Total query executions by query and result",
	}, []string{"query", "result"})

	// QueryRows counts rows read from storage by query name.
	QueryRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcechain_query_rows_total",
		Help: "Total rows read from storage by query",
	}, []string{"query"})

	// QueryDuration tracks query latency.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sourcechain_query_duration_seconds",
		Help:    "Query duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"query"})

	// WalkRecords tracks the number of records yielded per chain walk.
	WalkRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sourcechain_walk_records",
		Help:    "Records yielded per chain walk",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
	})

	// WalkDefects counts walks that ended on a record with no previous action.
	WalkDefects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sourcechain_walk_defects_total",
		Help: "Chain walks ended by a non-genesis record without a previous action",
	})

	// CacheLookups counts record cache lookups by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcechain_cache_lookups_total",
		Help: "Record cache lookups by result",
	}, []string{"result"})

	// ActionsStored counts records newly written to storage.
	ActionsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcechain_actions_stored_total",
		Help: "Records written to storage by action type",
	}, []string{"action_type"})
)
