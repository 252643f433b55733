package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workGroupCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldops",
		Subsystem: "workgroup_cache",
		Name:      "requests_total",
		Help:      "Total number of WorkGroup store lookups broken down by hit/miss/create.",
	}, []string{"result"})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldops",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Rows handled by report and outcome.",
	}, []string{"report", "outcome"})

	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldops",
		Subsystem: "import",
		Name:      "status_changes_total",
		Help:      "DataImport status transitions by report and status.",
	}, []string{"report", "status"})

	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldops",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time of finished imports.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"report", "status"})

	upsertRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldops",
		Subsystem: "upsert",
		Name:      "race_retries_total",
		Help:      "Employee upserts retried after losing an insert race.",
	})

	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldops",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of write conflicts broken down by kind.",
	}, []string{"kind"})
)

func recordCacheRequest(result string) {
	workGroupCacheRequests.WithLabelValues(result).Inc()
}

func recordRow(report, outcome string) {
	rowsTotal.WithLabelValues(report, outcome).Inc()
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	writeConflicts.WithLabelValues(kind).Inc()
}

func observeImport(report, status string, started time.Time) {
	importDuration.WithLabelValues(report, status).Observe(time.Since(started).Seconds())
}
