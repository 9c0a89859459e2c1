// Package metrics defines the Prometheus collectors of the ingest pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons used as the "reason" label of RecordsSkipped.
const (
	ReasonBlank     = "blank"
	ReasonParse     = "parse_error"
	ReasonNormalize = "normalize_error"
	ReasonFiltered  = "filtered"
	ReasonDropped   = "dropped"
)

var (
	LinesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ns_ingest_lines_read_total",
			Help: "Total number of lines read from the source",
		},
	)

	RecordsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ns_ingest_records_inserted_total",
			Help: "Total number of canonical records appended to a transaction",
		},
	)

	RecordsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ns_ingest_records_committed_total",
			Help: "Total number of records in committed batches",
		},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ns_ingest_records_skipped_total",
			Help: "Total number of lines not stored, by reason",
		},
		[]string{"reason"},
	)

	UnknownNames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ns_ingest_unknown_names_total",
			Help: "Total number of protocol or ethertype names resolved to the unknown sentinel",
		},
		[]string{"kind"},
	)

	Commits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ns_ingest_commits_total",
			Help: "Total number of committed transactions",
		},
	)

	CommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ns_ingest_commit_duration_seconds",
			Help:    "Duration of transaction commits in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ns_ingest_store_errors_total",
			Help: "Total number of store operations that failed, by operation",
		},
		[]string{"op"},
	)
)
