package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwatch_rows_ingested_total",
			Help: "Total measurement rows successfully persisted",
		},
	)

	IngestFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_ingest_failures_total",
			Help: "Total rejected ingestion submissions",
		},
		[]string{"reason"},
	)

	AlertsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airwatch_alerts_published_total",
			Help: "Total alert measurements published to the alert topic",
		},
	)

	FTPFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airwatch_ftp_fetches_total",
			Help: "Total FTP drop fetch attempts",
		},
		[]string{"status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
