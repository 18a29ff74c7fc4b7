// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_writes_total",
			Help: "Total number of draft write-backs by entity kind and result",
		},
		[]string{"entity", "result"},
	)

	SyncWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sync_write_duration_seconds",
			Help: "Duration of draft write-backs in seconds",
		},
		[]string{"entity"},
	)

	SyncPendingDrafts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_pending_drafts",
			Help: "Number of drafts with a scheduled or retrying write",
		},
	)

	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractions_total",
			Help: "Total number of listing extractions by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of visit reminders by channel and result",
		},
		[]string{"channel", "result"},
	)
)
