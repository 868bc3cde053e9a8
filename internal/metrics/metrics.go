package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline stage latency (seconds)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holiday_stage_duration_seconds",
			Help:    "Duration of each search pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
		},
		[]string{"stage", "status"},
	)

	// Offers per processor step
	OffersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_offers_total",
			Help: "Offers seen by the processor, by outcome",
		},
		[]string{"outcome"}, // received, unpriced, duplicate, filtered, ranked
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_source_failures_total",
			Help: "Offer source failures, recovered or fatal",
		},
		[]string{"source", "fatal"},
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_tasks_total",
			Help: "Search tasks by terminal status",
		},
		[]string{"status"},
	)

	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holiday_tasks_in_flight",
			Help: "Search tasks currently running",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_notifications_total",
			Help: "Completion notifications by notifier and result",
		},
		[]string{"notifier", "status"},
	)

	// HTTP request latency (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

func RecordStage(stage, status string, d time.Duration) {
	StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func AddOffers(outcome string, n int) {
	if n > 0 {
		OffersProcessed.WithLabelValues(outcome).Add(float64(n))
	}
}

func IncrementSourceFailure(source string, fatal bool) {
	f := "false"
	if fatal {
		f = "true"
	}
	SourceFailures.WithLabelValues(source, f).Inc()
}

func IncrementTask(status string) {
	TasksTotal.WithLabelValues(status).Inc()
}

func IncrementNotification(notifier, status string) {
	NotificationsTotal.WithLabelValues(notifier, status).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
