package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound fetches per source.
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeboard_source_fetches_total",
			Help: "Total number of upstream source fetches (by source and result).",
		},
		[]string{"source", "result"}, // result = "ok" | "error" | "auth_expired"
	)

	// Measures duration of upstream source fetches.
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeboard_source_fetch_duration_seconds",
			Help:    "Duration of upstream source fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"source"},
	)

	// Tracks refresh cycles per job and how they ended.
	RefreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeboard_refresh_cycles_total",
			Help: "Total number of refresh cycles (by job and outcome).",
		},
		[]string{"job", "outcome"}, // outcome = "ok" | "partial" | "failed" | "coalesced"
	)

	// Reports whether the merged view is operating in degraded mode.
	DegradedMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeboard_degraded_mode",
			Help: "1 when the trade list source is substituted by geo-search results.",
		},
	)

	// Gauges the size of the merged trade view.
	MergedTrades = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeboard_merged_trades",
			Help: "Number of trades in the current merged view.",
		},
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeboard_errors_total",
			Help: "Count of engine-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful refresh time per job (seconds since epoch).
	LastRefreshTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradeboard_last_refresh_timestamp",
			Help: "Timestamp (unix seconds) of the last successful refresh per job.",
		},
		[]string{"job"},
	)
)

// ObserveDuration records the time taken since start into the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

func IncSourceFetch(source, result string) {
	SourceFetchesTotal.WithLabelValues(source, result).Inc()
}

func IncRefreshCycle(job, outcome string) {
	RefreshCyclesTotal.WithLabelValues(job, outcome).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastRefresh(job string, t time.Time) {
	LastRefreshTimestamp.WithLabelValues(job).Set(float64(t.Unix()))
}

func SetDegraded(degraded bool) {
	if degraded {
		DegradedMode.Set(1)
	} else {
		DegradedMode.Set(0)
	}
}
