package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meraki_activity_runs_total",
			Help: "Total number of poll runs by outcome",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meraki_activity_run_duration_seconds",
			Help:    "Duration of poll runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	LastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meraki_activity_last_success_timestamp_seconds",
			Help: "Unix time of the last successful poll run",
		},
	)

	// Fetch metrics
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meraki_activity_pages_total",
			Help: "Total number of non-empty event pages fetched",
		},
		[]string{"product_type"},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meraki_activity_events_total",
			Help: "Total number of events fetched",
		},
		[]string{"product_type"},
	)

	PairsTruncated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meraki_activity_pairs_truncated_total",
			Help: "Total number of event logs cut short by the page limit",
		},
		[]string{"product_type"},
	)

	// Delivery metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meraki_activity_batches_total",
			Help: "Total number of sink batches by outcome",
		},
		[]string{"status"},
	)

	RecordsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meraki_activity_records_rejected_total",
			Help: "Total number of records the sink refused",
		},
	)

	// Watermark metrics
	WatermarkAdvanced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meraki_activity_watermark_advanced_total",
			Help: "Total number of times the watermark was moved forward",
		},
	)

	WatermarkHeld = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meraki_activity_watermark_held_total",
			Help: "Total number of runs that relayed events but kept the watermark because a page limit was hit",
		},
	)
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)
