// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Ingestion
	TradesIngested  prometheus.Counter
	PoolInitsSeen   prometheus.Counter
	IngestErrors    *prometheus.CounterVec
	EventLagSeconds prometheus.Histogram

	// Gap filler
	GapfillProcessed    prometheus.Counter
	GapfillSynthesized  prometheus.Counter
	GapfillPriceFetched prometheus.Counter
	GapfillSkipped      prometheus.Counter
	GapfillFailed       prometheus.Counter

	// Signal cascade
	SignalsDetected   prometheus.Counter
	SignalsNotified   prometheus.Counter
	SignalsRejected   *prometheus.CounterVec
	DetectionDuration prometheus.Histogram

	// External providers
	ProviderRequests *prometheus.CounterVec
	QuotaRejections  *prometheus.CounterVec

	// Retention
	RowsDeleted *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered on
// the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dexpulse"
	}

	return &Metrics{
		TradesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "trades_total",
			Help:      "Total number of swap trade events ingested",
		}),
		PoolInitsSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pool_inits_total",
			Help:      "Total number of pool initialization events observed",
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Ingestion errors by stage",
		}, []string{"stage"}),
		EventLagSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "event_lag_seconds",
			Help:      "Delay between on-chain event time and processing time",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		GapfillProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gapfill",
			Name:      "processed_total",
			Help:      "Tokens examined by the gap filler",
		}),
		GapfillSynthesized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gapfill",
			Name:      "synthesized_total",
			Help:      "Zero-volume candles synthesized",
		}),
		GapfillPriceFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gapfill",
			Name:      "price_fetched_total",
			Help:      "Fill prices resolved via the external reference source",
		}),
		GapfillSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gapfill",
			Name:      "skipped_total",
			Help:      "Tokens skipped because no positive fill price was found",
		}),
		GapfillFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gapfill",
			Name:      "failed_total",
			Help:      "Tokens that hit an error during gap filling",
		}),

		SignalsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "detected_total",
			Help:      "Signals created by the detection stage",
		}),
		SignalsNotified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "notified_total",
			Help:      "Signals delivered and marked notified",
		}),
		SignalsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "rejected_total",
			Help:      "Stage B rejections by reason",
		}, []string{"reason"}),
		DetectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "detection_seconds",
			Help:      "Duration of one Stage A sweep",
			Buckets:   prometheus.DefBuckets,
		}),

		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Attempted provider requests by provider and result",
		}, []string{"provider", "result"}),
		QuotaRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "quota_rejections_total",
			Help:      "Requests rejected locally by the daily quota",
		}, []string{"provider"}),

		RowsDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "rows_deleted_total",
			Help:      "Rows removed by retention cleanup, by table",
		}, []string{"table"}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
