package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the lifecycle engine.
type Metrics struct {
	CitationsCreated   prometheus.Counter
	CitationsDeleted   prometheus.Counter
	StatusChanges      *prometheus.CounterVec
	PaymentsRecorded   prometheus.Counter
	PaymentsFinalized  prometheus.Counter
	PaymentsCancelled  prometheus.Counter
	PaymentsReversed   *prometheus.CounterVec
	OperationFailures  *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ReceiptCacheHits   prometheus.Counter
	ReceiptCacheMisses prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CitationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citepay_citations_created_total",
			Help: "Total number of citations created",
		}),
		CitationsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citepay_citations_deleted_total",
			Help: "Total number of citations soft-deleted",
		}),
		StatusChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citepay_citation_status_changes_total",
			Help: "Citation status changes by target status",
		}, []string{"status"}),
		PaymentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citepay_payments_recorded_total",
			Help: "Total number of payments recorded (pending print)",
		}),
		PaymentsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citepay_payments_finalized_total",
			Help: "Total number of payments finalized to completed",
		}),
		PaymentsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citepay_payments_cancelled_total",
			Help: "Total number of pending payments cancelled",
		}),
		PaymentsReversed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citepay_payments_reversed_total",
			Help: "Completed payments reversed, by outcome (voided or refunded)",
		}, []string{"outcome"}),
		OperationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citepay_operation_failures_total",
			Help: "Engine operation failures by operation and error code",
		}, []string{"operation", "code"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citepay_operation_duration_seconds",
			Help:    "Engine operation duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		ReceiptCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citepay_receipt_cache_hits_total",
			Help: "Receipt lookup cache hits",
		}),
		ReceiptCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citepay_receipt_cache_misses_total",
			Help: "Receipt lookup cache misses",
		}),
	}
}
