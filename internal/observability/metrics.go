package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	DispatchesTotal       *prometheus.CounterVec
	DispatchDuration      *prometheus.HistogramVec
	CreditOperationsTotal *prometheus.CounterVec
	ReconciledTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		DispatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatches_total",
				Help: "Per-recipient dispatch outcomes by channel",
			},
			[]string{"channel", "status"},
		),
		DispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatch_duration_seconds",
				Help:    "Duration of a full dispatch batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		CreditOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_operations_total",
				Help: "Credit ledger operations",
			},
			[]string{"operation"},
		),
		ReconciledTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_reconciled_total",
				Help: "Delivery report reconciliation outcomes",
			},
			[]string{"status"},
		),
	}
}
