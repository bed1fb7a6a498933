// Package metrics holds the Prometheus registry served on /metrics and the
// collectors the order pipeline reports to.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foodie"

// Registry is private to the app so tests and the gRPC server can add
// collectors without touching prometheus.DefaultRegisterer.
var Registry = newRegistry()

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

var factory = promauto.With(Registry)

var (
	CacheHits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache", Name: "hits_total",
		Help: "Cache reads answered from Redis.",
	}, []string{"key"})

	CacheMisses = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache", Name: "misses_total",
		Help: "Cache reads that went to the database.",
	}, []string{"key"})

	OrdersCreated = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders", Name: "created_total",
		Help: "Orders placed, by payment method.",
	}, []string{"payment_method"})

	OrdersPaid = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders", Name: "paid_total",
		Help: "Online orders whose payment was confirmed.",
	})

	// OrdersCancelled is labelled owner, admin or system.
	OrdersCancelled = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders", Name: "cancelled_total",
		Help: "Cancelled orders, by who cancelled them.",
	}, []string{"actor"})

	// StockOversell counts commits where the conditional decrement lost
	// and stock was clamped at zero instead.
	StockOversell = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders", Name: "stock_oversell_total",
		Help: "Stock commits that fell back to clamping at zero.",
	})

	Reconciled = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders", Name: "reconciled_total",
		Help: "Pending online orders handled by the reconciler, by outcome.",
	}, []string{"outcome"})

	RefundsFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "payment", Name: "refunds_failed_total",
		Help: "Refund calls that failed during cancellation.",
	})

	queueJobs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue", Name: "jobs_processed_total",
		Help: "Queue jobs finished, by type and result.",
	}, []string{"job_type", "status"})

	queueDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "queue", Name: "job_duration_seconds",
		Help:    "Time from first attempt to success or final failure.",
		Buckets: []float64{.05, .25, 1, 5, 15, 60},
	}, []string{"job_type"})
)

// Register adds a collector to Registry.
func Register(c prometheus.Collector) error { return Registry.Register(c) }

// RecordQueueJob reports a finished job; status is "success" or "failed".
func RecordQueueJob(jobType, status string, start time.Time) {
	queueJobs.WithLabelValues(jobType, status).Inc()
	queueDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          Registry,
	})
}
