package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agent_ledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	subscriptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_ledger",
			Subsystem: "ledger",
			Name:      "subscriptions_total",
			Help:      "Subscriptions attempted, by plan and outcome.",
		},
		[]string{"plan", "outcome"},
	)

	entries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_ledger",
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries written, by type.",
		},
		[]string{"type"},
	)

	entryAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_ledger",
			Subsystem: "ledger",
			Name:      "entry_amount_total",
			Help:      "Sum of absolute ledger entry amounts across tokens, by type.",
		},
		[]string{"type"},
	)

	withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_ledger",
			Subsystem: "ledger",
			Name:      "withdrawals_total",
			Help:      "Withdrawals attempted, by outcome.",
		},
		[]string{"outcome"},
	)

	overdrafts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agent_ledger",
			Subsystem: "ledger",
			Name:      "overdrafts_total",
			Help:      "Withdrawal lines that left a holding negative.",
		},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agent_ledger",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs, by job and outcome.",
		},
		[]string{"job", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agent_ledger",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduled job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"job"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		subscriptions,
		entries,
		entryAmount,
		withdrawals,
		overdrafts,
		jobRuns,
		jobDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordSubscription counts a subscription attempt.
func RecordSubscription(plan, outcome string) {
	subscriptions.WithLabelValues(plan, outcome).Inc()
}

// RecordEntry counts a committed ledger entry.
func RecordEntry(entryType string, amount decimal.Decimal) {
	entries.WithLabelValues(entryType).Inc()
	entryAmount.WithLabelValues(entryType).Add(amount.Abs().InexactFloat64())
}

// RecordWithdrawal counts a withdrawal attempt.
func RecordWithdrawal(outcome string) {
	withdrawals.WithLabelValues(outcome).Inc()
}

// RecordOverdraft counts a holding driven below zero.
func RecordOverdraft() {
	overdrafts.Inc()
}

// RecordJobRun records one scheduled job execution.
func RecordJobRun(job string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	jobRuns.WithLabelValues(job, outcome).Inc()
	jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}
