// Package metrics exposes the service counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medtrack"

// Metrics holds every collector on a private registry so tests and
// multiple servers in one process never collide.
type Metrics struct {
	registry  *prometheus.Registry
	startTime time.Time

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter

	dosesMarked    *prometheus.CounterVec
	dosesSkipped   prometheus.Counter
	rollovers      prometheus.Counter
	ledgerEntries  prometheus.Counter
	ledgerFailures prometheus.Counter
	stockClamped   prometheus.Counter
	lowStock       prometheus.Gauge
	jobRuns        *prometheus.CounterVec
	insights       *prometheus.CounterVec

	// mirrored for the health endpoint
	requests atomic.Int64
	failures atomic.Int64
	marked   atomic.Int64
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		startTime: time.Now(),

		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the per-user rate limiter.",
		}),

		dosesMarked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "doses",
			Name:      "marked_total",
			Help:      "Dose state changes by direction.",
		}, []string{"action"}),
		dosesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "doses",
			Name:      "skipped_total",
			Help:      "Doses recorded as skipped.",
		}),
		rollovers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rollovers_total",
			Help:      "Day logs closed and flushed to the ledger.",
		}),
		ledgerEntries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rollover_entries_total",
			Help:      "Ledger entries written by day rollovers.",
		}),
		ledgerFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "write_failures_total",
			Help:      "Ledger writes that failed after live state was updated.",
		}),
		stockClamped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "clamped_total",
			Help:      "Stock adjustments clamped to the [0, total] range.",
		}),
		lowStock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "low_medications",
			Help:      "Active medications at or below the low stock threshold.",
		}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		insights: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "insights",
			Name:      "served_total",
			Help:      "Insights responses by source.",
		}, []string{"source"}),
	}
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	m.requests.Add(1)
	if status >= 500 {
		m.failures.Add(1)
	}
}

func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

func (m *Metrics) DoseMarked(taken bool) {
	action := "untaken"
	if taken {
		action = "taken"
	}
	m.dosesMarked.WithLabelValues(action).Inc()
	m.marked.Add(1)
}

func (m *Metrics) DoseSkipped() {
	m.dosesSkipped.Inc()
}

func (m *Metrics) DayRolledOver(entries int64) {
	m.rollovers.Inc()
	m.ledgerEntries.Add(float64(entries))
}

func (m *Metrics) LedgerWriteFailed() {
	m.ledgerFailures.Inc()
}

func (m *Metrics) StockClamped() {
	m.stockClamped.Inc()
}

func (m *Metrics) LowStock(count int) {
	m.lowStock.Set(float64(count))
}

// JobRun records one scheduled job execution.
func (m *Metrics) JobRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}

// InsightsServed records where an insights response came from: summarizer,
// cache or fallback.
func (m *Metrics) InsightsServed(source string) {
	m.insights.WithLabelValues(source).Inc()
}

type Snapshot struct {
	Uptime         string  `json:"uptime"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	RequestsTotal  int64   `json:"requests_total"`
	RequestsFailed int64   `json:"requests_failed"`
	DosesMarked    int64   `json:"doses_marked"`
	SuccessRate    float64 `json:"success_rate"`
}

func (m *Metrics) Snapshot() Snapshot {
	uptime := time.Since(m.startTime)
	s := Snapshot{
		Uptime:         uptime.Round(time.Second).String(),
		UptimeSeconds:  uptime.Seconds(),
		RequestsTotal:  m.requests.Load(),
		RequestsFailed: m.failures.Load(),
		DosesMarked:    m.marked.Load(),
		SuccessRate:    100,
	}
	if s.RequestsTotal > 0 {
		s.SuccessRate = float64(s.RequestsTotal-s.RequestsFailed) / float64(s.RequestsTotal) * 100
	}
	return s
}
