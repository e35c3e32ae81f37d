// Package metrics collects ledger and HTTP telemetry with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "taskmart"

// Collector owns a registry with every taskmart collector registered on it.
type Collector struct {
	registry *prometheus.Registry

	tasksCreated     prometheus.Counter
	tasksAssigned    prometheus.Counter
	assignMisses     prometheus.Counter
	submissions      prometheus.Counter
	reviews          *prometheus.CounterVec
	credited         *prometheus.CounterVec
	withdrawals      *prometheus.CounterVec
	poolTasks        *prometheus.GaugeVec
	lastSweep        prometheus.Gauge
	eventsPublished  *prometheus.CounterVec
	httpInFlight     prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	telegramUpdates  *prometheus.CounterVec
	telegramThrottle prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.tasksCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tasks",
		Name:      "created_total",
		Help:      "Total number of tasks created.",
	})

	c.tasksAssigned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tasks",
		Name:      "assigned_total",
		Help:      "Total number of tasks handed out.",
	})

	c.assignMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tasks",
		Name:      "assign_misses_total",
		Help:      "Total number of assign calls that found no task.",
	})

	c.submissions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "submissions",
		Name:      "created_total",
		Help:      "Total number of proofs submitted.",
	})

	c.reviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submissions",
			Name:      "reviews_total",
			Help:      "Total number of submission reviews by resulting status.",
		},
		[]string{"status"},
	)

	c.credited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credited_amount_total",
			Help:      "Total amount credited to balances by entry kind.",
		},
		[]string{"kind"},
	)

	c.withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "withdrawals",
			Name:      "transitions_total",
			Help:      "Total number of withdrawals reaching a status.",
		},
		[]string{"status"},
	)

	c.poolTasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks",
			Help:      "Tasks in the pool by state at the last sweep.",
		},
		[]string{"state"},
	)

	c.lastSweep = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "last_sweep_timestamp_seconds",
		Help:      "Unix time of the last completed sweep.",
	})

	c.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of published events by type and result.",
		},
		[]string{"type", "result"},
	)

	c.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	c.telegramUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Total number of Telegram updates by kind.",
		},
		[]string{"kind"},
	)

	c.telegramThrottle = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "telegram",
		Name:      "throttled_total",
		Help:      "Total number of Telegram updates dropped by the rate limiter.",
	})

	c.registry.MustRegister(
		c.tasksCreated,
		c.tasksAssigned,
		c.assignMisses,
		c.submissions,
		c.reviews,
		c.credited,
		c.withdrawals,
		c.poolTasks,
		c.lastSweep,
		c.eventsPublished,
		c.httpInFlight,
		c.httpRequests,
		c.httpDuration,
		c.telegramUpdates,
		c.telegramThrottle,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) TaskCreated() {
	c.tasksCreated.Inc()
}

func (c *Collector) TaskAssigned() {
	c.tasksAssigned.Inc()
}

func (c *Collector) AssignMissed() {
	c.assignMisses.Inc()
}

func (c *Collector) SubmissionCreated() {
	c.submissions.Inc()
}

func (c *Collector) SubmissionReviewed(status string) {
	c.reviews.WithLabelValues(status).Inc()
}

// Credited adds amount to the credited total of the entry kind.
func (c *Collector) Credited(kind string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}

	c.credited.WithLabelValues(kind).Add(amount.InexactFloat64())
}

func (c *Collector) WithdrawalTransition(status string) {
	c.withdrawals.WithLabelValues(status).Inc()
}

// PoolSwept records the pool state observed by a sweep.
func (c *Collector) PoolSwept(open, expiredUnclaimed, held, holdElapsed int64, at time.Time) {
	c.poolTasks.WithLabelValues("open").Set(float64(open))
	c.poolTasks.WithLabelValues("expired_unclaimed").Set(float64(expiredUnclaimed))
	c.poolTasks.WithLabelValues("held").Set(float64(held))
	c.poolTasks.WithLabelValues("hold_elapsed").Set(float64(holdElapsed))
	c.lastSweep.Set(float64(at.Unix()))
}

func (c *Collector) EventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	c.eventsPublished.WithLabelValues(eventType, result).Inc()
}

func (c *Collector) TelegramUpdate(kind string) {
	c.telegramUpdates.WithLabelValues(kind).Inc()
}

func (c *Collector) TelegramThrottled() {
	c.telegramThrottle.Inc()
}

// InstrumentHandler wraps next with HTTP metrics collection. Paths are
// labelled by their chi route pattern to keep cardinality bounded.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)

			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		method := strings.ToUpper(r.Method)

		c.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
