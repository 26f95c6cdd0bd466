// Package metrics exposes Prometheus counters for the progress engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

const namespace = "eduaid"

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics owns a private registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	eventsPublished *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	handlerFailures *prometheus.CounterVec

	lessons       *prometheus.CounterVec
	activities    prometheus.Counter
	activityScore prometheus.Histogram
	badges        *prometheus.CounterVec
	notifications *prometheus.CounterVec

	sweeps        prometheus.Counter
	activeSession prometheus.Gauge

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers all collectors.
// Go runtime and process collectors are included when withRuntime is true.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Metrics{
		registry: reg,
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "published_total",
			Help:      "Domain events published, by type.",
		}, []string{"event_type"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "handler_duration_seconds",
			Help:      "Event handler latency.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25},
		}, []string{"event_type"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventbus",
			Name:      "handler_failures_total",
			Help:      "Event handlers that returned an error or panicked.",
		}, []string{"event_type"}),
		lessons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "lessons_total",
			Help:      "Lesson transitions, by outcome.",
		}, []string{"outcome"}),
		activities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "activities_completed_total",
			Help:      "Activities completed.",
		}),
		activityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "activity_score_percent",
			Help:      "Distribution of activity score percentages.",
			Buckets:   []float64{10, 25, 50, 75, 90, 100},
		}),
		badges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "badges_awarded_total",
			Help:      "Badges awarded, by badge.",
		}, []string{"badge"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "added_total",
			Help:      "Notifications appended, by kind.",
		}, []string{"kind"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "sweeps_total",
			Help:      "Expiration sweeps run across all sessions.",
		}),
		activeSession: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Open learner sessions.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs, by job and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job latency.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}, []string{"job"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.eventsPublished, m.handlerDuration, m.handlerFailures,
		m.lessons, m.activities, m.activityScore, m.badges, m.notifications,
		m.sweeps, m.activeSession,
		m.jobRuns, m.jobDuration,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// ObservePublish implements messaging.Observer.
func (m *Metrics) ObservePublish(eventType shared.EventType) {
	m.eventsPublished.WithLabelValues(string(eventType)).Inc()
}

// ObserveHandler implements messaging.Observer.
func (m *Metrics) ObserveHandler(eventType shared.EventType, duration time.Duration, err error) {
	m.handlerDuration.WithLabelValues(string(eventType)).Observe(duration.Seconds())
	if err != nil {
		m.handlerFailures.WithLabelValues(string(eventType)).Inc()
	}
}

// Register subscribes the domain counters to the bus.
func (m *Metrics) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(m.HandleEvent)
}

// HandleEvent updates domain counters from one event.
func (m *Metrics) HandleEvent(event shared.Event) error {
	p := event.Payload()
	switch event.EventType() {
	case shared.EventLessonStarted:
		m.lessons.WithLabelValues("started").Inc()
	case shared.EventLessonCompleted:
		m.lessons.WithLabelValues("completed").Inc()
	case shared.EventLessonExpired:
		m.lessons.WithLabelValues("expired").Inc()
	case shared.EventActivityCompleted:
		m.activities.Inc()
		if pct, ok := number(p["percent"]); ok {
			m.activityScore.Observe(pct)
		}
	case shared.EventBadgeAwarded:
		if badge, ok := p["badge"].(string); ok {
			m.badges.WithLabelValues(badge).Inc()
		}
	case shared.EventNotificationAdded:
		if kind, ok := p["kind"].(string); ok {
			m.notifications.WithLabelValues(kind).Inc()
		}
	}
	return nil
}

// number accepts both local payloads (int) and payloads decoded from JSON (float64).
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS & HTTP
// ══════════════════════════════════════════════════════════════════════════════

// ObserveSweep counts one sweep and records the number of open sessions.
func (m *Metrics) ObserveSweep(sessions int) {
	m.sweeps.Inc()
	m.activeSession.Set(float64(sessions))
}

// SetActiveSessions records the number of open sessions.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSession.Set(float64(n))
}

// ObserveJob implements scheduler.Observer.
func (m *Metrics) ObserveJob(jobName string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.jobRuns.WithLabelValues(jobName, result).Inc()
	m.jobDuration.WithLabelValues(jobName).Observe(duration.Seconds())
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
