// Package metrics exposes Prometheus instrumentation for the team balancer.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "team_balancer"

// Metrics holds every collector the service records to
type Metrics struct {
	registry *prometheus.Registry

	teamsGenerated     prometheus.Counter
	generationDuration prometheus.Histogram
	skillSpread        prometheus.Histogram
	lockConflicts      prometheus.Counter
	alertsCreated      *prometheus.CounterVec
	alertsPurged       prometheus.Counter
	rosterEvents       *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		teamsGenerated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teams_generated_total",
			Help:      "Number of successful team generations",
		}),
		generationDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "team_generation_duration_seconds",
			Help:      "Time spent generating and persisting teams for a match",
			Buckets:   prometheus.DefBuckets,
		}),
		skillSpread: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "team_skill_spread",
			Help:      "Gap between the strongest and weakest team skill sums",
			Buckets:   []float64{0, 0.5, 1, 2, 3, 5, 8, 13},
		}),
		lockConflicts: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_conflicts_total",
			Help:      "Team generations rejected because the match was locked",
		}),
		alertsCreated: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts created, by type",
		}, []string{"type"}),
		alertsPurged: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_purged_total",
			Help:      "Alerts removed by retention purges",
		}),
		rosterEvents: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_events_total",
			Help:      "Roster events consumed, by type and outcome",
		}, []string{"type", "outcome"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "route", "status"}),
		httpDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TeamsGenerated records one successful generation
func (m *Metrics) TeamsGenerated(d time.Duration, spread float64) {
	if m == nil {
		return
	}
	m.teamsGenerated.Inc()
	m.generationDuration.Observe(d.Seconds())
	m.skillSpread.Observe(spread)
}

// LockConflict records a generation refused because of a held lock
func (m *Metrics) LockConflict() {
	if m == nil {
		return
	}
	m.lockConflicts.Inc()
}

// AlertCreated records a created alert
func (m *Metrics) AlertCreated(alertType string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(alertType).Inc()
}

// AlertsPurged records alerts removed by a purge run
func (m *Metrics) AlertsPurged(n int64) {
	if m == nil {
		return
	}
	m.alertsPurged.Add(float64(n))
}

// RosterEvent records a consumed roster event
func (m *Metrics) RosterEvent(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.rosterEvents.WithLabelValues(eventType, outcome).Inc()
}

// Middleware records request counts and latency per chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
