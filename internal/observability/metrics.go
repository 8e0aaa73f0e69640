package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deepagent"

type moduleMetrics struct {
	sessionsTotal      *prometheus.CounterVec
	sessionsActive     prometheus.Gauge
	sessionDuration    prometheus.Histogram
	phaseDuration      *prometheus.HistogramVec
	generationFailures *prometheus.CounterVec
	qualityScore       prometheus.Histogram
	iterations         prometheus.Histogram
	httpRequestsTotal  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			sessionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "sessions_total",
					Help:      "Total agent sessions by final status.",
				},
				[]string{"status"},
			),
			sessionsActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "sessions_active",
					Help:      "Sessions currently running.",
				},
			),
			sessionDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "session_duration_seconds",
					Help:      "Wall time of a full session in seconds.",
					Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
				},
			),
			phaseDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "phase_duration_seconds",
					Help:      "Duration of a single phase transition in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"phase"},
			),
			generationFailures: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "generation_failures_total",
					Help:      "Generation failures absorbed by a fallback, by phase.",
				},
				[]string{"phase"},
			),
			qualityScore: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "quality_score",
					Help:      "Final quality score per session.",
					Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
				},
			),
			iterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "iterations",
					Help:      "Planning cycles per session.",
					Buckets:   prometheus.LinearBuckets(1, 1, 10),
				},
			),
			httpRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "http_requests_total",
					Help:      "Gateway requests by route and status code.",
				},
				[]string{"route", "status"},
			),
		}

		prometheus.MustRegister(
			m.sessionsTotal,
			m.sessionsActive,
			m.sessionDuration,
			m.phaseDuration,
			m.generationFailures,
			m.qualityScore,
			m.iterations,
			m.httpRequestsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SessionStarted() {
	getMetrics().sessionsActive.Inc()
}

// RecordSessionEnd closes out a session started with SessionStarted
func RecordSessionEnd(status string, duration time.Duration, iterations int, score float64) {
	m := getMetrics()
	m.sessionsActive.Dec()
	m.sessionsTotal.WithLabelValues(status).Inc()
	m.sessionDuration.Observe(duration.Seconds())
	if status == "success" {
		m.qualityScore.Observe(score)
		m.iterations.Observe(float64(iterations))
	}
}

func RecordPhase(phase string, duration time.Duration) {
	getMetrics().phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

func RecordGenerationFailure(phase string) {
	getMetrics().generationFailures.WithLabelValues(phase).Inc()
}

func RecordHTTPRequest(route string, status int) {
	getMetrics().httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
