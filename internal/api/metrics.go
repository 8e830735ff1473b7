package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry            *prometheus.Registry
	requestTotal        *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	rateLimitRejected   *prometheus.CounterVec
	separationsTotal    *prometheus.CounterVec
	separationDuration  *prometheus.HistogramVec
	separationsInFlight prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsplit_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxsplit_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsplit_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		separationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxsplit_separations_total",
			Help: "Total separation requests by final status.",
		}, []string{"status"}),
		separationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxsplit_separation_duration_seconds",
			Help:    "End-to-end duration of one separation, including queueing on the engine semaphore.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"status"}),
		separationsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voxsplit_separations_in_flight",
			Help: "Separation requests currently being handled.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.separationsTotal,
		m.separationDuration,
		m.separationsInFlight,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.Method, r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(method, path string) string {
	switch {
	case strings.HasPrefix(path, "/separate"):
		return "/separate"
	case strings.HasPrefix(path, "/files/"):
		if method == http.MethodDelete {
			return "/files/{job_id}"
		}
		return "/files/{job_id}/{filename}"
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
