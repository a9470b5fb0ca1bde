// Package metrics provides Prometheus metrics for the workspace.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildmanager_http_requests_total",
			Help: "Total number of gateway HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildmanager_http_request_duration_seconds",
			Help:    "Gateway HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	backendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildmanager_backend_calls_total",
			Help: "Calls to the project API by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	backendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildmanager_backend_call_duration_seconds",
			Help:    "Project API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildmanager_mutations_total",
			Help: "Optimistic mutations by name and outcome (committed, rolled_back, rejected)",
		},
		[]string{"mutation", "outcome"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buildmanager_upload_bytes_total",
			Help: "Bytes transferred to object storage through presigned URLs",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildmanager_uploads_total",
			Help: "Uploads by outcome",
		},
		[]string{"status"},
	)

	openStores = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildmanager_open_project_stores",
			Help: "Number of project stores currently open",
		},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildmanager_project_cache_lookups_total",
			Help: "Project cache lookups by result",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records a completed gateway request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordBackendCall records one call to the project API.
func RecordBackendCall(op string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	backendCallsTotal.WithLabelValues(op, outcome).Inc()
	backendCallDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordMutation records the outcome of an optimistic mutation.
func RecordMutation(name, outcome string) {
	mutationsTotal.WithLabelValues(name, outcome).Inc()
}

// RecordUpload records an upload attempt.
func RecordUpload(bytes int64, success bool) {
	if success {
		uploadBytesTotal.Add(float64(bytes))
		uploadsTotal.WithLabelValues("success").Inc()
	} else {
		uploadsTotal.WithLabelValues("error").Inc()
	}
}

// StoreOpened and StoreClosed track open project stores.
func StoreOpened() { openStores.Inc() }
func StoreClosed() { openStores.Dec() }

// RecordCacheLookup records a project cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled with the route template.
func Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			RecordHTTPRequest(r.Method, route(r), rw.status, time.Since(start))
		})
	}
}
