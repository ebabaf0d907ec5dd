package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_actions_total",
			Help: "Admin action pipeline outcomes by permission.",
		},
		[]string{"permission", "outcome"},
	)

	auditAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_appends_total",
			Help: "Audit entries appended, by the sink that accepted them.",
		},
		[]string{"sink"},
	)

	auditBufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audit_fallback_buffer_entries",
		Help: "Entries currently held in the local audit fallback buffer.",
	})

	reauthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_reauth_attempts_total",
			Help: "Step-up re-authentication attempts by result.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Init registers collectors in the default registry
func Init() {
	prometheus.MustRegister(
		actionsTotal,
		auditAppendsTotal,
		auditBufferSize,
		reauthTotal,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Handler serves the Prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// ActionOutcome counts a terminal pipeline state
func ActionOutcome(permission, outcome string) {
	actionsTotal.WithLabelValues(permission, outcome).Inc()
}

// AuditAppended counts an audit entry accepted by sink ("durable" or "fallback")
func AuditAppended(sink string) {
	auditAppendsTotal.WithLabelValues(sink).Inc()
}

// AuditBufferSize records the fallback buffer occupancy
func AuditBufferSize(n int) {
	auditBufferSize.Set(float64(n))
}

// ReauthAttempt counts a step-up attempt
func ReauthAttempt(result string) {
	reauthTotal.WithLabelValues(result).Inc()
}

// Instrument records request counts and latencies keyed by chi route pattern
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the instrumentation wrapper
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
