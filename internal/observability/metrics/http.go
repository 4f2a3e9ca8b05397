package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docflow"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec

	uploadsTotal         *prometheus.CounterVec
	approvalActionsTotal *prometheus.CounterVec
	exportsTotal         *prometheus.CounterVec

	*breakerStates
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests shed by traffic control, by reason.",
		},
		[]string{"service", "reason"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "uploads_total",
			Help:      "Document uploads by outcome.",
		},
		[]string{"service", "outcome"},
	)
	approvalActionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "approval_actions_total",
			Help:      "Approval workflow actions by action and outcome.",
		},
		[]string{"service", "action", "outcome"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "exports_total",
			Help:      "Report exports by format.",
		},
		[]string{"service", "format"},
	)
	breakers := newBreakerStates(service)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rejectedTotal,
		uploadsTotal,
		approvalActionsTotal,
		exportsTotal,
		breakers.gauge,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		service:              service,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		rejectedTotal:        rejectedTotal,
		uploadsTotal:         uploadsTotal,
		approvalActionsTotal: approvalActionsTotal,
		exportsTotal:         exportsTotal,
		breakerStates:        breakers,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded: document ids collapse to a placeholder
// and unknown paths share one label.
func normalizePath(path string) string {
	switch {
	case path == "/healthz", path == "/metrics", path == "/v1/documents":
		return path
	case strings.HasPrefix(path, "/v1/documents/"):
		rest := strings.TrimPrefix(path, "/v1/documents/")
		if _, sub, ok := strings.Cut(rest, "/"); ok {
			return "/v1/documents/{document_id}/" + sub
		}
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/reports/"):
		return path
	default:
		return "unmatched"
	}
}

func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(m.service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordUpload(err error) {
	m.uploadsTotal.WithLabelValues(m.service, outcome(err)).Inc()
}

func (m *HTTPServerMetrics) RecordApprovalAction(action string, err error) {
	if action == "" {
		action = "unknown"
	}
	m.approvalActionsTotal.WithLabelValues(m.service, action, outcome(err)).Inc()
}

func (m *HTTPServerMetrics) RecordExport(format string) {
	m.exportsTotal.WithLabelValues(m.service, format).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
