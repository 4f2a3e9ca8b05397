package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	parseSource     *prometheus.CounterVec

	*breakerStates
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "document_process_total",
			Help:      "Total pipeline passes by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "document_process_duration_seconds",
			Help:      "Pipeline pass duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight pipeline passes.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_lag_seconds",
			Help:      "Delay between scheduling and processing start.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	parseSource := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "extractions_total",
			Help:      "Committed extractions by field source and duplicate flag.",
		},
		[]string{"service", "source", "duplicate"},
	)
	breakers := newBreakerStates(service)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, parseSource, breakers.gauge)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		parseSource:     parseSource,
		breakerStates:   breakers,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObservePipeline(source string, duplicate bool) {
	if source == "" {
		source = "unknown"
	}
	m.parseSource.WithLabelValues(m.service, source, strconv.FormatBool(duplicate)).Inc()
}

// Instrument wraps a pipeline handler with in-flight, count and duration tracking.
func (m *WorkerMetrics) Instrument(next func(context.Context, string) error) func(context.Context, string) error {
	return func(ctx context.Context, documentID string) (err error) {
		start := time.Now()
		m.StartDocument()
		defer func() {
			m.FinishDocument(time.Since(start), err)
		}()
		return next(ctx, documentID)
	}
}
