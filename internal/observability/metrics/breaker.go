package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// breakerStates exports resilience breaker transitions: 0 closed, 1 half-open, 2 open.
type breakerStates struct {
	service string
	gauge   *prometheus.GaugeVec
}

func newBreakerStates(service string) *breakerStates {
	return &breakerStates{
		service: service,
		gauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			},
			[]string{"service", "operation"},
		),
	}
}

func (b *breakerStates) ObserveBreakerState(operation string, state gobreaker.State) {
	value := 0.0
	switch state {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	b.gauge.WithLabelValues(b.service, operation).Set(value)
}
