package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics exports resilience events of outbound calls. It satisfies
// resilience.Observer.
type GatewayMetrics struct {
	service      string
	retriesTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewGatewayMetrics(service string, registerer prometheus.Registerer) *GatewayMetrics {
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "retries_total",
			Help:      "Retried outbound calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker of the operation is not closed.",
		},
		[]string{"service", "operation"},
	)
	registerer.MustRegister(retriesTotal, breakerState)

	return &GatewayMetrics{
		service:      service,
		retriesTotal: retriesTotal,
		breakerState: breakerState,
	}
}

func (m *GatewayMetrics) RetryAttempt(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *GatewayMetrics) BreakerStateChanged(operation, to string) {
	value := 1.0
	if to == "closed" {
		value = 0
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
