package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records payment gateway call outcomes and breaker activity.
type GatewayMetrics struct {
	duration     *prometheus.HistogramVec
	outcomes     *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "commerce",
		Name:      "pg_request_duration_seconds",
		Help:      "Duration of payment gateway calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Name:      "pg_request_total",
		Help:      "Payment gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "commerce",
		Name:      "pg_breaker_state",
		Help:      "Current circuit breaker state (1 for the active state).",
	}, []string{"state"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commerce",
		Name:      "pg_breaker_transitions_total",
		Help:      "Circuit breaker state transitions.",
	}, []string{"from", "to"})
	reg.MustRegister(duration, outcomes, breakerState, transitions)
	return &GatewayMetrics{
		duration:     duration,
		outcomes:     outcomes,
		breakerState: breakerState,
		transitions:  transitions,
	}
}

// ObserveRequest records the duration and outcome for a gateway call.
func (g *GatewayMetrics) ObserveRequest(operation, outcome string, duration time.Duration) {
	if g == nil {
		return
	}
	if g.duration != nil {
		g.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
	}
	if g.outcomes != nil {
		g.outcomes.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
	}
}

// SetBreakerState marks the active breaker state, clearing the others.
func (g *GatewayMetrics) SetBreakerState(state string) {
	if g == nil || g.breakerState == nil {
		return
	}
	for _, candidate := range []string{"closed", "open", "half_open"} {
		value := 0.0
		if candidate == state {
			value = 1.0
		}
		g.breakerState.WithLabelValues(candidate).Set(value)
	}
}

// IncBreakerTransition counts a breaker state change.
func (g *GatewayMetrics) IncBreakerTransition(from, to string) {
	if g == nil || g.transitions == nil {
		return
	}
	g.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
