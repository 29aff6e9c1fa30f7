// Package metrics exposes the Prometheus surface for the FSM engine,
// grounded on the teacher's observability/metrics package shape
// (CounterVec/HistogramVec wrapped behind nil-safe Observe* methods),
// generalized from messaging-webhook counters to per-turn engine metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the FSM's per-turn
// contract (spec.md §4.8, §5).
type EngineMetrics struct {
	turnLatency     *prometheus.HistogramVec
	lockWaitSeconds prometheus.Histogram
	turnsTotal      *prometheus.CounterVec
	escalationTotal *prometheus.CounterVec
	bookingOutcome  *prometheus.CounterVec
}

// NewEngineMetrics registers the engine's metric families against reg,
// defaulting to the global Prometheus registerer when reg is nil.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "fsm",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one Engine.Step call by channel",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		lockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "calllock",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting to acquire the per-call lock",
			Buckets:   prometheus.DefBuckets,
		}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "fsm",
			Name:      "turns_total",
			Help:      "Total turns processed, by resulting state",
		}, []string{"channel", "state"}),
		escalationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "fsm",
			Name:      "escalations_total",
			Help:      "Total emergency/human-transfer escalations, by kind",
		}, []string{"kind"}),
		bookingOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "outcome_total",
			Help:      "Total Book() calls, by adapter and outcome",
		}, []string{"provider", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnLatency, m.lockWaitSeconds, m.turnsTotal, m.escalationTotal, m.bookingOutcome)
	return m
}

func (m *EngineMetrics) ObserveTurn(channel, state string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(channel).Observe(seconds)
	m.turnsTotal.WithLabelValues(channel, state).Inc()
}

func (m *EngineMetrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWaitSeconds.Observe(seconds)
}

// ObserveEscalation records an emergency triage hit or a human-transfer
// handoff (kind is "emergency" or "transfer").
func (m *EngineMetrics) ObserveEscalation(kind string) {
	if m == nil {
		return
	}
	m.escalationTotal.WithLabelValues(kind).Inc()
}

func (m *EngineMetrics) ObserveBookingOutcome(provider, outcome string) {
	if m == nil {
		return
	}
	m.bookingOutcome.WithLabelValues(provider, outcome).Inc()
}
