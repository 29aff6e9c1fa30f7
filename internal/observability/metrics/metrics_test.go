package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEngineMetricsObserve(t *testing.T) {
	m := NewEngineMetrics(prometheus.NewRegistry())
	m.ObserveTurn("voice", "CONFIRMED", 0.12)
	m.ObserveLockWait(0.01)
	m.ObserveEscalation("emergency")
	m.ObserveBookingOutcome("google", "booked")
}

func TestEngineMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)
	m.ObserveEscalation("transfer")
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveTurn("voice", "START", 0.1)
	m.ObserveLockWait(0.1)
	m.ObserveEscalation("emergency")
	m.ObserveBookingOutcome("none", "failed")
}
