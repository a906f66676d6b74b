package engine

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics is an optional Prometheus-backed instrumentation hook. A
// nil *EngineMetrics is always safe to call through (Engine.countOp
// guards on nil), mirroring how the rest of the stack treats optional
// telemetry as opt-in rather than required plumbing (§6.3).
type EngineMetrics struct {
	operations      *prometheus.CounterVec
	yearTransitions prometheus.Counter
	warnings        prometheus.Counter
}

// NewEngineMetrics registers the engine's counters against reg and
// returns a ready-to-use hook. Pass the result to WithMetrics.
func NewEngineMetrics(reg prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kigalisim_engine_operations_total",
			Help: "Count of engine operations executed, labeled by operation kind.",
		}, []string{"operation"}),
		yearTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kigalisim_engine_year_transitions_total",
			Help: "Count of completed year transitions.",
		}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kigalisim_engine_warnings_total",
			Help: "Count of warnings emitted by the engine (e.g. negative-stream clamping).",
		}),
	}

	for _, collector := range []prometheus.Collector{m.operations, m.yearTransitions, m.warnings} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveOperation increments the counter for the named operation.
func (m *EngineMetrics) ObserveOperation(name string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(name).Inc()
}

// ObserveYearTransition increments the year-transition counter.
func (m *EngineMetrics) ObserveYearTransition() {
	if m == nil {
		return
	}
	m.yearTransitions.Inc()
}

// ObserveWarning increments the warnings counter.
func (m *EngineMetrics) ObserveWarning() {
	if m == nil {
		return
	}
	m.warnings.Inc()
}
