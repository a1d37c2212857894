package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config mirrors the telemetry.metrics configuration block.
type Config struct {
	Namespace string
	Subsystem string
}

// AdmissionMetrics tracks the admission gate's decisions and the store's
// memory footprint.
//
// Metrics:
//   - gatehouse_admission_decisions_total: decisions by dimension and outcome
//   - gatehouse_admission_reserved_units_total: budget units reserved
//   - gatehouse_admission_active_sessions: open sessions gauge
//   - gatehouse_admission_store_entries: live store entries by dimension
//   - gatehouse_admission_swept_entries_total: sweeper evictions by dimension
type AdmissionMetrics struct {
	decisionsTotal *prometheus.CounterVec
	reservedUnits  prometheus.Counter
	activeSessions prometheus.Gauge
	storeEntries   *prometheus.GaugeVec
	sweptTotal     *prometheus.CounterVec
}

// NewAdmissionMetrics creates and registers admission metrics with the
// provided registry.
func NewAdmissionMetrics(cfg Config, registry *prometheus.Registry) *AdmissionMetrics {
	m := &AdmissionMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decisions_total",
				Help:      "Admission decisions by dimension and outcome",
			},
			[]string{"dimension", "outcome"},
		),

		reservedUnits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reserved_units_total",
				Help:      "Usage-budget units reserved by admitted requests",
			},
		),

		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_sessions",
				Help:      "Currently open sessions across all clients",
			},
		),

		storeEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_entries",
				Help:      "Live entries in the usage store by dimension",
			},
			[]string{"dimension"},
		),

		sweptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "swept_entries_total",
				Help:      "Expired entries evicted by the background sweeper",
			},
			[]string{"dimension"},
		),
	}

	registry.MustRegister(
		m.decisionsTotal,
		m.reservedUnits,
		m.activeSessions,
		m.storeEntries,
		m.sweptTotal,
	)

	return m
}

// RecordDecision counts one admission decision.
func (m *AdmissionMetrics) RecordDecision(dimension string, allowed bool) {
	outcome := "rejected"
	if allowed {
		outcome = "admitted"
	}
	m.decisionsTotal.WithLabelValues(dimension, outcome).Inc()
}

// RecordReservedUnits adds to the reserved units counter.
func (m *AdmissionMetrics) RecordReservedUnits(units uint64) {
	m.reservedUnits.Add(float64(units))
}

// SetActiveSessions sets the open-session gauge.
func (m *AdmissionMetrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// RecordStoreEntries sets the per-dimension live entry gauges.
func (m *AdmissionMetrics) RecordStoreEntries(requests, bursts, usage, sessions int) {
	m.storeEntries.WithLabelValues("requests").Set(float64(requests))
	m.storeEntries.WithLabelValues("burst").Set(float64(bursts))
	m.storeEntries.WithLabelValues("tokens").Set(float64(usage))
	m.storeEntries.WithLabelValues("sessions").Set(float64(sessions))
}

// RecordSweep counts sweeper evictions. Satisfies the sweeper's Recorder
// interface.
func (m *AdmissionMetrics) RecordSweep(dimension string, deleted int) {
	m.sweptTotal.WithLabelValues(dimension).Add(float64(deleted))
}
