// Package metrics records per-session Prometheus metrics: phase latencies,
// resolved sites by status and diagnostics by code.
//
// Every session owns its registry, so concurrent sessions in one process
// never collide on metric registration. A nil *Recorder records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase names used as the phase label.
const (
	PhaseDeclare = "declare"
	PhasePublish = "publish"
	PhaseResolve = "resolve"
)

// Unit outcomes used as the outcome label.
const (
	OutcomeResolved  = "resolved"
	OutcomeAbandoned = "abandoned"
	OutcomeFailed    = "failed"
)

// Recorder holds the collectors of one session.
type Recorder struct {
	registry *prometheus.Registry

	// phaseSeconds measures the wall time of one phase for one unit.
	// Labels: phase (declare, publish, resolve)
	phaseSeconds *prometheus.HistogramVec

	// unitsTotal counts finished units.
	// Labels: outcome (resolved, abandoned, failed)
	unitsTotal *prometheus.CounterVec

	// sitesTotal counts recorded resolutions.
	// Labels: role, status
	sitesTotal *prometheus.CounterVec

	// diagnosticsTotal counts reported diagnostics.
	// Labels: code
	diagnosticsTotal *prometheus.CounterVec
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		phaseSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "resolvekit",
			Subsystem: "session",
			Name:      "phase_duration_seconds",
			Help:      "Duration of one session phase for one unit.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"phase"}),
		unitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resolvekit",
			Subsystem: "session",
			Name:      "units_total",
			Help:      "Units processed by outcome.",
		}, []string{"outcome"}),
		sitesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resolvekit",
			Subsystem: "resolve",
			Name:      "sites_total",
			Help:      "Resolved reference sites by role and status.",
		}, []string{"role", "status"}),
		diagnosticsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resolvekit",
			Subsystem: "resolve",
			Name:      "diagnostics_total",
			Help:      "Reported diagnostics by code.",
		}, []string{"code"}),
	}
}

// Registry exposes the registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePhase records the duration of phase.
func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.phaseSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordUnit counts a finished unit.
func (r *Recorder) RecordUnit(outcome string) {
	if r == nil {
		return
	}
	r.unitsTotal.WithLabelValues(outcome).Inc()
}

// RecordSite counts one resolution.
func (r *Recorder) RecordSite(role, status string) {
	if r == nil {
		return
	}
	r.sitesTotal.WithLabelValues(role, status).Inc()
}

// RecordDiagnostic counts one diagnostic.
func (r *Recorder) RecordDiagnostic(code string) {
	if r == nil {
		return
	}
	r.diagnosticsTotal.WithLabelValues(code).Inc()
}

// WriteFile writes the registry in the Prometheus text format, atomically.
func (r *Recorder) WriteFile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
