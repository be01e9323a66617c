// Package metrics exposes Prometheus collectors for the conversation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_turns_total",
			Help: "Total number of conversation turns labeled by entry step and status",
		},
		[]string{"step", "status"},
	)
	turnDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conversation_turn_duration_seconds",
			Help:    "Duration of a full conversation turn including chained steps",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)
	stepTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_step_transitions_total",
			Help: "Total number of step transitions",
		},
		[]string{"from", "to"},
	)
	appointmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_total",
			Help: "Appointment operations labeled by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	collaboratorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_requests_total",
			Help: "Text-understanding collaborator calls labeled by call and status",
		},
		[]string{"call", "status"},
	)
	collaboratorFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_fallbacks_total",
			Help: "Deterministic fallbacks taken after collaborator failures",
		},
		[]string{"call"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of sessions with live state",
		},
	)
)

// RecordTurn counts a finished turn and its wall-clock duration.
func RecordTurn(step, status string, seconds float64) {
	turnsTotal.WithLabelValues(step, status).Inc()
	turnDurationSeconds.WithLabelValues(step).Observe(seconds)
}

// RecordTransition counts a step transition inside the engine loop.
func RecordTransition(from, to string) {
	stepTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordAppointment counts a booking-service operation outcome.
func RecordAppointment(operation, outcome string) {
	appointmentsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordCollaboratorCall counts a text-understanding call result.
func RecordCollaboratorCall(call, status string) {
	collaboratorRequestsTotal.WithLabelValues(call, status).Inc()
}

// RecordCollaboratorFallback counts a deterministic fallback after a failed call.
func RecordCollaboratorFallback(call string) {
	collaboratorFallbacksTotal.WithLabelValues(call).Inc()
}

// SetActiveSessions publishes the current session count.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
