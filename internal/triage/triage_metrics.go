package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem. All methods are
// nil-safe so tests can run the Service without a registry.
type Metrics struct {
	IngestsTotal       *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	FollowUpsCreated   prometheus.Counter
	FollowUpsResolved  prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	EscalationsTotal   *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aria_ingests_total",
			Help: "Total email ingestions by result.",
		}, []string{"result"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aria_transitions_total",
			Help: "Total status transitions by old and new status.",
		}, []string{"from", "to"}),
		FollowUpsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aria_followups_created_total",
			Help: "Total follow-up obligations created.",
		}),
		FollowUpsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aria_followups_resolved_total",
			Help: "Total follow-up obligations resolved.",
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aria_validation_failures_total",
			Help: "Total rejected inputs by failing field.",
		}, []string{"field"}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aria_escalations_total",
			Help: "Total escalation notices by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.TransitionsTotal,
		m.FollowUpsCreated,
		m.FollowUpsResolved,
		m.ValidationFailures,
		m.EscalationsTotal,
	)

	return m
}

// IncIngest counts one ingestion outcome (accepted, duplicate, invalid, error).
func (m *Metrics) IncIngest(result string) {
	if m == nil {
		return
	}
	m.IngestsTotal.WithLabelValues(result).Inc()
}

// IncTransition counts one status transition.
func (m *Metrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncFollowUpCreated counts one new obligation.
func (m *Metrics) IncFollowUpCreated() {
	if m == nil {
		return
	}
	m.FollowUpsCreated.Inc()
}

// IncFollowUpResolved counts one resolved obligation.
func (m *Metrics) IncFollowUpResolved() {
	if m == nil {
		return
	}
	m.FollowUpsResolved.Inc()
}

// IncValidationFailure counts one rejected input by field.
func (m *Metrics) IncValidationFailure(field string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(field).Inc()
}

// IncEscalation counts one escalation notice outcome.
func (m *Metrics) IncEscalation(outcome string) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(outcome).Inc()
}
