package reconcile

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics counts engine outcomes.
type Metrics struct {
	approvals *prometheus.CounterVec
	updates   *prometheus.CounterVec
	staged    prometheus.Counter
	changes   *prometheus.CounterVec
}

// NewMetrics registers the engine collectors on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		approvals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmdb_approvals_total",
				Help: "Quarantine approvals by asset type and outcome",
			},
			[]string{"asset_type", "outcome"},
		),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmdb_update_reports_total",
				Help: "Update reports applied to existing assets by asset type and outcome",
			},
			[]string{"asset_type", "outcome"},
		),
		staged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cmdb_staged_reports_total",
			Help: "Reports staged in the quarantine zone",
		}),
		changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cmdb_component_changes_total",
				Help: "Component rows created, updated or deleted by reconciliation",
			},
			[]string{"kind", "action"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.approvals, m.updates, m.staged, m.changes)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}

func (m *Metrics) approval(t string, err error) {
	m.approvals.WithLabelValues(t, outcome(err)).Inc()
}

func (m *Metrics) update(t string, err error) {
	m.updates.WithLabelValues(t, outcome(err)).Inc()
}

func (m *Metrics) record(c changes) {
	if c.created > 0 {
		m.changes.WithLabelValues(c.kind, "created").Add(float64(c.created))
	}
	if c.updated > 0 {
		m.changes.WithLabelValues(c.kind, "updated").Add(float64(c.updated))
	}
	if c.deleted > 0 {
		m.changes.WithLabelValues(c.kind, "deleted").Add(float64(c.deleted))
	}
}
