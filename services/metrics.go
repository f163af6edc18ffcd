package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
	cleanupRuns *prometheus.CounterVec
	softDeleted prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streak",
			Name:      "submissions_total",
			Help:      "Accepted project submissions by accumulator outcome.",
		}, []string{"outcome"}),
		cleanupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streak",
			Name:      "cleanup_runs_total",
			Help:      "Cleanup runs by trigger and result.",
		}, []string{"trigger", "result"}),
		softDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streak",
			Name:      "participants_soft_deleted_total",
			Help:      "Participants deactivated by the cleanup policy.",
		}),
	}
	reg.MustRegister(m.submissions, m.cleanupRuns, m.softDeleted)
	return m
}

func (m *Metrics) observeSubmission(outcome Outcome) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) observeCleanup(trigger string, res *CleanupResult, err error) {
	if m == nil {
		return
	}
	result := "deleted"
	switch {
	case err != nil:
		result = "error"
	case res.SkipReason != SkipNone:
		result = "skipped"
	}
	m.cleanupRuns.WithLabelValues(trigger, result).Inc()
	if res != nil {
		m.softDeleted.Add(float64(res.DeletedUsers))
	}
}
