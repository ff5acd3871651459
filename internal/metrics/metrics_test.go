package metrics

import (
	"errors"
	"testing"
	"time"

	"go-cats/pkg/sla"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBatch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	start := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	report := &sla.BatchReport{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Evaluated:  4,
		Events:     map[sla.EventKind]int{sla.EventEscalation: 2, sla.EventBreach: 1},
		Failures: []sla.CaseFailure{
			{CaseID: "c1", Kind: sla.FailureConfiguration},
			{CaseID: "c2", Kind: sla.FailureConfiguration},
		},
	}
	m.ObserveBatch("cron", report, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationRuns.WithLabelValues("cron", "success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CasesEvaluated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsEmitted.WithLabelValues("escalation")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CaseFailures.WithLabelValues(sla.FailureConfiguration)))
	assert.Equal(t, float64(start.Add(3*time.Second).Unix()), testutil.ToFloat64(m.LastEvaluationSuccess))

	m.ObserveBatch("manual", nil, errors.New("scan failed"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationRuns.WithLabelValues("manual", "failed")))
}

func TestObserveResolutionAndStates(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveResolution(sla.CaseKindComplaint, nil)
	m.ObserveResolution(sla.CaseKindComplaint, sla.ErrNoApplicableRule)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeadlinesResolved.WithLabelValues("complaint", "resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeadlinesResolved.WithLabelValues("complaint", sla.FailureNoRule)))

	m.ObserveOpenStates(map[sla.State]int{sla.StateBreached: 3, sla.StateWithinSLA: 10})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OpenCasesByState.WithLabelValues("breached")))
}
