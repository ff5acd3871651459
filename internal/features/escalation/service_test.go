package escalation

import (
	"context"
	"sync"
	"testing"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/config"
	"go-cats/internal/features/audit"
	"go-cats/internal/features/cases"
	"go-cats/internal/metrics"
	"go-cats/pkg/sla"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type stubCaseRepo struct {
	cases.CaseRepository
	mu      sync.Mutex
	open    map[string]sla.Case
	saved   map[string]sla.SLAUpdate
	started chan struct{}
	block   chan struct{}
}

func (r *stubCaseRepo) ForEachOpenCase(ctx context.Context, fn func(sla.Case) error) error {
	if r.block != nil {
		close(r.started)
		<-r.block
	}
	for _, c := range r.open {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *stubCaseRepo) GetCase(ctx context.Context, id string) (*sla.Case, error) {
	c, ok := r.open[id]
	if !ok {
		return nil, common_models.ErrNotFound
	}
	return &c, nil
}

func (r *stubCaseRepo) SaveSLAState(ctx context.Context, id string, expectedVersion int64, update sla.SLAUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[id] = update
	return nil
}

type stubRuns struct {
	runs []EvaluationRun
}

func (r *stubRuns) Create(ctx context.Context, run *EvaluationRun) error {
	run.ID = primitive.NewObjectID()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *stubRuns) ListRecent(ctx context.Context, limit int64) ([]EvaluationRun, error) {
	return r.runs, nil
}

func (r *stubRuns) EnsureIndexes(ctx context.Context) error { return nil }

type nopAudit struct{}

func (nopAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func (nopAudit) ListLogs(ctx context.Context, filter audit.LogFilter, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

type nopSink struct{}

func (nopSink) Dispatch(ctx context.Context, c sla.Case, events []sla.Event) error { return nil }

type noCatalog struct{}

func (noCatalog) CandidateRules(ctx context.Context, attrs sla.CaseAttributes) ([]sla.Rule, error) {
	return nil, nil
}

func (noCatalog) DefaultRule(ctx context.Context) (*sla.Rule, error) { return nil, nil }

func openCase(id string, submitted time.Time) sla.Case {
	deadline := submitted.Add(10 * time.Hour)
	return sla.Case{
		ID:          id,
		Attributes:  sla.CaseAttributes{Kind: sla.CaseKindComplaint, CaseType: "financial_fraud"},
		SubmittedAt: &submitted,
		SLADeadline: &deadline,
		Rule: &sla.Rule{
			Name:           "fraud",
			ResolutionTime: 10,
			AutoEscalate:   true,
			EscalationLevels: []sla.EscalationLevel{
				{ThresholdPercent: 50, Level: 1},
			},
			BreachActions: []sla.Action{{Kind: sla.ActionLogOnly}},
			Timezone:      "UTC",
		},
		Version: 1,
	}
}

func newServiceFixture(now time.Time, open ...sla.Case) (*EscalationServiceImpl, *stubCaseRepo, *stubRuns, *metrics.Metrics) {
	repo := &stubCaseRepo{open: make(map[string]sla.Case), saved: make(map[string]sla.SLAUpdate)}
	for _, c := range open {
		repo.open[c.ID] = c
	}
	runs := &stubRuns{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	caseService := &stubCases{counts: map[sla.State]int{sla.StateBreached: 1, sla.StateWithinSLA: 1}}

	svc := NewEscalationService(
		sla.NewEngine(noCatalog{}, sla.FixedClock(now)),
		repo, caseService, nopSink{}, runs, nopAudit{}, m, zap.NewNop(),
		&config.Config{EvaluationWorkers: 2, MaxRetries: 1},
	)
	return svc.(*EscalationServiceImpl), repo, runs, m
}

func TestRunEvaluationStoresReport(t *testing.T) {
	now := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	breached := openCase("c-breached", now.Add(-12*time.Hour))
	halfway := openCase("c-halfway", now.Add(-6*time.Hour))
	orphan := openCase("c-orphan", now.Add(-time.Hour))
	orphan.Rule = nil
	orphan.SLADeadline = nil

	svc, repo, runs, m := newServiceFixture(now, breached, halfway, orphan)

	run, err := svc.RunEvaluation(context.Background(), TriggerScheduled)
	require.NoError(t, err)

	assert.Equal(t, "success", run.Status)
	assert.Equal(t, "system", run.TriggeredBy)
	assert.Equal(t, 2, run.Evaluated)
	assert.Equal(t, 2, run.Changed)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, sla.FailureNoRule, run.Failures[0].Kind)
	assert.Equal(t, 1, run.Events[sla.EventBreach])

	require.Len(t, runs.runs, 1)
	assert.True(t, repo.saved["c-breached"].BreachNotified)
	assert.Equal(t, 1, repo.saved["c-halfway"].EscalationLevel)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationRuns.WithLabelValues(TriggerScheduled, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenCasesByState.WithLabelValues(string(sla.StateBreached))))
}

func TestRunEvaluationRejectsOverlap(t *testing.T) {
	now := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	svc, repo, _, _ := newServiceFixture(now)
	repo.started = make(chan struct{})
	repo.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunEvaluation(context.Background(), TriggerScheduled)
		done <- err
	}()

	<-repo.started

	_, err := svc.RunEvaluation(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, common_models.ErrConflict)

	close(repo.block)
	require.NoError(t, <-done)
}

func TestEvaluateSingleCase(t *testing.T) {
	now := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	svc, repo, _, m := newServiceFixture(now, openCase("c1", now.Add(-6*time.Hour)))

	ev, err := svc.EvaluateCase(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, ev.EscalationLevel)
	assert.Equal(t, 1, repo.saved["c1"].EscalationLevel)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsEmitted.WithLabelValues(string(sla.EventEscalation))))

	_, err = svc.EvaluateCase(context.Background(), "missing")
	assert.ErrorIs(t, err, common_models.ErrNotFound)
}
