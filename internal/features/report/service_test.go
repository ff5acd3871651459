package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/features/audit"
	"go-cats/internal/features/cases"
	"go-cats/internal/metrics"
	"go-cats/pkg/sla"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var now = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

type memoryStatsRepo struct {
	aggregates []RuleAggregate
	snapshots  []RuleStatistics
	aggAt      time.Time
}

func (r *memoryStatsRepo) AggregateByRule(ctx context.Context, at time.Time) ([]RuleAggregate, error) {
	r.aggAt = at
	return r.aggregates, nil
}

func (r *memoryStatsRepo) InsertSnapshots(ctx context.Context, stats []RuleStatistics) error {
	r.snapshots = append(r.snapshots, stats...)
	return nil
}

func (r *memoryStatsRepo) Latest(ctx context.Context) ([]RuleStatistics, error) {
	latest := map[string]RuleStatistics{}
	var order []string
	for _, s := range r.snapshots {
		prev, ok := latest[s.RuleID]
		if !ok {
			order = append(order, s.RuleID)
		}
		if !ok || s.Sequence > prev.Sequence {
			latest[s.RuleID] = s
		}
	}
	var out []RuleStatistics
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

func (r *memoryStatsRepo) History(ctx context.Context, ruleID string, limit int64) ([]RuleStatistics, error) {
	var out []RuleStatistics
	for i := len(r.snapshots) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if r.snapshots[i].RuleID == ruleID {
			out = append(out, r.snapshots[i])
		}
	}
	return out, nil
}

func (r *memoryStatsRepo) EnsureIndexes(ctx context.Context) error { return nil }

type stubCaseService struct {
	cases.CaseService
	overdue []cases.CaseView
	counts  map[sla.State]int
}

func (s *stubCaseService) ListOverdue(ctx context.Context) ([]cases.CaseView, error) {
	return s.overdue, nil
}

func (s *stubCaseService) CountOpenByState(ctx context.Context) (map[sla.State]int, error) {
	return s.counts, nil
}

type nopAudit struct{}

func (nopAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func (nopAudit) ListLogs(ctx context.Context, filter audit.LogFilter, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func newTestService(repo *memoryStatsRepo, caseService *stubCaseService) (*ReportServiceImpl, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return &ReportServiceImpl{
		Repo:         repo,
		CaseService:  caseService,
		AuditService: nopAudit{},
		Metrics:      m,
		Clock:        sla.FixedClock(now),
	}, m
}

func avg(v float64) *float64 { return &v }

func TestComplianceRate(t *testing.T) {
	assert.Equal(t, 100.0, ComplianceRate(0, 0))
	assert.Equal(t, 75.0, ComplianceRate(4, 1))
	assert.Equal(t, 0.0, ComplianceRate(2, 2))
}

func TestRecomputeStatisticsAppendsSnapshots(t *testing.T) {
	repo := &memoryStatsRepo{
		aggregates: []RuleAggregate{
			{RuleID: "rule-a", RuleName: "Cyber fraud", RuleRevision: 3, Total: 3, Closed: 2, Breached: 1, AvgResolutionHours: avg(16.0 / 3)},
			{RuleID: "rule-b", RuleName: "Pension", RuleRevision: 1, Total: 2},
		},
		snapshots: []RuleStatistics{{RuleID: "rule-a", Sequence: 4}},
	}
	caseService := &stubCaseService{counts: map[sla.State]int{sla.StateBreached: 1, sla.StateWithinSLA: 2}}
	svc, m := newTestService(repo, caseService)

	stats, err := svc.RecomputeStatistics(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, now, repo.aggAt)

	a := stats[0]
	assert.Equal(t, int64(5), a.Sequence)
	assert.Equal(t, 3, a.RuleRevision)
	assert.Equal(t, 1, a.OpenCases)
	assert.Equal(t, 66.67, a.ComplianceRate)
	assert.Equal(t, 5.33, a.AverageResolutionHours)
	assert.Equal(t, now, a.ComputedAt)

	b := stats[1]
	assert.Equal(t, int64(1), b.Sequence)
	assert.Equal(t, 100.0, b.ComplianceRate)
	assert.Zero(t, b.AverageResolutionHours)
	assert.Equal(t, 2, b.OpenCases)

	// the previous snapshot is kept alongside the new ones
	assert.Len(t, repo.snapshots, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatisticsRecomputed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenCasesByState.WithLabelValues(string(sla.StateBreached))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpenCasesByState.WithLabelValues(string(sla.StateWithinSLA))))
}

func TestStatisticsHistoryRequiresRule(t *testing.T) {
	svc, _ := newTestService(&memoryStatsRepo{}, &stubCaseService{})

	_, err := svc.StatisticsHistory(context.Background(), "", 10)
	var validation *common_models.ValidationError
	assert.ErrorAs(t, err, &validation)

	stats, err := svc.StatisticsHistory(context.Background(), "rule-a", 10)
	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}

func TestExportComplianceWorkbook(t *testing.T) {
	deadline := now.Add(-30 * time.Hour)
	repo := &memoryStatsRepo{
		snapshots: []RuleStatistics{
			{RuleID: "rule-a", RuleName: "Cyber fraud", Sequence: 1, TotalCases: 4, BreachedCases: 1, ComplianceRate: 75, ComputedAt: now},
		},
	}
	caseService := &stubCaseService{
		overdue: []cases.CaseView{{Case: &cases.Case{
			CaseNumber:      "CC202610000007",
			Kind:            sla.CaseKindComplaint,
			CaseType:        "cyber_fraud",
			Priority:        "high",
			Status:          cases.StatusInvestigation,
			AssignedRole:    "cyber_cell",
			SLARule:         &sla.Rule{Name: "Cyber fraud"},
			SLADeadline:     &deadline,
			EscalationLevel: 2,
		}}},
	}
	svc, _ := newTestService(repo, caseService)

	data, filename, err := svc.ExportCompliance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sla_compliance_20261016_100000.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Compliance", "Overdue"}, f.GetSheetList())

	rule, _ := f.GetCellValue("Compliance", "B2")
	assert.Equal(t, "Cyber fraud", rule)
	compliance, _ := f.GetCellValue("Compliance", "I2")
	assert.Equal(t, "75", compliance)

	rows, err := f.GetRows("Overdue")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, overdueColumns, rows[0])
	assert.Equal(t, "CC202610000007", rows[1][0])
	assert.Equal(t, "cyber_cell", rows[1][5])
	assert.Equal(t, "2026-10-15 04:00:00", rows[1][7])
	assert.Equal(t, "30", rows[1][8])
	assert.Equal(t, "2", rows[1][9])
}
