package cases

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/features/audit"
	"go-cats/internal/features/timeline"
	"go-cats/internal/metrics"
	"go-cats/pkg/sla"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryCaseRepo struct {
	cases     map[primitive.ObjectID]*Case
	counters  map[string]int64
	conflicts int
}

func newMemoryCaseRepo() *memoryCaseRepo {
	return &memoryCaseRepo{
		cases:    make(map[primitive.ObjectID]*Case),
		counters: make(map[string]int64),
	}
}

func (r *memoryCaseRepo) Create(ctx context.Context, c *Case) error {
	c.ID = primitive.NewObjectID()
	c.Version = 1
	stored := *c
	r.cases[c.ID] = &stored
	return nil
}

func (r *memoryCaseRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*Case, error) {
	c, ok := r.cases[id]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", id.Hex(), common_models.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (r *memoryCaseRepo) FindByNumber(ctx context.Context, number string) (*Case, error) {
	for _, c := range r.cases {
		if c.CaseNumber == number {
			copied := *c
			return &copied, nil
		}
	}
	return nil, common_models.ErrNotFound
}

func (r *memoryCaseRepo) FindAll(ctx context.Context, filter CaseFilter, page, limit int64) ([]Case, int64, error) {
	var out []Case
	for _, c := range r.cases {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *memoryCaseRepo) FindOverdue(ctx context.Context, now time.Time) ([]Case, error) {
	var out []Case
	for _, c := range r.cases {
		if !c.Terminal() && c.SLADeadline != nil && c.SLADeadline.Before(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memoryCaseRepo) FindUrgent(ctx context.Context) ([]Case, error) {
	var out []Case
	for _, c := range r.cases {
		if !c.Terminal() && (c.Priority == "critical" || c.EscalationLevel >= 2) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memoryCaseRepo) Update(ctx context.Context, id primitive.ObjectID, expectedVersion int64, updates bson.M) error {
	c, ok := r.cases[id]
	if !ok {
		return common_models.ErrNotFound
	}
	if r.conflicts > 0 {
		r.conflicts--
		c.Version++
		return sla.ErrVersionConflict
	}
	if c.Version != expectedVersion {
		return sla.ErrVersionConflict
	}
	for k, v := range updates {
		switch k {
		case "status":
			c.Status = v.(CaseStatus)
		case "closed_at":
			t := v.(time.Time)
			c.ClosedAt = &t
		case "submitted_at":
			c.SubmittedAt = v.(*time.Time)
		case "sla_deadline":
			c.SLADeadline = v.(*time.Time)
		case "sla_rule":
			c.SLARule = v.(*sla.Rule)
		case "sla_rule_id":
			c.SLARuleID = v.(string)
		case "assigned_to":
			c.AssignedTo = v.(string)
		case "assigned_role":
			c.AssignedRole = v.(string)
		}
	}
	c.Version++
	return nil
}

func (r *memoryCaseRepo) NextSequence(ctx context.Context, key string) (int64, error) {
	r.counters[key]++
	return r.counters[key], nil
}

func (r *memoryCaseRepo) ForEachOpenCase(ctx context.Context, fn func(sla.Case) error) error {
	for _, c := range r.cases {
		if c.Terminal() || c.SubmittedAt == nil {
			continue
		}
		if err := fn(c.SLACase()); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryCaseRepo) GetCase(ctx context.Context, id string) (*sla.Case, error) {
	oid, _ := primitive.ObjectIDFromHex(id)
	c, err := r.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	v := c.SLACase()
	return &v, nil
}

func (r *memoryCaseRepo) SaveSLAState(ctx context.Context, id string, expectedVersion int64, update sla.SLAUpdate) error {
	return errors.New("not used")
}

func (r *memoryCaseRepo) EnsureIndexes(ctx context.Context) error { return nil }

type memoryTimeline struct {
	entries []timeline.Entry
}

func (m *memoryTimeline) Record(ctx context.Context, entry *timeline.Entry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryTimeline) ListForCase(ctx context.Context, caseID string) ([]timeline.Entry, error) {
	return m.entries, nil
}

func (m *memoryTimeline) types() []timeline.EntryType {
	var out []timeline.EntryType
	for _, e := range m.entries {
		out = append(out, e.Type)
	}
	return out
}

type noopAudit struct{}

func (noopAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func (noopAudit) ListLogs(ctx context.Context, filter audit.LogFilter, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

type staticCatalog struct {
	rules []sla.Rule
}

func (s *staticCatalog) CandidateRules(ctx context.Context, attrs sla.CaseAttributes) ([]sla.Rule, error) {
	return s.rules, nil
}

func (s *staticCatalog) DefaultRule(ctx context.Context) (*sla.Rule, error) {
	return nil, nil
}

// Friday 2026-10-16 15:00 UTC
var submittedAt = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *CaseServiceImpl
	repo     *memoryCaseRepo
	timeline *memoryTimeline
	metrics  *metrics.Metrics
}

func newFixture(now time.Time) *fixture {
	catalog := &staticCatalog{rules: []sla.Rule{{
		ID:                primitive.NewObjectID(),
		Name:              "Cyber fraud",
		CaseKind:          sla.CaseKindComplaint,
		CaseType:          "financial_fraud",
		ResolutionTime:    10,
		FirstResponseTime: 3,
		BusinessHoursOnly: true,
		BusinessHours:     sla.DefaultBusinessHours(),
		Timezone:          "UTC",
		IsActive:          true,
	}}}

	repo := newMemoryCaseRepo()
	tl := &memoryTimeline{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	svc := NewCaseService(repo, sla.NewEngine(catalog, sla.FixedClock(now)), tl, noopAudit{}, m)
	return &fixture{svc: svc.(*CaseServiceImpl), repo: repo, timeline: tl, metrics: m}
}

func fraudRequest() SubmitRequest {
	return SubmitRequest{
		Kind:     sla.CaseKindComplaint,
		CaseType: "financial_fraud",
		Title:    "UPI fraud of Rs 40,000",
		Priority: "high",
	}
}

func TestSubmitCaseSnapshotsRuleAndDeadline(t *testing.T) {
	f := newFixture(submittedAt)

	c, err := f.svc.SubmitCase(context.Background(), fraudRequest())
	require.NoError(t, err)

	assert.Equal(t, "CC202610000001", c.CaseNumber)
	assert.Equal(t, StatusSubmitted, c.Status)
	require.NotNil(t, c.SubmittedAt)
	require.NotNil(t, c.SLARule)
	assert.Equal(t, "Cyber fraud", c.SLARule.Name)
	// 2h left on Friday, 8h on Monday
	assert.Equal(t, time.Date(2026, 10, 19, 17, 0, 0, 0, time.UTC), *c.SLADeadline)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), *c.FirstResponseDeadline)
	assert.Equal(t, []timeline.EntryType{timeline.EntrySubmitted}, f.timeline.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DeadlinesResolved.WithLabelValues("complaint", "resolved")))

	second, err := f.svc.SubmitCase(context.Background(), fraudRequest())
	require.NoError(t, err)
	assert.Equal(t, "CC202610000002", second.CaseNumber)
}

func TestSubmitCaseNormalizesClassification(t *testing.T) {
	f := newFixture(submittedAt)

	req := fraudRequest()
	req.CaseType = "Financial Fraud"
	req.Priority = "High"
	c, err := f.svc.SubmitCase(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "financial_fraud", c.CaseType)
	assert.Equal(t, "high", c.Priority)
	require.NotNil(t, c.SLARule)
	assert.Equal(t, "Cyber fraud", c.SLARule.Name)
}

func TestSubmitCaseRejectsWhenNoRuleApplies(t *testing.T) {
	f := newFixture(submittedAt)

	req := fraudRequest()
	req.Kind = sla.CaseKindApplication
	_, err := f.svc.SubmitCase(context.Background(), req)

	assert.ErrorIs(t, err, sla.ErrNoApplicableRule)
	assert.Empty(t, f.repo.cases)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DeadlinesResolved.WithLabelValues("application", "no_rule")))
}

func TestSubmitCaseValidation(t *testing.T) {
	f := newFixture(submittedAt)

	for name, mutate := range map[string]func(*SubmitRequest){
		"kind":  func(r *SubmitRequest) { r.Kind = "petition" },
		"type":  func(r *SubmitRequest) { r.CaseType = " " },
		"title": func(r *SubmitRequest) { r.Title = "" },
	} {
		t.Run(name, func(t *testing.T) {
			req := fraudRequest()
			mutate(&req)
			_, err := f.svc.SubmitCase(context.Background(), req)
			var validation *common_models.ValidationError
			assert.True(t, errors.As(err, &validation))
		})
	}
}

func TestDraftStartsClockOnSubmit(t *testing.T) {
	f := newFixture(submittedAt)

	req := fraudRequest()
	req.Draft = true
	c, err := f.svc.SubmitCase(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, c.Status)
	assert.Nil(t, c.SLADeadline)
	assert.Empty(t, f.timeline.entries)

	updated, err := f.svc.ChangeStatus(context.Background(), c.ID.Hex(), StatusChangeRequest{Status: StatusSubmitted})
	require.NoError(t, err)
	require.NotNil(t, updated.SLADeadline)
	assert.Equal(t, submittedAt, *updated.SubmittedAt)
	assert.Equal(t, []timeline.EntryType{timeline.EntrySubmitted, timeline.EntryStatusChanged}, f.timeline.types())

	stored := f.repo.cases[c.ID]
	assert.Equal(t, "Cyber fraud", stored.SLARule.Name)
	assert.Equal(t, int64(2), stored.Version)
}

func TestTerminalStatusFreezesCase(t *testing.T) {
	f := newFixture(submittedAt)
	c, err := f.svc.SubmitCase(context.Background(), fraudRequest())
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(context.Background(), c.ID.Hex(), StatusChangeRequest{Status: StatusApproved})
	var validation *common_models.ValidationError
	require.True(t, errors.As(err, &validation), "approved is an application status")

	closed, err := f.svc.ChangeStatus(context.Background(), c.ID.Hex(), StatusChangeRequest{Status: StatusClosed, Comment: "refund issued"})
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.Contains(t, f.timeline.types(), timeline.EntryClosed)

	_, err = f.svc.ChangeStatus(context.Background(), c.ID.Hex(), StatusChangeRequest{Status: StatusInvestigation})
	assert.ErrorIs(t, err, sla.ErrInvalidCaseState)

	status, err := f.svc.GetSLAStatus(context.Background(), c.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, sla.StateClosed, status.State)
}

func TestAssignRetriesOnConflict(t *testing.T) {
	f := newFixture(submittedAt)
	c, err := f.svc.SubmitCase(context.Background(), fraudRequest())
	require.NoError(t, err)

	f.repo.conflicts = 2
	updated, err := f.svc.Assign(context.Background(), c.ID.Hex(), AssignRequest{Role: "district_sp", Reason: "escalated"})
	require.NoError(t, err)
	assert.Equal(t, "district_sp", updated.AssignedRole)
	assert.Equal(t, "district_sp", f.repo.cases[c.ID].AssignedRole)

	last := f.timeline.entries[len(f.timeline.entries)-1]
	assert.Equal(t, timeline.EntryReassigned, last.Type)
	assert.True(t, last.IsAutomated)

	f.repo.conflicts = assignRetries + 1
	_, err = f.svc.Assign(context.Background(), c.ID.Hex(), AssignRequest{UserID: "io-4"})
	assert.ErrorIs(t, err, sla.ErrVersionConflict)
}

func TestOverdueAndUrgentViews(t *testing.T) {
	f := newFixture(submittedAt)
	c, err := f.svc.SubmitCase(context.Background(), fraudRequest())
	require.NoError(t, err)

	req := fraudRequest()
	req.Priority = "critical"
	_, err = f.svc.SubmitCase(context.Background(), req)
	require.NoError(t, err)

	urgent, err := f.svc.ListUrgent(context.Background())
	require.NoError(t, err)
	require.Len(t, urgent, 1)
	assert.Equal(t, "critical", urgent[0].Priority)

	late := newFixture(time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC))
	late.repo.cases = f.repo.cases

	overdue, err := late.svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.True(t, overdue[0].SLAStatus.IsOverdue)
	assert.Equal(t, sla.StateBreached, overdue[0].SLAStatus.State)

	counts, err := late.svc.CountOpenByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[sla.StateBreached])

	view, err := f.svc.GetCase(context.Background(), c.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, view.SLAStatus.TimeRemaining)
	// remaining time is wall clock, not operating hours
	assert.Equal(t, &sla.TimeRemaining{Hours: 74}, view.SLAStatus.TimeRemaining)
}
