package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type memoryAuditRepo struct {
	logs       []common_models.AuditLog
	lastFilter LogFilter
	lastLimit  int64
	lastOffset int64
}

func (r *memoryAuditRepo) Create(ctx context.Context, log common_models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func (r *memoryAuditRepo) List(ctx context.Context, filter LogFilter, limit, offset int64) ([]common_models.AuditLog, error) {
	r.lastFilter, r.lastLimit, r.lastOffset = filter, limit, offset
	return nil, nil
}

func (r *memoryAuditRepo) EnsureIndexes(ctx context.Context) error { return nil }

func TestLogChangeRecordsActor(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)

	ctx := context.WithValue(context.Background(), utils.UserClaimsKey, &utils.UserClaims{UserID: "officer-9"})
	require.NoError(t, svc.LogChange(ctx, common_models.AuditActionUpdate, "sla_rules", "r1", map[string]common_models.Change{
		"resolution_time": {Old: 72.0, New: 48.0},
	}))
	require.NoError(t, svc.LogChange(context.Background(), common_models.AuditActionEvaluation, "cases", "c1", nil))

	require.Len(t, repo.logs, 2)
	assert.Equal(t, "officer-9", repo.logs[0].ActorID)
	assert.Equal(t, SystemActor, repo.logs[1].ActorID)
	assert.False(t, repo.logs[0].ID.IsZero())
}

func TestListLogsNormalizesPaging(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)

	logs, err := svc.ListLogs(context.Background(), LogFilter{}, 3, 0)
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Equal(t, int64(10), repo.lastLimit)
	assert.Equal(t, int64(20), repo.lastOffset)
}

func TestLogChangeLinksCaseAndRule(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)

	require.NoError(t, svc.LogChange(context.Background(), common_models.AuditActionUpdate, ModuleCases, "case-1", nil))
	require.NoError(t, svc.LogChange(context.Background(), common_models.AuditActionUpdate, ModuleSLARules, "rule-1", nil))
	require.NoError(t, svc.LogChange(context.Background(), common_models.AuditActionCron, "cron", "sla_evaluation", nil))

	require.Len(t, repo.logs, 3)
	assert.Equal(t, "case-1", repo.logs[0].CaseID)
	assert.Empty(t, repo.logs[0].RuleID)
	assert.Equal(t, "rule-1", repo.logs[1].RuleID)
	assert.Empty(t, repo.logs[1].CaseID)
	assert.Empty(t, repo.logs[2].CaseID)
	assert.Empty(t, repo.logs[2].RuleID)
}

func TestListLogsRejectsEmptyWindow(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo)
	from := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	_, err := svc.ListLogs(context.Background(), LogFilter{From: &from, To: &from}, 1, 10)
	var validation *common_models.ValidationError
	assert.True(t, errors.As(err, &validation))

	to := from.Add(24 * time.Hour)
	_, err = svc.ListLogs(context.Background(), LogFilter{CaseID: "case-1", From: &from, To: &to}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "case-1", repo.lastFilter.CaseID)
}

func TestLogFilterQuery(t *testing.T) {
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter LogFilter
		want   bson.M
	}{
		{name: "empty", filter: LogFilter{}, want: bson.M{}},
		{
			name:   "case trail",
			filter: LogFilter{CaseID: "case-1", Action: common_models.AuditActionUpdate},
			want:   bson.M{"case_id": "case-1", "action": common_models.AuditActionUpdate},
		},
		{
			name:   "rule since",
			filter: LogFilter{RuleID: "rule-1", From: &from},
			want:   bson.M{"rule_id": "rule-1", "timestamp": bson.M{"$gte": from}},
		},
		{
			name:   "module record",
			filter: LogFilter{Module: ModuleCases, RecordID: "case-2", ActorID: "officer-9"},
			want:   bson.M{"module": ModuleCases, "record_id": "case-2", "actor_id": "officer-9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.query())
		})
	}
}
