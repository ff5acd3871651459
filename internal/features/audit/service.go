package audit

import (
	"context"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SystemActor is recorded for changes made by scheduled jobs
const SystemActor = "system"

type AuditService interface {
	LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error
	ListLogs(ctx context.Context, filter LogFilter, page, limit int64) ([]common_models.AuditLog, error)
}

type AuditServiceImpl struct {
	Repo AuditRepository
}

func NewAuditService(repo AuditRepository) AuditService {
	return &AuditServiceImpl{
		Repo: repo,
	}
}

// ActorFromContext returns the authenticated user id, or SystemActor
func ActorFromContext(ctx context.Context) string {
	if claims, ok := ctx.Value(utils.UserClaimsKey).(*utils.UserClaims); ok && claims.UserID != "" {
		return claims.UserID
	}
	return SystemActor
}

func (s *AuditServiceImpl) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	caseID, ruleID := subjectOf(module, recordID)
	log := common_models.AuditLog{
		ID:        primitive.NewObjectID(),
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		ActorID:   ActorFromContext(ctx),
		CaseID:    caseID,
		RuleID:    ruleID,
		Changes:   changes,
		Timestamp: time.Now(),
	}

	return s.Repo.Create(ctx, log)
}

func (s *AuditServiceImpl) ListLogs(ctx context.Context, filter LogFilter, page, limit int64) ([]common_models.AuditLog, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, common_models.Invalid("from must be before to")
	}

	page, limit = common_models.NormalizePage(page, limit)
	offset := (page - 1) * limit

	logs, err := s.Repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []common_models.AuditLog{}
	}
	return logs, nil
}
