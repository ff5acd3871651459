package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/features/audit"
	"go-cats/internal/features/timeline"
	"go-cats/internal/metrics"
	"go-cats/pkg/sla"
	"go-cats/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	auditModule = audit.ModuleCases

	// assignRetries bounds the reload-and-retry loop when an assignment races an evaluation
	assignRetries = 3
)

type CaseService interface {
	SubmitCase(ctx context.Context, req SubmitRequest) (*Case, error)
	GetCase(ctx context.Context, id string) (*CaseView, error)
	GetByNumber(ctx context.Context, number string) (*CaseView, error)
	ListCases(ctx context.Context, filter CaseFilter, page, limit int64) ([]CaseView, common_models.Page, error)
	ListOverdue(ctx context.Context) ([]CaseView, error)
	ListUrgent(ctx context.Context) ([]CaseView, error)
	GetSLAStatus(ctx context.Context, id string) (*sla.Status, error)
	ChangeStatus(ctx context.Context, id string, req StatusChangeRequest) (*Case, error)
	Assign(ctx context.Context, id string, req AssignRequest) (*Case, error)
	CountOpenByState(ctx context.Context) (map[sla.State]int, error)
}

type CaseServiceImpl struct {
	Repo            CaseRepository
	Engine          *sla.Engine
	TimelineService timeline.TimelineService
	AuditService    audit.AuditService
	Metrics         *metrics.Metrics
}

func NewCaseService(
	repo CaseRepository,
	engine *sla.Engine,
	timelineService timeline.TimelineService,
	auditService audit.AuditService,
	m *metrics.Metrics,
) CaseService {
	return &CaseServiceImpl{
		Repo:            repo,
		Engine:          engine,
		TimelineService: timelineService,
		AuditService:    auditService,
		Metrics:         m,
	}
}

// SubmitCase stores a new case. Unless it is a draft, the SLA rule is resolved and
// snapshotted and the deadlines are fixed at submission time.
func (s *CaseServiceImpl) SubmitCase(ctx context.Context, req SubmitRequest) (*Case, error) {
	if req.Kind != sla.CaseKindComplaint && req.Kind != sla.CaseKindApplication {
		return nil, common_models.Invalid("kind must be complaint or application")
	}
	req.CaseType = utils.NormalizeKey(req.CaseType)
	req.Priority = utils.NormalizeKey(req.Priority)
	req.Severity = utils.NormalizeKey(req.Severity)
	if req.CaseType == "" {
		return nil, common_models.Invalid("case_type is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, common_models.Invalid("title is required")
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}

	now := s.Engine.Now()
	c := &Case{
		Kind:        req.Kind,
		CaseType:    req.CaseType,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Severity:    req.Severity,
		Attributes:  req.Attributes,
		Status:      StatusDraft,
		SubmittedBy: audit.ActorFromContext(ctx),
	}

	if !req.Draft {
		if err := s.startClock(ctx, c, now); err != nil {
			return nil, err
		}
	}

	number, err := s.nextCaseNumber(ctx, c.Kind, now)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate case number: %w", err)
	}
	c.CaseNumber = number

	if err := s.Repo.Create(ctx, c); err != nil {
		return nil, err
	}

	if c.SubmittedAt != nil {
		s.recordSubmitted(ctx, c)
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, auditModule, c.ID.Hex(), map[string]common_models.Change{
		"case_number": {New: c.CaseNumber},
		"status":      {New: c.Status},
		"sla_rule_id": {New: c.SLARuleID},
	})

	return c, nil
}

// startClock resolves the rule and deadlines and marks the case submitted at now
func (s *CaseServiceImpl) startClock(ctx context.Context, c *Case, now time.Time) error {
	res, err := s.Engine.ResolveRuleAndDeadline(ctx, c.SLAAttributes(), now)
	s.Metrics.ObserveResolution(c.Kind, err)
	if err != nil {
		return err
	}

	c.Status = StatusSubmitted
	c.SubmittedAt = &now
	c.SLARuleID = res.RuleID
	c.SLARule = res.Rule
	c.SLADeadline = &res.SLADeadline
	c.FirstResponseDeadline = res.FirstResponseDeadline
	c.AcknowledgmentDeadline = res.AcknowledgmentDeadline
	return nil
}

func (s *CaseServiceImpl) recordSubmitted(ctx context.Context, c *Case) {
	_ = s.TimelineService.Record(ctx, &timeline.Entry{
		CaseID:      c.ID.Hex(),
		Type:        timeline.EntrySubmitted,
		Description: fmt.Sprintf("%s %s submitted", c.Kind, c.CaseNumber),
		Metadata: map[string]interface{}{
			"sla_rule_id":  c.SLARuleID,
			"sla_deadline": c.SLADeadline,
		},
	})
}

// nextCaseNumber builds CC/AP + yyyymm + a six digit sequence that restarts every year
func (s *CaseServiceImpl) nextCaseNumber(ctx context.Context, kind sla.CaseKind, now time.Time) (string, error) {
	prefix := NumberPrefix(kind)
	seq, err := s.Repo.NextSequence(ctx, fmt.Sprintf("%s%04d", prefix, now.Year()))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d%02d%06d", prefix, now.Year(), int(now.Month()), seq), nil
}

func (s *CaseServiceImpl) load(ctx context.Context, id string) (*Case, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common_models.Invalid("invalid case ID")
	}
	return s.Repo.FindByID(ctx, oid)
}

func (s *CaseServiceImpl) view(c *Case, now time.Time) CaseView {
	return CaseView{Case: c, SLAStatus: sla.StatusOf(c.SLACase(), now)}
}

func (s *CaseServiceImpl) views(cases []Case) []CaseView {
	now := s.Engine.Now()
	out := make([]CaseView, 0, len(cases))
	for i := range cases {
		out = append(out, s.view(&cases[i], now))
	}
	return out
}

func (s *CaseServiceImpl) GetCase(ctx context.Context, id string) (*CaseView, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(c, s.Engine.Now())
	return &v, nil
}

func (s *CaseServiceImpl) GetByNumber(ctx context.Context, number string) (*CaseView, error) {
	c, err := s.Repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	v := s.view(c, s.Engine.Now())
	return &v, nil
}

func (s *CaseServiceImpl) ListCases(ctx context.Context, filter CaseFilter, page, limit int64) ([]CaseView, common_models.Page, error) {
	page, limit = common_models.NormalizePage(page, limit)

	cases, total, err := s.Repo.FindAll(ctx, filter, page, limit)
	if err != nil {
		return nil, common_models.Page{}, err
	}
	return s.views(cases), common_models.Page{Page: page, Limit: limit, Total: total}, nil
}

func (s *CaseServiceImpl) ListOverdue(ctx context.Context) ([]CaseView, error) {
	cases, err := s.Repo.FindOverdue(ctx, s.Engine.Now())
	if err != nil {
		return nil, err
	}
	return s.views(cases), nil
}

func (s *CaseServiceImpl) ListUrgent(ctx context.Context) ([]CaseView, error) {
	cases, err := s.Repo.FindUrgent(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(cases), nil
}

func (s *CaseServiceImpl) GetSLAStatus(ctx context.Context, id string) (*sla.Status, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	status := sla.StatusOf(c.SLACase(), s.Engine.Now())
	return &status, nil
}

// ChangeStatus moves the case to req.Status. Leaving draft starts the SLA clock;
// entering a terminal status freezes the SLA fields and stamps closed_at.
func (s *CaseServiceImpl) ChangeStatus(ctx context.Context, id string, req StatusChangeRequest) (*Case, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !IsValidStatus(c.Kind, req.Status) {
		return nil, common_models.Invalid(fmt.Sprintf("status %q is not valid for a %s", req.Status, c.Kind))
	}
	if c.Terminal() {
		return nil, fmt.Errorf("case %s is %s: %w", c.CaseNumber, c.Status, sla.ErrInvalidCaseState)
	}
	if req.Status == c.Status {
		return nil, common_models.Invalid(fmt.Sprintf("case is already %s", c.Status))
	}
	if req.Status == StatusDraft {
		return nil, common_models.Invalid("a submitted case cannot return to draft")
	}

	now := s.Engine.Now()
	oldStatus := c.Status
	updates := bson.M{"status": req.Status}

	if c.SubmittedAt == nil {
		if err := s.startClock(ctx, c, now); err != nil {
			return nil, err
		}
		updates["submitted_at"] = c.SubmittedAt
		updates["sla_rule_id"] = c.SLARuleID
		updates["sla_rule"] = c.SLARule
		updates["sla_deadline"] = c.SLADeadline
		updates["first_response_deadline"] = c.FirstResponseDeadline
		updates["acknowledgment_deadline"] = c.AcknowledgmentDeadline
	}
	c.Status = req.Status

	if c.Status == StatusUnderReview && c.AcknowledgedAt == nil {
		c.AcknowledgedAt = &now
		updates["acknowledged_at"] = now
	}
	if c.Terminal() {
		c.ClosedAt = &now
		updates["closed_at"] = now
	}

	if err := s.Repo.Update(ctx, c.ID, c.Version, updates); err != nil {
		return nil, err
	}
	c.Version++

	if oldStatus == StatusDraft {
		s.recordSubmitted(ctx, c)
	}
	_ = s.TimelineService.Record(ctx, &timeline.Entry{
		CaseID:      c.ID.Hex(),
		Type:        timeline.EntryStatusChanged,
		Description: fmt.Sprintf("Status changed from %s to %s", oldStatus, c.Status),
		Metadata: map[string]interface{}{
			"from":    oldStatus,
			"to":      c.Status,
			"comment": req.Comment,
		},
	})
	if c.Terminal() {
		_ = s.TimelineService.Record(ctx, &timeline.Entry{
			CaseID:      c.ID.Hex(),
			Type:        timeline.EntryClosed,
			Description: fmt.Sprintf("Case closed as %s", c.Status),
			Metadata: map[string]interface{}{
				"overdue": c.SLADeadline != nil && now.After(*c.SLADeadline),
			},
		})
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, auditModule, c.ID.Hex(), map[string]common_models.Change{
		"status": {Old: oldStatus, New: c.Status},
	})

	return c, nil
}

// Assign hands the case to a user or role queue. Concurrent writers are retried by reloading the case.
func (s *CaseServiceImpl) Assign(ctx context.Context, id string, req AssignRequest) (*Case, error) {
	if req.UserID == "" && req.Role == "" {
		return nil, common_models.Invalid("user_id or role is required")
	}

	for attempt := 0; ; attempt++ {
		c, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.Terminal() {
			return nil, fmt.Errorf("case %s is %s: %w", c.CaseNumber, c.Status, sla.ErrInvalidCaseState)
		}

		oldUser, oldRole := c.AssignedTo, c.AssignedRole
		err = s.Repo.Update(ctx, c.ID, c.Version, bson.M{
			"assigned_to":   req.UserID,
			"assigned_role": req.Role,
		})
		if errors.Is(err, sla.ErrVersionConflict) && attempt < assignRetries {
			continue
		}
		if err != nil {
			return nil, err
		}

		c.AssignedTo, c.AssignedRole = req.UserID, req.Role
		c.Version++

		_ = s.TimelineService.Record(ctx, &timeline.Entry{
			CaseID:      c.ID.Hex(),
			Type:        timeline.EntryReassigned,
			Description: assignmentDescription(req),
			IsAutomated: audit.ActorFromContext(ctx) == audit.SystemActor,
			Metadata: map[string]interface{}{
				"from_user": oldUser,
				"from_role": oldRole,
				"to_user":   req.UserID,
				"to_role":   req.Role,
			},
		})
		_ = s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, auditModule, c.ID.Hex(), map[string]common_models.Change{
			"assigned_to":   {Old: oldUser, New: req.UserID},
			"assigned_role": {Old: oldRole, New: req.Role},
		})
		return c, nil
	}
}

func assignmentDescription(req AssignRequest) string {
	target := req.UserID
	if target == "" {
		target = "role " + req.Role
	}
	if req.Reason != "" {
		return fmt.Sprintf("Assigned to %s: %s", target, req.Reason)
	}
	return "Assigned to " + target
}

// CountOpenByState tallies open cases by their derived SLA state
func (s *CaseServiceImpl) CountOpenByState(ctx context.Context) (map[sla.State]int, error) {
	now := s.Engine.Now()
	counts := map[sla.State]int{
		sla.StateNoDeadline: 0,
		sla.StateWithinSLA:  0,
		sla.StateWarning:    0,
		sla.StateBreached:   0,
	}
	err := s.Repo.ForEachOpenCase(ctx, func(c sla.Case) error {
		counts[sla.StateOf(c, now)]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
