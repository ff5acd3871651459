package slarule

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/config"
	"go-cats/internal/features/audit"
	"go-cats/pkg/sla"
	"go-cats/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const auditModule = audit.ModuleSLARules

type RuleService interface {
	CreateRule(ctx context.Context, rule *sla.Rule) error
	GetRule(ctx context.Context, id string) (*sla.Rule, error)
	ListRules(ctx context.Context, filter RuleFilter) ([]sla.Rule, error)
	ListEffective(ctx context.Context, at time.Time) ([]sla.Rule, error)
	ListExpired(ctx context.Context) ([]sla.Rule, error)
	UpdateRule(ctx context.Context, id string, apply func(*sla.Rule) error) (*sla.Rule, error)
	DisableRule(ctx context.Context, id string) error
	AddHoliday(ctx context.Context, id string, date string) (*sla.Rule, error)
	RemoveHoliday(ctx context.Context, id string, date string) (*sla.Rule, error)
	SetDefault(ctx context.Context, id string) (*sla.Rule, error)
	Preview(ctx context.Context, req PreviewRequest) (*sla.Resolution, error)
}

type RuleServiceImpl struct {
	Repo            RuleRepository
	Engine          *sla.Engine
	AuditService    audit.AuditService
	DefaultTimezone string
}

func NewRuleService(repo RuleRepository, engine *sla.Engine, auditService audit.AuditService, cfg *config.Config) RuleService {
	return &RuleServiceImpl{
		Repo:            repo,
		Engine:          engine,
		AuditService:    auditService,
		DefaultTimezone: cfg.DefaultTimezone,
	}
}

func (s *RuleServiceImpl) CreateRule(ctx context.Context, rule *sla.Rule) error {
	rule.ID = primitive.NilObjectID
	rule.Revision = 1
	rule.IsDefault = false
	normalizeFilters(rule)
	if rule.BusinessHoursOnly && rule.BusinessHours == nil {
		rule.BusinessHours = sla.DefaultBusinessHours()
	}
	if rule.EffectiveFrom.IsZero() {
		rule.EffectiveFrom = s.Engine.Now()
	}
	if rule.Timezone == "" {
		rule.Timezone = s.DefaultTimezone
	}
	sort.Strings(rule.Holidays)

	if err := rule.Validate(); err != nil {
		return err
	}

	rule.CreatedBy = audit.ActorFromContext(ctx)
	rule.UpdatedBy = rule.CreatedBy

	if err := s.Repo.Create(ctx, rule); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, auditModule, rule.ID.Hex(), map[string]common_models.Change{
		"rule": {New: rule},
	})

	return nil
}

func (s *RuleServiceImpl) GetRule(ctx context.Context, id string) (*sla.Rule, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common_models.Invalid("invalid rule ID")
	}
	return s.Repo.FindByID(ctx, oid)
}

func (s *RuleServiceImpl) ListRules(ctx context.Context, filter RuleFilter) ([]sla.Rule, error) {
	rules, err := s.Repo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []sla.Rule{}
	}
	return rules, nil
}

// ListEffective returns the active rules whose effective window contains at
func (s *RuleServiceImpl) ListEffective(ctx context.Context, at time.Time) ([]sla.Rule, error) {
	active := true
	rules, err := s.Repo.FindAll(ctx, RuleFilter{IsActive: &active})
	if err != nil {
		return nil, err
	}

	effective := []sla.Rule{}
	for _, r := range rules {
		if r.IsEffective(at) {
			effective = append(effective, r)
		}
	}
	return effective, nil
}

func (s *RuleServiceImpl) ListExpired(ctx context.Context) ([]sla.Rule, error) {
	rules, err := s.Repo.FindExpired(ctx, s.Engine.Now())
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []sla.Rule{}
	}
	return rules, nil
}

// UpdateRule applies a change to the stored rule, validates the merged result and stores it
// with the next revision. Identity, lifecycle bookkeeping and the default flag cannot be
// changed through apply.
func (s *RuleServiceImpl) UpdateRule(ctx context.Context, id string, apply func(*sla.Rule) error) (*sla.Rule, error) {
	return s.mutate(ctx, id, common_models.AuditActionUpdate, func(r *sla.Rule) error {
		keep := *r
		if err := apply(r); err != nil {
			return common_models.Invalid(err.Error())
		}
		r.ID = keep.ID
		r.IsDefault = keep.IsDefault
		r.CreatedAt = keep.CreatedAt
		r.CreatedBy = keep.CreatedBy
		if r.BusinessHoursOnly && r.BusinessHours == nil {
			r.BusinessHours = sla.DefaultBusinessHours()
		}
		sort.Strings(r.Holidays)
		return nil
	})
}

// DisableRule is the delete operation: rules are deactivated, never removed
func (s *RuleServiceImpl) DisableRule(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, common_models.AuditActionDelete, func(r *sla.Rule) error {
		r.IsActive = false
		r.IsDefault = false
		return nil
	})
	return err
}

func (s *RuleServiceImpl) AddHoliday(ctx context.Context, id string, date string) (*sla.Rule, error) {
	if _, err := time.Parse(HolidayLayout, date); err != nil {
		return nil, common_models.Invalid(fmt.Sprintf("invalid holiday date %q, expected YYYY-MM-DD", date))
	}

	return s.mutate(ctx, id, common_models.AuditActionUpdate, func(r *sla.Rule) error {
		if !r.IsHoliday(date) {
			r.Holidays = append(r.Holidays, date)
			sort.Strings(r.Holidays)
		}
		return nil
	})
}

func (s *RuleServiceImpl) RemoveHoliday(ctx context.Context, id string, date string) (*sla.Rule, error) {
	return s.mutate(ctx, id, common_models.AuditActionUpdate, func(r *sla.Rule) error {
		kept := make([]string, 0, len(r.Holidays))
		for _, h := range r.Holidays {
			if h != date {
				kept = append(kept, h)
			}
		}
		r.Holidays = kept
		return nil
	})
}

// SetDefault makes the rule the system fallback and clears the flag everywhere else
func (s *RuleServiceImpl) SetDefault(ctx context.Context, id string) (*sla.Rule, error) {
	rule, err := s.mutate(ctx, id, common_models.AuditActionUpdate, func(r *sla.Rule) error {
		if !r.IsActive {
			return common_models.Invalid("an inactive rule cannot be the default")
		}
		r.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.Repo.ClearDefault(ctx, rule.ID); err != nil {
		return nil, fmt.Errorf("failed to clear previous default rule: %w", err)
	}
	return rule, nil
}

// Preview resolves the rule and deadlines a case with these attributes would get, without storing anything
func (s *RuleServiceImpl) Preview(ctx context.Context, req PreviewRequest) (*sla.Resolution, error) {
	if req.Kind != sla.CaseKindComplaint && req.Kind != sla.CaseKindApplication {
		return nil, common_models.Invalid("kind must be complaint or application")
	}

	at := s.Engine.Now()
	if req.SubmittedAt != nil {
		at = *req.SubmittedAt
	}
	return s.Engine.ResolveRuleAndDeadline(ctx, req.CaseAttributes(), at)
}

// mutate is the read-modify-write path shared by every rule change
func (s *RuleServiceImpl) mutate(ctx context.Context, id string, action common_models.AuditAction, change func(*sla.Rule) error) (*sla.Rule, error) {
	current, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *current

	next := cloneRule(current)
	if err := change(next); err != nil {
		return nil, err
	}
	normalizeFilters(next)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	next.Revision = before.Revision + 1
	next.UpdatedBy = audit.ActorFromContext(ctx)

	if err := s.Repo.Replace(ctx, next, before.Revision); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, action, auditModule, next.ID.Hex(), diffRules(&before, next))

	return next, nil
}

// cloneRule copies the slices and maps apply functions may touch in place
func cloneRule(r *sla.Rule) *sla.Rule {
	c := *r
	c.Holidays = append([]string(nil), r.Holidays...)
	c.WarningThresholds = append([]float64(nil), r.WarningThresholds...)
	c.EscalationLevels = append([]sla.EscalationLevel(nil), r.EscalationLevels...)
	if r.BusinessHours != nil {
		c.BusinessHours = make(sla.BusinessHours, len(r.BusinessHours))
		for day, h := range r.BusinessHours {
			if h != nil {
				copied := *h
				h = &copied
			}
			c.BusinessHours[day] = h
		}
	}
	if r.Conditions != nil {
		c.Conditions = make(map[string]string, len(r.Conditions))
		for k, v := range r.Conditions {
			c.Conditions[k] = v
		}
	}
	return &c
}

func diffRules(prev, next *sla.Rule) map[string]common_models.Change {
	fields := map[string][2]interface{}{
		"name":                {prev.Name, next.Name},
		"case_kind":           {prev.CaseKind, next.CaseKind},
		"case_type":           {prev.CaseType, next.CaseType},
		"priority":            {prev.Priority, next.Priority},
		"severity":            {prev.Severity, next.Severity},
		"conditions":          {prev.Conditions, next.Conditions},
		"resolution_time":     {prev.ResolutionTime, next.ResolutionTime},
		"first_response_time": {prev.FirstResponseTime, next.FirstResponseTime},
		"acknowledgment_time": {prev.AcknowledgmentTime, next.AcknowledgmentTime},
		"escalation_levels":   {prev.EscalationLevels, next.EscalationLevels},
		"auto_escalate":       {prev.AutoEscalate, next.AutoEscalate},
		"warning_thresholds":  {prev.WarningThresholds, next.WarningThresholds},
		"business_hours_only": {prev.BusinessHoursOnly, next.BusinessHoursOnly},
		"business_hours":      {prev.BusinessHours, next.BusinessHours},
		"holidays":            {prev.Holidays, next.Holidays},
		"timezone":            {prev.Timezone, next.Timezone},
		"is_active":           {prev.IsActive, next.IsActive},
		"is_default":          {prev.IsDefault, next.IsDefault},
		"effective_from":      {prev.EffectiveFrom, next.EffectiveFrom},
		"effective_until":     {prev.EffectiveUntil, next.EffectiveUntil},
	}

	changes := make(map[string]common_models.Change)
	for field, pair := range fields {
		if !reflect.DeepEqual(pair[0], pair[1]) {
			changes[field] = common_models.Change{Old: pair[0], New: pair[1]}
		}
	}
	return changes
}

// normalizeFilters keys the classification filters the same way cases are keyed
func normalizeFilters(rule *sla.Rule) {
	if rule.CaseType != sla.CaseTypeAll {
		rule.CaseType = utils.NormalizeKey(rule.CaseType)
	}
	rule.Priority = utils.NormalizeKey(rule.Priority)
	rule.Severity = utils.NormalizeKey(rule.Severity)
}
