package sla

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaseKind distinguishes complaints from service applications
type CaseKind string

const (
	CaseKindComplaint   CaseKind = "complaint"
	CaseKindApplication CaseKind = "application"
)

// CaseTypeAll is the generic case-type filter value
const CaseTypeAll = "all"

// DayHours is the operating window of one weekday in local "HH:MM" time
type DayHours struct {
	Start string `json:"start" bson:"start" example:"09:00"`
	End   string `json:"end" bson:"end" example:"17:00"`
}

// BusinessHours maps a lower-case weekday name to its window. A missing or nil entry is a non-operating day.
type BusinessHours map[string]*DayHours

// DefaultBusinessHours is Monday to Friday, 09:00-17:00
func DefaultBusinessHours() BusinessHours {
	day := func() *DayHours { return &DayHours{Start: "09:00", End: "17:00"} }
	return BusinessHours{
		"monday":    day(),
		"tuesday":   day(),
		"wednesday": day(),
		"thursday":  day(),
		"friday":    day(),
		"saturday":  nil,
		"sunday":    nil,
	}
}

// ActionKind is the closed set of escalation side effects
type ActionKind string

const (
	ActionNotify   ActionKind = "notify"
	ActionReassign ActionKind = "reassign"
	ActionLogOnly  ActionKind = "log_only"
	ActionCustom   ActionKind = "custom"
)

// NotifyAction asks the notification collaborator to reach the listed recipients
type NotifyAction struct {
	Recipients []string `json:"recipients" bson:"recipients"` // user ids or role names
	Channel    string   `json:"channel,omitempty" bson:"channel,omitempty" example:"in_app"`
	Message    string   `json:"message,omitempty" bson:"message,omitempty"`
}

// ReassignAction moves the case to another officer or role queue
type ReassignAction struct {
	ToUserID string `json:"to_user_id,omitempty" bson:"to_user_id,omitempty"`
	ToRole   string `json:"to_role,omitempty" bson:"to_role,omitempty" example:"district_sp"`
}

// CustomAction carries an opaque payload and an optional script
type CustomAction struct {
	Name    string                 `json:"name" bson:"name"`
	Payload map[string]interface{} `json:"payload,omitempty" bson:"payload,omitempty"`
	Script  string                 `json:"script,omitempty" bson:"script,omitempty"`
}

// Action is a tagged variant: Kind selects which of the payload fields is set.
type Action struct {
	Kind     ActionKind      `json:"kind" bson:"kind" example:"notify"`
	Notify   *NotifyAction   `json:"notify,omitempty" bson:"notify,omitempty"`
	Reassign *ReassignAction `json:"reassign,omitempty" bson:"reassign,omitempty"`
	Custom   *CustomAction   `json:"custom,omitempty" bson:"custom,omitempty"`
}

// EscalationLevel is one rung of a rule's escalation ladder
type EscalationLevel struct {
	ThresholdPercent float64  `json:"threshold_percent" bson:"threshold_percent" example:"75"`
	Level            int      `json:"level" bson:"level" example:"1"`
	Actions          []Action `json:"actions,omitempty" bson:"actions,omitempty"`
}

// Rule is an SLA policy. Rules are soft-disabled, never deleted, so that historical
// computations stay reproducible.
// @Description SLA rule with targets, calendar and escalation ladder
type Rule struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty" example:"507f1f77bcf86cd799439011"`
	Name        string             `json:"name" bson:"name" example:"Financial fraud - high"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`

	// Filters. Empty means wildcard.
	CaseKind   CaseKind          `json:"case_kind,omitempty" bson:"case_kind,omitempty" example:"complaint"`
	CaseType   string            `json:"case_type,omitempty" bson:"case_type,omitempty" example:"financial_fraud"`
	Priority   string            `json:"priority,omitempty" bson:"priority,omitempty" example:"high"`
	Severity   string            `json:"severity,omitempty" bson:"severity,omitempty" example:"high"`
	Conditions map[string]string `json:"conditions,omitempty" bson:"conditions,omitempty"`

	// Targets in hours. Resolution is mandatory.
	AcknowledgmentTime float64 `json:"acknowledgment_time,omitempty" bson:"acknowledgment_time,omitempty" example:"4"`
	FirstResponseTime  float64 `json:"first_response_time,omitempty" bson:"first_response_time,omitempty" example:"24"`
	ResolutionTime     float64 `json:"resolution_time" bson:"resolution_time" example:"72"`

	EscalationLevels  []EscalationLevel `json:"escalation_levels,omitempty" bson:"escalation_levels,omitempty"`
	AutoEscalate      bool              `json:"auto_escalate" bson:"auto_escalate" example:"true"`
	WarningThresholds []float64         `json:"warning_thresholds,omitempty" bson:"warning_thresholds,omitempty" example:"75,90"`
	WarningActions    []Action          `json:"warning_actions,omitempty" bson:"warning_actions,omitempty"`
	BreachActions     []Action          `json:"breach_actions,omitempty" bson:"breach_actions,omitempty"`

	// Calendar
	BusinessHoursOnly bool          `json:"business_hours_only" bson:"business_hours_only" example:"true"`
	BusinessHours     BusinessHours `json:"business_hours,omitempty" bson:"business_hours,omitempty"`
	Holidays          []string      `json:"holidays,omitempty" bson:"holidays,omitempty" example:"2026-01-26,2026-08-15"`
	Timezone          string        `json:"timezone" bson:"timezone" example:"Asia/Kolkata"`

	// Lifecycle
	IsActive       bool       `json:"is_active" bson:"is_active" example:"true"`
	IsDefault      bool       `json:"is_default" bson:"is_default" example:"false"`
	EffectiveFrom  time.Time  `json:"effective_from" bson:"effective_from"`
	EffectiveUntil *time.Time `json:"effective_until,omitempty" bson:"effective_until,omitempty"`
	Revision       int        `json:"revision" bson:"revision" example:"1"`

	CreatedBy string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsEffective reports whether the rule is active and its window contains at.
func (r *Rule) IsEffective(at time.Time) bool {
	if !r.IsActive {
		return false
	}
	if !r.EffectiveFrom.IsZero() && at.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveUntil != nil && at.After(*r.EffectiveUntil) {
		return false
	}
	return true
}

// IsHoliday reports whether the local date string (YYYY-MM-DD) is a holiday for the rule.
func (r *Rule) IsHoliday(date string) bool {
	for _, h := range r.Holidays {
		if h == date {
			return true
		}
	}
	return false
}

// WarningThresholdHours returns the elapsed hours at which the i-th warning fires.
func (r *Rule) WarningThresholdHours(i int) (float64, bool) {
	if i < 0 || i >= len(r.WarningThresholds) {
		return 0, false
	}
	return r.ResolutionTime * r.WarningThresholds[i] / 100, true
}

// IsBreached reports whether elapsed hours exceed the resolution target.
func (r *Rule) IsBreached(elapsedHours float64) bool {
	return elapsedHours > r.ResolutionTime
}

// RuleRef returns the identity recorded on a case when the rule is snapshotted
func (r *Rule) RuleRef() string {
	if r.ID.IsZero() {
		return r.Name
	}
	return r.ID.Hex()
}

// CaseAttributes is the classification the rule selector matches against
type CaseAttributes struct {
	Kind       CaseKind          `json:"kind" bson:"kind"`
	CaseType   string            `json:"case_type" bson:"case_type"`
	Priority   string            `json:"priority" bson:"priority"`
	Severity   string            `json:"severity" bson:"severity"`
	Attributes map[string]string `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

// Case is the SLA view of a complaint or application
type Case struct {
	ID              string
	Attributes      CaseAttributes
	SubmittedAt     *time.Time
	SLADeadline     *time.Time
	EscalationLevel int
	EscalatedAt     *time.Time
	FiredWarnings   []float64
	BreachNotified  bool
	Terminal        bool
	Rule            *Rule // snapshot taken at submission; nil if never resolved
	Version         int64
}

// SLAUpdate is the set of SLA fields the engine is allowed to write back
type SLAUpdate struct {
	RuleID          string     `json:"rule_id,omitempty"`
	Rule            *Rule      `json:"-"`
	SLADeadline     *time.Time `json:"sla_deadline,omitempty"`
	EscalationLevel int        `json:"escalation_level"`
	EscalatedAt     *time.Time `json:"escalated_at,omitempty"`
	FiredWarnings   []float64  `json:"fired_warnings,omitempty"`
	BreachNotified  bool       `json:"breach_notified"`
}

// Resolution is the result of resolving a rule and its deadlines at submission
type Resolution struct {
	RuleID                 string     `json:"rule_id"`
	Rule                   *Rule      `json:"rule"`
	SLADeadline            time.Time  `json:"sla_deadline"`
	FirstResponseDeadline  *time.Time `json:"first_response_deadline,omitempty"`
	AcknowledgmentDeadline *time.Time `json:"acknowledgment_deadline,omitempty"`
}

// EventKind classifies emitted events
type EventKind string

const (
	EventEscalation EventKind = "escalation"
	EventWarning    EventKind = "warning"
	EventBreach     EventKind = "breach"
)

// Event is an ephemeral transition value handed to timeline/notification collaborators.
type Event struct {
	ID               string    `json:"id"`
	Kind             EventKind `json:"kind"`
	CaseID           string    `json:"case_id"`
	RuleID           string    `json:"rule_id"`
	FromLevel        int       `json:"from_level"`
	ToLevel          int       `json:"to_level"`
	ThresholdPercent float64   `json:"threshold_percent,omitempty"`
	ElapsedPercent   float64   `json:"elapsed_percent"`
	Reason           string    `json:"reason"`
	OccurredAt       time.Time `json:"occurred_at"`
	RequiredActions  []Action  `json:"required_actions,omitempty"`
}

// Evaluation is the outcome of one evaluation tick for one case
type Evaluation struct {
	CaseID             string    `json:"case_id"`
	State              State     `json:"state"`
	EscalationLevel    int       `json:"escalation_level"`
	ElapsedHours       float64   `json:"elapsed_hours"`
	ElapsedPercent     float64   `json:"elapsed_percent"`
	Events             []Event   `json:"events"`
	NewlyFiredWarnings []float64 `json:"newly_fired_warnings"`
	Update             SLAUpdate `json:"update"`
	Resolved           bool      `json:"resolved"` // rule and deadline were resolved during this tick
}

// Changed reports whether the evaluation must be persisted
func (e *Evaluation) Changed() bool {
	return e.Resolved || len(e.Events) > 0
}

// TimeRemaining is the read-only countdown shown in list/detail views
type TimeRemaining struct {
	Overdue bool  `json:"overdue"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
}
