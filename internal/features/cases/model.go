package cases

import (
	"time"

	"go-cats/pkg/sla"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaseStatus is the workflow status of a complaint or application
type CaseStatus string

const (
	StatusDraft       CaseStatus = "draft"
	StatusSubmitted   CaseStatus = "submitted"
	StatusUnderReview CaseStatus = "under_review"
	StatusRejected    CaseStatus = "rejected"

	// complaint workflow
	StatusInvestigation CaseStatus = "investigation"
	StatusPendingInfo   CaseStatus = "pending_info"
	StatusActionTaken   CaseStatus = "action_taken"
	StatusClosed        CaseStatus = "closed"
	StatusAppealed      CaseStatus = "appealed"

	// application workflow
	StatusDocumentsRequired CaseStatus = "documents_required"
	StatusProcessing        CaseStatus = "processing"
	StatusApproved          CaseStatus = "approved"
	StatusCompleted         CaseStatus = "completed"
	StatusCancelled         CaseStatus = "cancelled"
)

var statusesByKind = map[sla.CaseKind][]CaseStatus{
	sla.CaseKindComplaint: {
		StatusDraft, StatusSubmitted, StatusUnderReview, StatusInvestigation, StatusPendingInfo,
		StatusActionTaken, StatusClosed, StatusRejected, StatusAppealed,
	},
	sla.CaseKindApplication: {
		StatusDraft, StatusSubmitted, StatusUnderReview, StatusDocumentsRequired, StatusProcessing,
		StatusApproved, StatusRejected, StatusCompleted, StatusCancelled,
	},
}

var terminalByKind = map[sla.CaseKind][]CaseStatus{
	sla.CaseKindComplaint:   {StatusClosed, StatusRejected},
	sla.CaseKindApplication: {StatusApproved, StatusRejected, StatusCompleted, StatusCancelled},
}

// TerminalStatuses is the union of terminal statuses across kinds
func TerminalStatuses() []CaseStatus {
	return []CaseStatus{StatusClosed, StatusRejected, StatusApproved, StatusCompleted, StatusCancelled}
}

// IsValidStatus reports whether status belongs to the workflow of kind
func IsValidStatus(kind sla.CaseKind, status CaseStatus) bool {
	for _, s := range statusesByKind[kind] {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status ends the SLA clock for kind
func IsTerminal(kind sla.CaseKind, status CaseStatus) bool {
	for _, s := range terminalByKind[kind] {
		if s == status {
			return true
		}
	}
	return false
}

// NumberPrefix is the case-number prefix for kind
func NumberPrefix(kind sla.CaseKind) string {
	if kind == sla.CaseKindApplication {
		return "AP"
	}
	return "CC"
}

// Case is a complaint or service application together with its SLA bookkeeping
type Case struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CaseNumber  string             `json:"case_number" bson:"case_number"`
	Kind        sla.CaseKind       `json:"kind" bson:"kind"`
	CaseType    string             `json:"case_type" bson:"case_type"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Priority    string             `json:"priority" bson:"priority"`
	Severity    string             `json:"severity,omitempty" bson:"severity,omitempty"`
	Attributes  map[string]string  `json:"attributes,omitempty" bson:"attributes,omitempty"`

	Status      CaseStatus `json:"status" bson:"status"`
	SubmittedBy string     `json:"submitted_by,omitempty" bson:"submitted_by,omitempty"`

	// Assignment
	AssignedTo   string `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	AssignedRole string `json:"assigned_role,omitempty" bson:"assigned_role,omitempty"`

	// Milestones
	SubmittedAt    *time.Time `json:"submitted_at,omitempty" bson:"submitted_at,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty" bson:"closed_at,omitempty"`

	// SLA
	SLARuleID              string     `json:"sla_rule_id,omitempty" bson:"sla_rule_id,omitempty"`
	SLARule                *sla.Rule  `json:"sla_rule,omitempty" bson:"sla_rule,omitempty"`
	SLADeadline            *time.Time `json:"sla_deadline,omitempty" bson:"sla_deadline,omitempty"`
	FirstResponseDeadline  *time.Time `json:"first_response_deadline,omitempty" bson:"first_response_deadline,omitempty"`
	AcknowledgmentDeadline *time.Time `json:"acknowledgment_deadline,omitempty" bson:"acknowledgment_deadline,omitempty"`
	EscalationLevel        int        `json:"escalation_level" bson:"escalation_level"`
	EscalatedAt            *time.Time `json:"escalated_at,omitempty" bson:"escalated_at,omitempty"`
	FiredWarnings          []float64  `json:"fired_warnings,omitempty" bson:"fired_warnings,omitempty"`
	BreachNotified         bool       `json:"breach_notified" bson:"breach_notified"`

	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (c *Case) Terminal() bool {
	return IsTerminal(c.Kind, c.Status)
}

func (c *Case) SLAAttributes() sla.CaseAttributes {
	return sla.CaseAttributes{
		Kind:       c.Kind,
		CaseType:   c.CaseType,
		Priority:   c.Priority,
		Severity:   c.Severity,
		Attributes: c.Attributes,
	}
}

// SLACase is the engine's view of the case
func (c *Case) SLACase() sla.Case {
	return sla.Case{
		ID:              c.ID.Hex(),
		Attributes:      c.SLAAttributes(),
		SubmittedAt:     c.SubmittedAt,
		SLADeadline:     c.SLADeadline,
		EscalationLevel: c.EscalationLevel,
		EscalatedAt:     c.EscalatedAt,
		FiredWarnings:   c.FiredWarnings,
		BreachNotified:  c.BreachNotified,
		Terminal:        c.Terminal(),
		Rule:            c.SLARule,
		Version:         c.Version,
	}
}

// CaseView is a case with its derived SLA status, as returned by the API
type CaseView struct {
	*Case
	SLAStatus sla.Status `json:"sla_status"`
}

// CaseFilter narrows ListCases
type CaseFilter struct {
	Kind       sla.CaseKind
	Status     CaseStatus
	Priority   string
	AssignedTo string
	SLARuleID  string
}

// SubmitRequest is the payload for a new case
type SubmitRequest struct {
	Kind        sla.CaseKind      `json:"kind" example:"complaint"`
	CaseType    string            `json:"case_type" example:"financial_fraud"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    string            `json:"priority" example:"high"`
	Severity    string            `json:"severity" example:"medium"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Draft       bool              `json:"draft"`
}

// StatusChangeRequest moves a case through its workflow
type StatusChangeRequest struct {
	Status  CaseStatus `json:"status"`
	Comment string     `json:"comment"`
}

// AssignRequest hands a case to an officer or a role queue
type AssignRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Reason string `json:"reason"`
}
