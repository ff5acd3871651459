package slarule

import (
	"time"

	"go-cats/pkg/sla"
	"go-cats/pkg/utils"
)

// HolidayLayout is the local calendar date format used for rule holidays
const HolidayLayout = "2006-01-02"

// RuleFilter narrows ListRules. Nil fields are not applied.
type RuleFilter struct {
	CaseKind sla.CaseKind
	CaseType string
	IsActive *bool
}

// PreviewRequest describes a hypothetical case for a dry-run resolution
type PreviewRequest struct {
	Kind        sla.CaseKind      `json:"kind" example:"complaint"`
	CaseType    string            `json:"case_type" example:"financial_fraud"`
	Priority    string            `json:"priority" example:"high"`
	Severity    string            `json:"severity" example:"medium"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
}

func (p PreviewRequest) CaseAttributes() sla.CaseAttributes {
	return sla.CaseAttributes{
		Kind:       p.Kind,
		CaseType:   utils.NormalizeKey(p.CaseType),
		Priority:   utils.NormalizeKey(p.Priority),
		Severity:   utils.NormalizeKey(p.Severity),
		Attributes: p.Attributes,
	}
}
