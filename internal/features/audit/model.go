package audit

import (
	"time"

	common_models "go-cats/internal/common/models"

	"go.mongodb.org/mongo-driver/bson"
)

// Modules whose records are cases or rules. Their entries also carry case_id or rule_id.
const (
	ModuleCases    = "cases"
	ModuleSLARules = "sla_rules"
)

// LogFilter narrows the audit trail. Empty fields match everything.
type LogFilter struct {
	Module   string
	RecordID string
	Action   common_models.AuditAction
	ActorID  string
	CaseID   string
	RuleID   string
	From     *time.Time
	To       *time.Time
}

func (f LogFilter) query() bson.M {
	query := bson.M{}
	if f.Module != "" {
		query["module"] = f.Module
	}
	if f.RecordID != "" {
		query["record_id"] = f.RecordID
	}
	if f.Action != "" {
		query["action"] = f.Action
	}
	if f.ActorID != "" {
		query["actor_id"] = f.ActorID
	}
	if f.CaseID != "" {
		query["case_id"] = f.CaseID
	}
	if f.RuleID != "" {
		query["rule_id"] = f.RuleID
	}

	window := bson.M{}
	if f.From != nil {
		window["$gte"] = *f.From
	}
	if f.To != nil {
		window["$lt"] = *f.To
	}
	if len(window) > 0 {
		query["timestamp"] = window
	}
	return query
}

// subjectOf links an entry to the case or rule it is about
func subjectOf(module, recordID string) (caseID, ruleID string) {
	switch module {
	case ModuleCases:
		return recordID, ""
	case ModuleSLARules:
		return "", recordID
	}
	return "", ""
}
