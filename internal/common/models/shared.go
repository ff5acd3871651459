package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
)

type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionDelete     AuditAction = "DELETE"
	AuditActionCron       AuditAction = "CRON"
	AuditActionEscalation AuditAction = "ESCALATION"
	AuditActionEvaluation AuditAction = "EVALUATION"
	AuditActionReport     AuditAction = "REPORT"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`                       // sla_rules, cases, cron ...
	RecordID  string             `bson:"record_id" json:"record_id"`                 // The ID of the record being modified
	ActorID   string             `bson:"actor_id" json:"actor_id"`                   // User ID who performed the action
	CaseID    string             `bson:"case_id,omitempty" json:"case_id,omitempty"`
	RuleID    string             `bson:"rule_id,omitempty" json:"rule_id,omitempty"`
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"` // For updates: field -> {old, new}
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Log is one application log line copied into the logs collection
type Log struct {
	AppId        string    `bson:"app_id" json:"app_id"`
	Message      string    `bson:"message" json:"message"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	CaseID       string    `bson:"case_id,omitempty" json:"case_id,omitempty"`
	RuleID       string    `bson:"rule_id,omitempty" json:"rule_id,omitempty"`
	IpAddress    string    `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}

// Page is the paging envelope shared by list endpoints
type Page struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
}

// NormalizePage clamps paging query values
func NormalizePage(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 200 {
		limit = 200
	}
	return page, limit
}
