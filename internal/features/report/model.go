package report

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RuleAggregate is one per-rule row of the statistics aggregation over cases
type RuleAggregate struct {
	RuleID             string   `bson:"_id"`
	RuleName           string   `bson:"rule_name"`
	RuleRevision       int      `bson:"rule_revision"`
	Total              int      `bson:"total"`
	Closed             int      `bson:"closed"`
	Breached           int      `bson:"breached"`
	AvgResolutionHours *float64 `bson:"avg_resolution_hours"`
}

// RuleStatistics is an immutable statistics snapshot for one rule. A recompute appends a
// new snapshot with the next sequence number instead of updating the previous one.
type RuleStatistics struct {
	ID                     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RuleID                 string             `json:"rule_id" bson:"rule_id"`
	RuleName               string             `json:"rule_name" bson:"rule_name"`
	RuleRevision           int                `json:"rule_revision" bson:"rule_revision"`
	Sequence               int64              `json:"sequence" bson:"sequence"`
	TotalCases             int                `json:"total_cases" bson:"total_cases"`
	OpenCases              int                `json:"open_cases" bson:"open_cases"`
	ClosedCases            int                `json:"closed_cases" bson:"closed_cases"`
	BreachedCases          int                `json:"breached_cases" bson:"breached_cases"`
	AverageResolutionHours float64            `json:"average_resolution_hours" bson:"average_resolution_hours"`
	ComplianceRate         float64            `json:"compliance_rate" bson:"compliance_rate"` // percent of cases not breached
	ComputedAt             time.Time          `json:"computed_at" bson:"computed_at"`
}

// ComplianceRate is the share of cases that did not breach, in percent; 100 with no cases
func ComplianceRate(total, breached int) float64 {
	if total == 0 {
		return 100
	}
	return float64(total-breached) / float64(total) * 100
}
