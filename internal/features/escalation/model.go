package escalation

import (
	"go-cats/pkg/sla"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Triggers of an evaluation run
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// EvaluationRun is the stored outcome of one batch evaluation pass
type EvaluationRun struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Trigger         string             `json:"trigger" bson:"trigger"`
	Status          string             `json:"status" bson:"status"` // success, failed
	Error           string             `json:"error,omitempty" bson:"error,omitempty"`
	TriggeredBy     string             `json:"triggered_by" bson:"triggered_by"`
	sla.BatchReport `bson:",inline"`
}
