package timeline

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EntryType is the kind of a case timeline entry
type EntryType string

const (
	EntrySubmitted     EntryType = "submitted"
	EntryStatusChanged EntryType = "status_changed"
	EntryEscalated     EntryType = "escalated"
	EntrySLAWarning    EntryType = "sla_warning"
	EntrySLABreached   EntryType = "sla_breached"
	EntryReassigned    EntryType = "reassigned"
	EntryActionLogged  EntryType = "action_logged"
	EntryClosed        EntryType = "closed"
)

// Entry is one append-only line of a case history
type Entry struct {
	ID          primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	CaseID      string                 `json:"case_id" bson:"case_id"`
	Type        EntryType              `json:"type" bson:"type"`
	Description string                 `json:"description" bson:"description"`
	ActorID     string                 `json:"actor_id" bson:"actor_id"`
	IsAutomated bool                   `json:"is_automated" bson:"is_automated"`
	EventID     string                 `json:"event_id,omitempty" bson:"event_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at" bson:"created_at"`
}
