package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationTypeInfo       NotificationType = "info"
	NotificationTypeWarning    NotificationType = "warning"
	NotificationTypeEscalation NotificationType = "escalation"
	NotificationTypeBreach     NotificationType = "breach"
)

// Channel is where the notification should be delivered. Only in_app is delivered here;
// the others are recorded for an external sender.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ParseChannel maps a free-form action channel onto a known one, defaulting to in_app
func ParseChannel(s string) Channel {
	switch Channel(s) {
	case ChannelEmail, ChannelSMS:
		return Channel(s)
	default:
		return ChannelInApp
	}
}

// Notification is addressed to a user id or a role name
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Recipient string             `bson:"recipient" json:"recipient"`
	Channel   Channel            `bson:"channel" json:"channel"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	Type      NotificationType   `bson:"type" json:"type"`
	CaseID    string             `bson:"case_id,omitempty" json:"case_id,omitempty"`
	EventID   string             `bson:"event_id,omitempty" json:"event_id,omitempty"`
	Link      string             `bson:"link,omitempty" json:"link,omitempty"`
	IsRead    bool               `bson:"is_read" json:"is_read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ReadAt    *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
}
