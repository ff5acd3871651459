package notification

import (
	"context"
	"fmt"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) error
	GetByRecipients(ctx context.Context, recipients []string, page, limit int64) ([]Notification, int64, error)
	GetUnreadCount(ctx context.Context, recipients []string) (int64, error)
	MarkAsRead(ctx context.Context, id primitive.ObjectID, recipients []string) error
	MarkAllAsRead(ctx context.Context, recipients []string) error
	EnsureIndexes(ctx context.Context) error
}

type NotificationRepositoryImpl struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *database.MongodbDB) NotificationRepository {
	return &NotificationRepositoryImpl{
		collection: db.DB.Collection("notifications"),
	}
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, notification *Notification) error {
	notification.CreatedAt = time.Now()
	notification.IsRead = false
	result, err := r.collection.InsertOne(ctx, notification)
	if err != nil {
		return err
	}
	notification.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *NotificationRepositoryImpl) GetByRecipients(ctx context.Context, recipients []string, page, limit int64) ([]Notification, int64, error) {
	skip := (page - 1) * limit
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	filter := bson.M{"recipient": bson.M{"$in": recipients}}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var notifications []Notification
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *NotificationRepositoryImpl) GetUnreadCount(ctx context.Context, recipients []string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"recipient": bson.M{"$in": recipients},
		"is_read":   false,
	})
}

func (r *NotificationRepositoryImpl) MarkAsRead(ctx context.Context, id primitive.ObjectID, recipients []string) error {
	now := time.Now()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "recipient": bson.M{"$in": recipients}},
		bson.M{
			"$set": bson.M{
				"is_read": true,
				"read_at": now,
			},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", id.Hex(), common_models.ErrNotFound)
	}
	return nil
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(ctx context.Context, recipients []string) error {
	now := time.Now()
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"recipient": bson.M{"$in": recipients}, "is_read": false},
		bson.M{
			"$set": bson.M{
				"is_read": true,
				"read_at": now,
			},
		},
	)
	return err
}

func (r *NotificationRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "is_read", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
