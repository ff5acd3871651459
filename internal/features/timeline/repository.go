package timeline

import (
	"context"
	"time"

	"go-cats/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TimelineRepository interface {
	Create(ctx context.Context, entry *Entry) error
	ListByCase(ctx context.Context, caseID string) ([]Entry, error)
	EnsureIndexes(ctx context.Context) error
}

type TimelineRepositoryImpl struct {
	collection *mongo.Collection
}

func NewTimelineRepository(db *database.MongodbDB) TimelineRepository {
	return &TimelineRepositoryImpl{
		collection: db.DB.Collection("case_timeline"),
	}
}

func (r *TimelineRepositoryImpl) Create(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return err
	}

	entry.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *TimelineRepositoryImpl) ListByCase(ctx context.Context, caseID string) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"case_id": caseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *TimelineRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "case_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}
