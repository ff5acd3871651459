package escalation

import (
	"context"

	"go-cats/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RunRepository interface {
	Create(ctx context.Context, run *EvaluationRun) error
	ListRecent(ctx context.Context, limit int64) ([]EvaluationRun, error)
	EnsureIndexes(ctx context.Context) error
}

type RunRepositoryImpl struct {
	collection *mongo.Collection
}

func NewRunRepository(db *database.MongodbDB) RunRepository {
	return &RunRepositoryImpl{
		collection: db.DB.Collection("sla_evaluation_runs"),
	}
}

func (r *RunRepositoryImpl) Create(ctx context.Context, run *EvaluationRun) error {
	result, err := r.collection.InsertOne(ctx, run)
	if err != nil {
		return err
	}
	run.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *RunRepositoryImpl) ListRecent(ctx context.Context, limit int64) ([]EvaluationRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []EvaluationRun
	if err = cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *RunRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "started_at", Value: -1}},
	})
	return err
}
