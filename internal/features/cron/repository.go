package cron_feature

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CronRepository interface {
	// Register stores the job's schedule and description, keeping an existing Active flag
	Register(ctx context.Context, job *CronJob) (*CronJob, error)
	GetByName(ctx context.Context, name string) (*CronJob, error)
	List(ctx context.Context) ([]CronJob, error)
	SetActive(ctx context.Context, name string, active bool) error
	UpdateLastRun(ctx context.Context, name string, lastRun time.Time, nextRun *time.Time) error

	// Log operations
	CreateLog(ctx context.Context, log *CronJobLog) error
	GetLogs(ctx context.Context, name string, limit int) ([]CronJobLog, error)
	UpdateLog(ctx context.Context, log *CronJobLog) error

	EnsureIndexes(ctx context.Context) error
}

type CronRepositoryImpl struct {
	collection    *mongo.Collection
	logCollection *mongo.Collection
}

func NewCronRepository(db *database.MongodbDB) CronRepository {
	return &CronRepositoryImpl{
		collection:    db.DB.Collection("cron_jobs"),
		logCollection: db.DB.Collection("cron_job_logs"),
	}
}

func (r *CronRepositoryImpl) Register(ctx context.Context, job *CronJob) (*CronJob, error) {
	update := bson.M{
		"$set": bson.M{
			"description": job.Description,
			"schedule":    job.Schedule,
			"next_run":    job.NextRun,
			"updated_at":  time.Now(),
		},
		"$setOnInsert": bson.M{"active": true},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored CronJob
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": job.Name}, update, opts).Decode(&stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *CronRepositoryImpl) GetByName(ctx context.Context, name string) (*CronJob, error) {
	var job CronJob
	err := r.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("cron job %q: %w", name, common_models.ErrNotFound)
		}
		return nil, err
	}
	return &job, nil
}

func (r *CronRepositoryImpl) List(ctx context.Context) ([]CronJob, error) {
	var jobs []CronJob

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}

	if jobs == nil {
		jobs = []CronJob{}
	}

	return jobs, nil
}

func (r *CronRepositoryImpl) SetActive(ctx context.Context, name string, active bool) error {
	update := bson.M{
		"$set": bson.M{
			"active":     active,
			"updated_at": time.Now(),
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": name}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("cron job %q: %w", name, common_models.ErrNotFound)
	}
	return nil
}

func (r *CronRepositoryImpl) UpdateLastRun(ctx context.Context, name string, lastRun time.Time, nextRun *time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"last_run":   lastRun,
			"next_run":   nextRun,
			"updated_at": time.Now(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": name}, update)
	return err
}

func (r *CronRepositoryImpl) CreateLog(ctx context.Context, log *CronJobLog) error {
	log.ID = primitive.NewObjectID()
	log.CreatedAt = time.Now()

	_, err := r.logCollection.InsertOne(ctx, log)
	return err
}

func (r *CronRepositoryImpl) GetLogs(ctx context.Context, name string, limit int) ([]CronJobLog, error) {
	var logs []CronJobLog

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.logCollection.Find(ctx, bson.M{"cron_job_name": name}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	if logs == nil {
		logs = []CronJobLog{}
	}

	return logs, nil
}

func (r *CronRepositoryImpl) UpdateLog(ctx context.Context, log *CronJobLog) error {
	filter := bson.M{"_id": log.ID}
	update := bson.M{"$set": log}

	_, err := r.logCollection.UpdateOne(ctx, filter, update)
	return err
}

func (r *CronRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.logCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "cron_job_name", Value: 1}, {Key: "start_time", Value: -1}},
	})
	return err
}
