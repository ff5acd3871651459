package report

import (
	"context"
	"time"

	"go-cats/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type StatisticsRepository interface {
	AggregateByRule(ctx context.Context, now time.Time) ([]RuleAggregate, error)
	InsertSnapshots(ctx context.Context, stats []RuleStatistics) error
	Latest(ctx context.Context) ([]RuleStatistics, error)
	History(ctx context.Context, ruleID string, limit int64) ([]RuleStatistics, error)
	EnsureIndexes(ctx context.Context) error
}

type StatisticsRepositoryImpl struct {
	cases      *mongo.Collection
	collection *mongo.Collection
}

func NewStatisticsRepository(db *database.MongodbDB) StatisticsRepository {
	return &StatisticsRepositoryImpl{
		cases:      db.DB.Collection("cases"),
		collection: db.DB.Collection("sla_rule_statistics"),
	}
}

// AggregateByRule groups submitted cases by their snapshotted rule. A case counts as
// breached when it closed after its deadline, or is still open past it.
func (r *StatisticsRepositoryImpl) AggregateByRule(ctx context.Context, now time.Time) ([]RuleAggregate, error) {
	closed := bson.M{"$eq": bson.A{bson.M{"$type": "$closed_at"}, "date"}}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"sla_rule_id":  bson.M{"$nin": bson.A{"", nil}},
			"submitted_at": bson.M{"$ne": nil},
			"sla_deadline": bson.M{"$ne": nil},
		}}},
		{{Key: "$project", Value: bson.M{
			"sla_rule_id":   1,
			"rule_name":     "$sla_rule.name",
			"rule_revision": "$sla_rule.revision",
			"closed":        bson.M{"$cond": bson.A{closed, 1, 0}},
			"breached": bson.M{"$cond": bson.A{
				bson.M{"$cond": bson.A{
					closed,
					bson.M{"$gt": bson.A{"$closed_at", "$sla_deadline"}},
					bson.M{"$lt": bson.A{"$sla_deadline", now}},
				}},
				1, 0,
			}},
			"resolution_hours": bson.M{"$cond": bson.A{
				closed,
				bson.M{"$divide": bson.A{bson.M{"$subtract": bson.A{"$closed_at", "$submitted_at"}}, 3600000}},
				nil,
			}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":                  "$sla_rule_id",
			"rule_name":            bson.M{"$last": "$rule_name"},
			"rule_revision":        bson.M{"$max": "$rule_revision"},
			"total":                bson.M{"$sum": 1},
			"closed":               bson.M{"$sum": "$closed"},
			"breached":             bson.M{"$sum": "$breached"},
			"avg_resolution_hours": bson.M{"$avg": "$resolution_hours"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := r.cases.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []RuleAggregate
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *StatisticsRepositoryImpl) InsertSnapshots(ctx context.Context, stats []RuleStatistics) error {
	if len(stats) == 0 {
		return nil
	}
	docs := make([]interface{}, len(stats))
	for i := range stats {
		docs[i] = stats[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// Latest returns the newest snapshot of every rule
func (r *StatisticsRepositoryImpl) Latest(ctx context.Context) ([]RuleStatistics, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "rule_id", Value: 1}, {Key: "sequence", Value: -1}}}},
		{{Key: "$group", Value: bson.M{"_id": "$rule_id", "doc": bson.M{"$first": "$$ROOT"}}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$doc"}}},
		{{Key: "$sort", Value: bson.D{{Key: "rule_id", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []RuleStatistics
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *StatisticsRepositoryImpl) History(ctx context.Context, ruleID string, limit int64) ([]RuleStatistics, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sequence", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"rule_id": ruleID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []RuleStatistics
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *StatisticsRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "rule_id", Value: 1}, {Key: "sequence", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
