package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-cats/internal/common/models"
	"go-cats/internal/database"
	"go-cats/pkg/sla"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CaseRepository stores cases and serves the SLA engine's batch evaluation
type CaseRepository interface {
	sla.CaseRepository

	Create(ctx context.Context, c *Case) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Case, error)
	FindByNumber(ctx context.Context, number string) (*Case, error)
	FindAll(ctx context.Context, filter CaseFilter, page, limit int64) ([]Case, int64, error)
	FindOverdue(ctx context.Context, now time.Time) ([]Case, error)
	FindUrgent(ctx context.Context) ([]Case, error)
	Update(ctx context.Context, id primitive.ObjectID, expectedVersion int64, updates bson.M) error
	NextSequence(ctx context.Context, key string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type CaseRepositoryImpl struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

func NewCaseRepository(db *database.MongodbDB) CaseRepository {
	return &CaseRepositoryImpl{
		collection: db.DB.Collection("cases"),
		counters:   db.DB.Collection("counters"),
	}
}

func openFilter() bson.M {
	return bson.M{
		"status":       bson.M{"$nin": TerminalStatuses()},
		"submitted_at": bson.M{"$ne": nil},
	}
}

func (r *CaseRepositoryImpl) Create(ctx context.Context, c *Case) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1

	result, err := r.collection.InsertOne(ctx, c)
	if err != nil {
		return err
	}

	c.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *CaseRepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*Case, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id.Hex())
}

func (r *CaseRepositoryImpl) FindByNumber(ctx context.Context, number string) (*Case, error) {
	return r.findOne(ctx, bson.M{"case_number": number}, number)
}

func (r *CaseRepositoryImpl) findOne(ctx context.Context, query bson.M, ref string) (*Case, error) {
	var c Case
	err := r.collection.FindOne(ctx, query).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("case %s: %w", ref, common_models.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CaseRepositoryImpl) FindAll(ctx context.Context, filter CaseFilter, page, limit int64) ([]Case, int64, error) {
	query := bson.M{}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}
	if filter.AssignedTo != "" {
		query["assigned_to"] = filter.AssignedTo
	}
	if filter.SLARuleID != "" {
		query["sla_rule_id"] = filter.SLARuleID
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cases, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return cases, total, nil
}

// FindOverdue lists open cases whose deadline passed, oldest deadline first
func (r *CaseRepositoryImpl) FindOverdue(ctx context.Context, now time.Time) ([]Case, error) {
	query := openFilter()
	query["sla_deadline"] = bson.M{"$lt": now}
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "sla_deadline", Value: 1}}))
}

// FindUrgent lists open cases with critical priority or an escalation level of 2 or more
func (r *CaseRepositoryImpl) FindUrgent(ctx context.Context) ([]Case, error) {
	query := openFilter()
	query["$or"] = bson.A{
		bson.M{"priority": "critical"},
		bson.M{"escalation_level": bson.M{"$gte": 2}},
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "escalation_level", Value: -1},
		{Key: "created_at", Value: 1},
	})
	return r.find(ctx, query, opts)
}

// Update sets fields on the case if it is still at expectedVersion and bumps the version
func (r *CaseRepositoryImpl) Update(ctx context.Context, id primitive.ObjectID, expectedVersion int64, updates bson.M) error {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "version": expectedVersion},
		bson.M{"$set": updates, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// NextSequence atomically increments and returns the named counter
func (r *CaseRepositoryImpl) NextSequence(ctx context.Context, key string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx, bson.M{"_id": key}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// ForEachOpenCase streams every submitted, non-terminal case to fn
func (r *CaseRepositoryImpl) ForEachOpenCase(ctx context.Context, fn func(sla.Case) error) error {
	cursor, err := r.collection.Find(ctx, openFilter(), options.Find().SetSort(bson.D{{Key: "sla_deadline", Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var c Case
		if err := cursor.Decode(&c); err != nil {
			return err
		}
		if err := fn(c.SLACase()); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (r *CaseRepositoryImpl) GetCase(ctx context.Context, id string) (*sla.Case, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common_models.Invalid("invalid case ID")
	}
	c, err := r.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	view := c.SLACase()
	return &view, nil
}

// SaveSLAState writes only the SLA fields of an open case still at expectedVersion
func (r *CaseRepositoryImpl) SaveSLAState(ctx context.Context, id string, expectedVersion int64, update sla.SLAUpdate) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common_models.Invalid("invalid case ID")
	}

	set := bson.M{
		"escalation_level": update.EscalationLevel,
		"escalated_at":     update.EscalatedAt,
		"fired_warnings":   update.FiredWarnings,
		"breach_notified":  update.BreachNotified,
		"updated_at":       time.Now(),
	}
	if update.SLADeadline != nil {
		set["sla_deadline"] = update.SLADeadline
	}
	if update.Rule != nil {
		set["sla_rule"] = update.Rule
		set["sla_rule_id"] = update.RuleID
	}

	filter := bson.M{
		"_id":     oid,
		"version": expectedVersion,
		"status":  bson.M{"$nin": TerminalStatuses()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set, "$inc": bson.M{"version": 1}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, oid)
	}
	return nil
}

func (r *CaseRepositoryImpl) missOrConflict(ctx context.Context, id primitive.ObjectID) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("case %s: %w", id.Hex(), common_models.ErrNotFound)
	}
	return fmt.Errorf("case %s: %w", id.Hex(), sla.ErrVersionConflict)
}

func (r *CaseRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "case_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "sla_deadline", Value: 1}}},
		{Keys: bson.D{{Key: "sla_rule_id", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
	})
	return err
}

func (r *CaseRepositoryImpl) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]Case, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cases []Case
	if err = cursor.All(ctx, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}
