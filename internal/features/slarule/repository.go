package slarule

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

// RuleRepository defines persistence for SLA rules
type RuleRepository interface {
	Create(ctx context.Context, rule *sla.Rule) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*sla.Rule, error)
	FindAll(ctx context.Context, filter RuleFilter) ([]sla.Rule, error)
	FindCandidates(ctx context.Context, kind sla.CaseKind) ([]sla.Rule, error)
	FindDefault(ctx context.Context) (*sla.Rule, error)
	FindExpired(ctx context.Context, now time.Time) ([]sla.Rule, error)
	Replace(ctx context.Context, rule *sla.Rule, expectedRevision int) error
	ClearDefault(ctx context.Context, except primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

// RuleRepositoryImpl implements RuleRepository
type RuleRepositoryImpl struct {
	collection *mongo.Collection
}

// NewRuleRepository creates a new SLA rule repository
func NewRuleRepository(db *database.MongodbDB) RuleRepository {
	return &RuleRepositoryImpl{
		collection: db.DB.Collection("sla_rules"),
	}
}

// Create inserts a new rule
func (r *RuleRepositoryImpl) Create(ctx context.Context, rule *sla.Rule) error {
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, rule)
	if err != nil {
		return err
	}

	rule.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByID retrieves a rule by ID
func (r *RuleRepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*sla.Rule, error) {
	var rule sla.Rule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("sla rule %s: %w", id.Hex(), common_models.ErrNotFound)
		}
		return nil, err
	}
	return &rule, nil
}

// FindAll lists rules, newest first
func (r *RuleRepositoryImpl) FindAll(ctx context.Context, filter RuleFilter) ([]sla.Rule, error) {
	query := bson.M{}
	if filter.CaseKind != "" {
		query["case_kind"] = filter.CaseKind
	}
	if filter.CaseType != "" {
		query["case_type"] = filter.CaseType
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}

	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// FindCandidates returns active rules whose case kind matches kind or is unset.
// Effective-window and attribute matching is left to the selector.
func (r *RuleRepositoryImpl) FindCandidates(ctx context.Context, kind sla.CaseKind) ([]sla.Rule, error) {
	query := bson.M{
		"is_active": true,
		"case_kind": bson.M{"$in": bson.A{kind, "", nil}},
	}
	return r.find(ctx, query, options.Find())
}

// FindDefault retrieves the active system default rule; nil if there is none
func (r *RuleRepositoryImpl) FindDefault(ctx context.Context) (*sla.Rule, error) {
	var rule sla.Rule
	err := r.collection.FindOne(ctx, bson.M{
		"is_default": true,
		"is_active":  true,
	}).Decode(&rule)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // No default is not an error
		}
		return nil, err
	}
	return &rule, nil
}

// FindExpired lists rules whose effective window closed before now
func (r *RuleRepositoryImpl) FindExpired(ctx context.Context, now time.Time) ([]sla.Rule, error) {
	query := bson.M{"effective_until": bson.M{"$lt": now}}
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "effective_until", Value: -1}}))
}

// Replace overwrites the stored rule if its revision is still expectedRevision
func (r *RuleRepositoryImpl) Replace(ctx context.Context, rule *sla.Rule, expectedRevision int) error {
	rule.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rule.ID, "revision": expectedRevision}, rule)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": rule.ID})
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("sla rule %s: %w", rule.ID.Hex(), common_models.ErrNotFound)
		}
		return fmt.Errorf("sla rule %s was modified concurrently: %w", rule.ID.Hex(), sla.ErrVersionConflict)
	}

	return nil
}

// ClearDefault unsets is_default on every rule except the given one
func (r *RuleRepositoryImpl) ClearDefault(ctx context.Context, except primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(
		ctx,
		bson.M{"is_default": true, "_id": bson.M{"$ne": except}},
		bson.M{
			"$set": bson.M{"is_default": false, "updated_at": time.Now()},
			"$inc": bson.M{"revision": 1},
		},
	)
	return err
}

func (r *RuleRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "case_kind", Value: 1}}},
		{Keys: bson.D{{Key: "is_default", Value: 1}}},
		{Keys: bson.D{{Key: "effective_until", Value: 1}}},
	})
	return err
}

func (r *RuleRepositoryImpl) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]sla.Rule, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rules []sla.Rule
	if err = cursor.All(ctx, &rules); err != nil {
		return nil, err
	}

	return rules, nil
}
