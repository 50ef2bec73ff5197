package biomarkers

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/store"
)

const (
	CollectionName = "biomarkers"
)

var _ Repository = &repository{}

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(CollectionName),
		logger:     logger,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type repository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "type", Value: 1},
				{Key: "timestamp", Value: -1},
				{Key: "calculationMethod", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueNaturalKey"),
		},
	})
	return err
}

// Upsert inserts the biomarker unless it was already written. Returns true if it was inserted.
func (r *repository) Upsert(ctx context.Context, biomarker Biomarker) (bool, error) {
	if err := biomarker.Validate(); err != nil {
		return false, err
	}

	selector := bson.M{
		"patientId":         biomarker.PatientId,
		"type":              biomarker.Type,
		"timestamp":         biomarker.Timestamp,
		"calculationMethod": biomarker.CalculationMethod,
	}
	biomarker.Id = nil
	if biomarker.CalculatedTime.IsZero() {
		biomarker.CalculatedTime = time.Now()
	}

	res, err := r.collection.UpdateOne(ctx, selector, bson.M{"$setOnInsert": biomarker}, options.Update().SetUpsert(true))
	if store.IsDuplicateKeyError(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("error upserting biomarker: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

func (r *repository) List(ctx context.Context, patientId string, biomarkerType *Type, window store.Window) ([]*Biomarker, error) {
	selector := window.Selector("timestamp")
	selector["patientId"] = patientId
	if biomarkerType != nil {
		selector["type"] = *biomarkerType
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing biomarkers: %w", err)
	}

	result := make([]*Biomarker, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("error decoding biomarkers: %w", err)
	}
	return result, nil
}

func (r *repository) Mean(ctx context.Context, patientId string, biomarkerType Type, window store.Window) (*Mean, error) {
	match := window.Selector("timestamp")
	match["patientId"] = patientId
	match["type"] = biomarkerType

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"count": bson.M{"$sum": 1},
			"value": bson.M{"$avg": "$value"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating biomarkers: %w", err)
	}

	var results []Mean
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("error decoding biomarker mean: %w", err)
	}
	if len(results) == 0 {
		return &Mean{}, nil
	}
	return &results[0], nil
}
