package samples

import (
	"context"
	"errors"
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
	CollectionName           = "samples"
	SyncedDaysCollectionName = "synced_days"
)

var _ Repository = &repository{}

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(CollectionName),
		days:       db.Collection(SyncedDaysCollectionName),
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
	days       *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.days.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "source", Value: 1},
				{Key: "day", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueSyncedDay"),
		},
	})
	if err != nil {
		return err
	}

	_, err = r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "timestamp", Value: -1},
				{Key: "source", Value: 1},
				{Key: "kind", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueNaturalKey"),
		},
		{
			Keys: bson.D{
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().
				SetName("SamplesByTimestamp"),
		},
	})
	return err
}

// Upsert inserts the sample unless a sample with the same natural key exists.
// Returns true if the sample was inserted.
func (r *repository) Upsert(ctx context.Context, sample Sample) (bool, error) {
	if err := sample.Validate(); err != nil {
		return false, err
	}

	res, err := r.collection.UpdateOne(ctx, naturalKey(sample), insertOnly(sample), options.Update().SetUpsert(true))
	if store.IsDuplicateKeyError(err) {
		// a concurrent writer inserted the same sample
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("error upserting sample: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

// UpsertMany inserts the samples which don't exist yet and returns the inserted samples
func (r *repository) UpsertMany(ctx context.Context, samples []Sample) ([]Sample, error) {
	if len(samples) == 0 {
		return []Sample{}, nil
	}

	models := make([]mongo.WriteModel, 0, len(samples))
	for _, sample := range samples {
		if err := sample.Validate(); err != nil {
			return nil, err
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(naturalKey(sample)).
			SetUpdate(insertOnly(sample)).
			SetUpsert(true),
		)
	}

	res, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil && !onlyDuplicateKeyErrors(err) {
		return nil, fmt.Errorf("error upserting samples: %w", err)
	}

	inserted := make([]Sample, 0)
	if res == nil {
		return inserted, nil
	}
	for i, sample := range samples {
		if _, ok := res.UpsertedIDs[int64(i)]; ok {
			inserted = append(inserted, sample)
		}
	}
	return inserted, nil
}

func (r *repository) MarkDaySynced(ctx context.Context, patientId string, source string, day time.Time) (bool, error) {
	selector := bson.M{
		"patientId": patientId,
		"source":    source,
		"day":       day,
	}
	update := bson.M{
		"$setOnInsert": SyncedDay{
			PatientId:  patientId,
			Source:     source,
			Day:        day,
			SyncedTime: time.Now(),
		},
	}

	res, err := r.days.UpdateOne(ctx, selector, update, options.Update().SetUpsert(true))
	if store.IsDuplicateKeyError(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("error marking day as synced: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

func (r *repository) List(ctx context.Context, patientId string, filter *Filter) ([]*Sample, error) {
	if filter == nil {
		filter = &Filter{}
	}
	selector := bson.M{"patientId": patientId}
	if !filter.Window.From.IsZero() {
		selector["timestamp"] = filter.Window.Selector("timestamp")["timestamp"]
	}
	if filter.Kind != nil {
		selector["kind"] = *filter.Kind
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing samples: %w", err)
	}

	result := make([]*Sample, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("error decoding samples: %w", err)
	}
	return result, nil
}

func (r *repository) Count(ctx context.Context, patientIds []string, window store.Window) (int, error) {
	if len(patientIds) == 0 {
		return 0, nil
	}

	selector := window.Selector("timestamp")
	selector["patientId"] = bson.M{"$in": patientIds}

	count, err := r.collection.CountDocuments(ctx, selector)
	if err != nil {
		return 0, fmt.Errorf("error counting samples: %w", err)
	}
	return int(count), nil
}

func (r *repository) HeartRateStats(ctx context.Context, patientId string, window store.Window) (*Stats, error) {
	match := window.Selector("timestamp")
	match["patientId"] = patientId
	match["heartRate"] = bson.M{"$exists": true}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"count": bson.M{"$sum": 1},
			"mean":  bson.M{"$avg": "$heartRate"},
			"min":   bson.M{"$min": "$heartRate"},
			"max":   bson.M{"$max": "$heartRate"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating heart rate: %w", err)
	}

	var results []Stats
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("error decoding heart rate stats: %w", err)
	}
	if len(results) == 0 {
		return &Stats{}, nil
	}
	return &results[0], nil
}

func naturalKey(sample Sample) bson.M {
	return bson.M{
		"patientId": sample.PatientId,
		"timestamp": sample.Timestamp,
		"source":    sample.Source,
		"kind":      sample.Kind,
	}
}

func insertOnly(sample Sample) bson.M {
	sample.Id = nil
	sample.CreatedTime = time.Now()
	return bson.M{"$setOnInsert": sample}
}

func onlyDuplicateKeyErrors(err error) bool {
	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil || len(bulkErr.WriteErrors) == 0 {
		return false
	}
	for _, writeErr := range bulkErr.WriteErrors {
		if writeErr.Code != 11000 {
			return false
		}
	}
	return true
}
