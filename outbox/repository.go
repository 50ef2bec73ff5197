package outbox

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type repository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

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

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdTime", Value: 1}},
			Options: options.Index().SetName("CreatedTime"),
		},
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}},
			Options: options.Index().SetName("UniqueEventId").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "eventType", Value: 1},
			},
			Options: options.Index().SetName("PatientEventType"),
		},
	})
	return err
}

// Create inserts the event. When ctx is a session context the insert is part of the surrounding transaction.
func (r *repository) Create(ctx context.Context, event Event) error {
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("error inserting outbox event: %w", err)
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Event, error) {
	selector := bson.M{}
	if filter.PatientId != nil {
		selector["patientId"] = *filter.PatientId
	}
	if filter.EventType != nil {
		selector["eventType"] = *filter.EventType
	}
	if filter.Since != nil {
		selector["createdTime"] = bson.M{"$gte": *filter.Since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdTime", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing outbox events: %w", err)
	}

	events := make([]Event, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("error decoding outbox events: %w", err)
	}
	return events, nil
}
