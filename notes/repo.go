package notes

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	CollectionName = "notes"
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
				{Key: "createdTime", Value: -1},
			},
			Options: options.Index().
				SetName("PatientCreatedTime"),
		},
	})
	return err
}

func (r *repository) Create(ctx context.Context, note Note) (*Note, error) {
	if note.NoteType == "" {
		note.NoteType = TypeProgress
	}
	if err := note.Validate(); err != nil {
		return nil, err
	}

	note.Id = nil
	note.CreatedTime = time.Now()
	res, err := r.collection.InsertOne(ctx, note)
	if err != nil {
		return nil, fmt.Errorf("error creating clinical note: %w", err)
	}

	id := res.InsertedID.(primitive.ObjectID)
	note.Id = &id
	return &note, nil
}

func (r *repository) List(ctx context.Context, patientId string, limit int) ([]*Note, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdTime", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(Limit(limit)))

	cursor, err := r.collection.Find(ctx, bson.M{"patientId": patientId}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing clinical notes: %w", err)
	}

	result := make([]*Note, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("error decoding clinical notes: %w", err)
	}
	return result, nil
}
