package symptoms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/store"
)

const (
	CollectionName = "symptoms"
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
				{Key: "reportDate", Value: -1},
			},
			Options: options.Index().
				SetName("PatientReportDate"),
		},
	})
	return err
}

func (r *repository) Create(ctx context.Context, report Report) (*Report, error) {
	if err := report.Validate(); err != nil {
		return nil, err
	}

	report.Id = nil
	report.CreatedTime = time.Now()
	res, err := r.collection.InsertOne(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("error creating symptom report: %w", err)
	}

	id := res.InsertedID.(primitive.ObjectID)
	report.Id = &id
	return &report, nil
}

func (r *repository) Get(ctx context.Context, id string) (*Report, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	report := &Report{}
	err = r.collection.FindOne(ctx, bson.M{"_id": objId}).Decode(report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error fetching symptom report: %w", err)
	}
	return report, nil
}

func (r *repository) List(ctx context.Context, patientId string, window store.Window) ([]*Report, error) {
	selector := window.Selector("reportDate")
	selector["patientId"] = patientId

	opts := options.Find().SetSort(bson.D{{Key: "reportDate", Value: -1}})
	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing symptom reports: %w", err)
	}

	result := make([]*Report, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("error decoding symptom reports: %w", err)
	}
	return result, nil
}

func (r *repository) Count(ctx context.Context, patientIds []string, window store.Window) (int, error) {
	if len(patientIds) == 0 {
		return 0, nil
	}

	selector := window.Selector("reportDate")
	selector["patientId"] = bson.M{"$in": patientIds}
	count, err := r.collection.CountDocuments(ctx, selector)
	if err != nil {
		return 0, fmt.Errorf("error counting symptom reports: %w", err)
	}
	return int(count), nil
}
