package alerts

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/store"
)

const (
	CollectionName = "alerts"
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
			// At most one open alert per patient and alert type
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "alertType", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueOpenAlert").
				SetPartialFilterExpression(bson.D{{Key: "isResolved", Value: false}}),
		},
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

func (r *repository) CreateIfAbsent(ctx context.Context, alert Alert) (*Alert, bool, error) {
	if alert.Id == "" {
		return nil, false, fmt.Errorf("%w: id is required", ErrInvalid)
	}
	alert.IsResolved = false

	selector := openSelector(alert.PatientId, alert.AlertType)
	update := bson.M{"$setOnInsert": alert}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	open := &Alert{}
	err := r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(open)
	if store.IsDuplicateKeyError(err) {
		return nil, false, ErrDuplicate
	} else if err != nil {
		return nil, false, fmt.Errorf("error creating alert: %w", err)
	}

	return open, open.Id == alert.Id, nil
}

func (r *repository) Get(ctx context.Context, id string) (*Alert, error) {
	alert := &Alert{}
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error fetching alert: %w", err)
	}
	return alert, nil
}

func (r *repository) GetOpen(ctx context.Context, patientId string, alertType Type) (*Alert, error) {
	alert := &Alert{}
	err := r.collection.FindOne(ctx, openSelector(patientId, alertType)).Decode(alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error fetching open alert: %w", err)
	}
	return alert, nil
}

// Resolve marks an open alert as resolved. Resolution fields of resolved alerts are never overwritten.
func (r *repository) Resolve(ctx context.Context, id string, resolution Resolution) (*Alert, error) {
	if err := resolution.Validate(); err != nil {
		return nil, err
	}

	selector := bson.M{"_id": id, "isResolved": false}
	set := bson.M{
		"isResolved":   true,
		"resolvedTime": resolution.Time,
		"resolvedBy":   resolution.ResolvedBy,
	}
	if resolution.Notes != "" {
		set["resolutionNotes"] = resolution.Notes
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	alert := &Alert{}
	err := r.collection.FindOneAndUpdate(ctx, selector, bson.M{"$set": set}, opts).Decode(alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := r.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyResolved
	} else if err != nil {
		return nil, fmt.Errorf("error resolving alert: %w", err)
	}
	return alert, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]*Alert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdTime", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filterSelector(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}

	result := make([]*Alert, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("error decoding alerts: %w", err)
	}
	return result, nil
}

func (r *repository) Count(ctx context.Context, filter Filter) (int, error) {
	count, err := r.collection.CountDocuments(ctx, filterSelector(filter))
	if err != nil {
		return 0, fmt.Errorf("error counting alerts: %w", err)
	}
	return int(count), nil
}

func openSelector(patientId string, alertType Type) bson.M {
	return bson.M{
		"patientId":  patientId,
		"alertType":  alertType,
		"isResolved": false,
	}
}

func filterSelector(filter Filter) bson.M {
	selector := bson.M{}
	if filter.PatientIds != nil {
		selector["patientId"] = bson.M{"$in": filter.PatientIds}
	}
	if filter.IsResolved != nil {
		selector["isResolved"] = *filter.IsResolved
	}
	if filter.AlertType != nil {
		selector["alertType"] = *filter.AlertType
	}
	if filter.Window != nil {
		for key, value := range filter.Window.Selector("createdTime") {
			selector[key] = value
		}
	}
	return selector
}
