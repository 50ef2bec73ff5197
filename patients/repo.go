package patients

import (
	"context"
	"errors"
	"fmt"
	"regexp"
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
	CollectionName = "patients"
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
				{Key: "mrn", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueMrn").
				SetPartialFilterExpression(bson.D{{Key: "mrn", Value: bson.M{"$exists": true}}}),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "riskLevel", Value: 1},
			},
			Options: options.Index().
				SetName("PatientsByStatusAndRisk"),
		},
		{
			Keys: bson.D{
				{Key: "lastName", Value: 1},
				{Key: "firstName", Value: 1},
			},
			Options: options.Index().
				SetName("PatientsByName"),
		},
	})
	return err
}

func (r *repository) Get(ctx context.Context, id string) (*Patient, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	patient := &Patient{}
	err = r.collection.FindOne(ctx, bson.M{"_id": objId}).Decode(patient)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error fetching patient: %w", err)
	}

	return patient, nil
}

func (r *repository) Create(ctx context.Context, patient Patient) (*Patient, error) {
	if patient.Status == "" {
		patient.Status = StatusActive
	}
	if patient.RiskLevel == "" {
		patient.RiskLevel = RiskLevelUnset
	}
	if err := patient.Validate(); err != nil {
		return nil, err
	}

	patient.Id = nil
	patient.CreatedTime = time.Now()
	patient.UpdatedTime = patient.CreatedTime

	res, err := r.collection.InsertOne(ctx, patient)
	if store.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("%w: medical record number is already in use", ErrInvalid)
	} else if err != nil {
		return nil, fmt.Errorf("error creating patient: %w", err)
	}

	id := res.InsertedID.(primitive.ObjectID)
	return r.Get(ctx, id.Hex())
}

func (r *repository) List(ctx context.Context, filter *Filter, pagination store.Pagination) ([]*Patient, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}}).
		SetSkip(int64(pagination.Offset))
	if pagination.Limit > 0 {
		opts.SetLimit(int64(pagination.Limit))
	}

	cursor, err := r.collection.Find(ctx, r.selector(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("error listing patients: %w", err)
	}

	patients := make([]*Patient, 0)
	if err = cursor.All(ctx, &patients); err != nil {
		return nil, fmt.Errorf("error decoding patients list: %w", err)
	}

	return patients, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status Status) (*Patient, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return r.update(ctx, id, bson.M{"status": status})
}

func (r *repository) UpdateRiskLevel(ctx context.Context, id string, riskLevel RiskLevel) (*Patient, error) {
	if !riskLevel.Valid() {
		return nil, ErrInvalidRisk
	}
	return r.update(ctx, id, bson.M{"riskLevel": riskLevel})
}

func (r *repository) CountByStatus(ctx context.Context, ids []string) (map[Status]int, error) {
	counts := make(map[Status]int)
	err := r.countBy(ctx, ids, "$status", func(key string, count int) {
		counts[Status(key)] = count
	})
	return counts, err
}

func (r *repository) CountByRiskLevel(ctx context.Context, ids []string) (map[RiskLevel]int, error) {
	counts := make(map[RiskLevel]int)
	err := r.countBy(ctx, ids, "$riskLevel", func(key string, count int) {
		counts[RiskLevel(key)] = count
	})
	return counts, err
}

func (r *repository) countBy(ctx context.Context, ids []string, field string, add func(key string, count int)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": store.ObjectIDSFromStringArray(ids)}}}},
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("error counting patients: %w", err)
	}

	var results []struct {
		Key   string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return fmt.Errorf("error decoding patient counts: %w", err)
	}
	for _, result := range results {
		add(result.Key, result.Count)
	}
	return nil
}

func (r *repository) update(ctx context.Context, id string, set bson.M) (*Patient, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set["updatedTime"] = time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	patient := &Patient{}
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objId}, bson.M{"$set": set}, opts).Decode(patient)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error updating patient: %w", err)
	}

	return patient, nil
}

func (r *repository) selector(filter *Filter) bson.M {
	selector := bson.M{}
	if filter == nil {
		filter = &Filter{}
	}

	if filter.Ids != nil {
		selector["_id"] = bson.M{"$in": store.ObjectIDSFromStringArray(filter.Ids)}
	}
	if filter.Status != nil {
		selector["status"] = filter.Status
	} else if !filter.IncludeInactive {
		selector["status"] = bson.M{"$in": []Status{StatusActive, StatusHighRisk}}
	}
	if filter.Search != nil && *filter.Search != "" {
		search := primitive.Regex{Pattern: regexp.QuoteMeta(*filter.Search), Options: "i"}
		selector["$or"] = bson.A{
			bson.M{"firstName": search},
			bson.M{"lastName": search},
			bson.M{"mrn": search},
		}
	}
	return selector
}
