package clinicians

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

	"github.com/tidepool-org/cardiac/deletions"
	"github.com/tidepool-org/cardiac/store"
)

const (
	CollectionName = "assignments"
)

var _ Repository = &repository{}

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(CollectionName),
		deletions:  deletions.NewRepository[Assignment]("assignment", []string{"patientId", "clinicianId"}, db, logger),
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
	deletions  deletions.Repository[Assignment]
	logger     *zap.SugaredLogger
}

func (r *repository) Initialize(ctx context.Context) error {
	if err := r.deletions.Initialize(ctx); err != nil {
		return err
	}

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "clinicianId", Value: 1},
				{Key: "patientId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueClinicianPatient"),
		},
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniquePrimaryClinician").
				SetPartialFilterExpression(bson.D{{Key: "isPrimary", Value: true}}),
		},
	})
	return err
}

// Assign creates or updates the assignment. Making a clinician primary demotes the
// current primary clinician of the patient in the same transaction.
func (r *repository) Assign(ctx context.Context, clinicianId string, patientId string, isPrimary bool) (*Assignment, error) {
	if clinicianId == "" || patientId == "" {
		return nil, fmt.Errorf("%w: clinician and patient ids are required", ErrInvalid)
	}

	trx := func(sessCtx mongo.SessionContext) (interface{}, error) {
		now := time.Now()
		if isPrimary {
			demote := bson.M{
				"patientId":   patientId,
				"clinicianId": bson.M{"$ne": clinicianId},
				"isPrimary":   true,
			}
			update := bson.M{"$set": bson.M{"isPrimary": false, "updatedTime": now}}
			if _, err := r.collection.UpdateMany(sessCtx, demote, update); err != nil {
				return nil, fmt.Errorf("error demoting primary clinician: %w", err)
			}
		}

		selector := bson.M{"clinicianId": clinicianId, "patientId": patientId}
		update := bson.M{
			"$set":         bson.M{"isPrimary": isPrimary, "updatedTime": now},
			"$setOnInsert": bson.M{"createdTime": now},
		}
		opts := options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After)

		assignment := &Assignment{}
		if err := r.collection.FindOneAndUpdate(sessCtx, selector, update, opts).Decode(assignment); err != nil {
			return nil, fmt.Errorf("error assigning clinician: %w", err)
		}
		return assignment, nil
	}

	result, err := store.WithTransaction(ctx, r.collection.Database().Client(), trx)
	if err != nil {
		return nil, err
	}

	r.logger.Infow("assigned clinician", "clinicianId", clinicianId, "patientId", patientId, "isPrimary", isPrimary)
	return result.(*Assignment), nil
}

// Unassign removes the assignment and archives it in the same transaction
func (r *repository) Unassign(ctx context.Context, clinicianId string, patientId string) error {
	trx := func(sessCtx mongo.SessionContext) (interface{}, error) {
		assignment := &Assignment{}
		err := r.collection.FindOneAndDelete(sessCtx, bson.M{"clinicianId": clinicianId, "patientId": patientId}).Decode(assignment)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		} else if err != nil {
			return nil, fmt.Errorf("error removing assignment: %w", err)
		}

		if err := r.deletions.Create(sessCtx, *assignment, deletions.Metadata{Reason: "unassigned"}); err != nil {
			return nil, err
		}
		return assignment, nil
	}

	if _, err := store.WithTransaction(ctx, r.collection.Database().Client(), trx); err != nil {
		return err
	}

	r.logger.Infow("unassigned clinician", "clinicianId", clinicianId, "patientId", patientId)
	return nil
}

// ListRemoved returns the archived assignments of the patient, most recently removed first
func (r *repository) ListRemoved(ctx context.Context, patientId string) ([]*Assignment, error) {
	list, err := r.deletions.List(ctx, bson.M{"patientId": patientId})
	if err != nil {
		return nil, err
	}

	removed := make([]*Assignment, 0, len(list))
	for i := range list {
		removed = append(removed, &list[i].Document)
	}
	return removed, nil
}

func (r *repository) ListPatientIds(ctx context.Context, clinicianId string) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "patientId", bson.M{"clinicianId": clinicianId})
	if err != nil {
		return nil, fmt.Errorf("error listing assigned patients: %w", err)
	}

	patientIds := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			patientIds = append(patientIds, id)
		}
	}
	return patientIds, nil
}

func (r *repository) ListAssignments(ctx context.Context, patientId string) ([]*Assignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "isPrimary", Value: -1}, {Key: "createdTime", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"patientId": patientId}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing assignments: %w", err)
	}

	assignments := make([]*Assignment, 0)
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, fmt.Errorf("error decoding assignments: %w", err)
	}
	return assignments, nil
}

func (r *repository) GetPrimary(ctx context.Context, patientId string) (*Assignment, error) {
	assignment := &Assignment{}
	err := r.collection.FindOne(ctx, bson.M{"patientId": patientId, "isPrimary": true}).Decode(assignment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error fetching primary clinician: %w", err)
	}
	return assignment, nil
}
