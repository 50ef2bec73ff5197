package sessions

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
)

const (
	CollectionName = "sessions"
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
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniquePatientId"),
		},
		{
			Keys: bson.D{
				{Key: "pendingState", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniquePendingState").
				SetPartialFilterExpression(bson.D{{Key: "pendingState", Value: bson.M{"$exists": true}}}),
		},
		{
			Keys: bson.D{
				{Key: "state", Value: 1},
			},
			Options: options.Index().
				SetName("SessionsByState"),
		},
	})
	return err
}

func (r *repository) Get(ctx context.Context, patientId string) (*ExternalSession, error) {
	return r.getOne(ctx, bson.M{"patientId": patientId})
}

func (r *repository) GetByPendingState(ctx context.Context, state string) (*ExternalSession, error) {
	if state == "" {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, bson.M{"pendingState": state})
}

func (r *repository) Upsert(ctx context.Context, session *ExternalSession) (*ExternalSession, error) {
	now := time.Now()
	session.UpdatedTime = now

	doc := *session
	doc.Id = nil
	createdTime := doc.CreatedTime
	if createdTime.IsZero() {
		createdTime = now
	}

	set, err := toBsonM(doc)
	if err != nil {
		return nil, err
	}
	delete(set, "createdTime")

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdTime": createdTime},
	}
	unset := bson.M{}
	if session.PendingState == "" {
		unset["pendingState"] = ""
		unset["pendingStateExpiresAt"] = ""
	}
	if session.AccessToken == "" {
		unset["accessToken"] = ""
		unset["refreshToken"] = ""
		unset["tokenType"] = ""
		unset["expiresAt"] = ""
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	result := &ExternalSession{}
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"patientId": session.PatientId}, update, opts).Decode(result)
	if err != nil {
		return nil, fmt.Errorf("error upserting session: %w", err)
	}
	return result, nil
}

func (r *repository) Delete(ctx context.Context, patientId string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"patientId": patientId}); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

func (r *repository) ListAuthenticatedPatientIds(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "patientId", bson.M{"state": StateAuthenticated})
	if err != nil {
		return nil, fmt.Errorf("error listing authenticated sessions: %w", err)
	}

	patientIds := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			patientIds = append(patientIds, id)
		}
	}
	return patientIds, nil
}

func (r *repository) getOne(ctx context.Context, selector bson.M) (*ExternalSession, error) {
	session := &ExternalSession{}
	err := r.collection.FindOne(ctx, selector).Decode(session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error fetching session: %w", err)
	}
	return session, nil
}

// toBsonM converts a document to a map, dropping the fields marked as omitempty
func toBsonM(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := bson.M{}
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
