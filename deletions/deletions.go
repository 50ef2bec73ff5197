package deletions

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Metadata describes who or what removed the archived record
type Metadata struct {
	DeletedBy string `bson:"deletedBy,omitempty"`
	Reason    string `bson:"reason,omitempty"`
}

// Repository archives records which were removed from their primary collection
type Repository[T any] interface {
	Create(ctx context.Context, deleted T, meta Metadata) error
	List(ctx context.Context, selector bson.M) ([]Deletion[T], error)
	Initialize(ctx context.Context) error
}

type Deletion[T any] struct {
	DeletedTime time.Time `bson:"deletedTime"`
	DeletedBy   string    `bson:"deletedBy,omitempty"`
	Reason      string    `bson:"reason,omitempty"`
	Document    T         `bson:"document"`
}

// NewRepository returns the archive of the document type, stored in the <typ>_deletions collection.
// The archived documents are indexed by the primary key attributes.
func NewRepository[T any](typ string, primaryKeyAttributes []string, db *mongo.Database, logger *zap.SugaredLogger) Repository[T] {
	return &repository[T]{
		collection:           db.Collection(fmt.Sprintf("%s_deletions", typ)),
		logger:               logger,
		documentType:         typ,
		primaryKeyAttributes: primaryKeyAttributes,
	}
}

type repository[T any] struct {
	collection           *mongo.Collection
	logger               *zap.SugaredLogger
	documentType         string
	primaryKeyAttributes []string
}

func (r *repository[T]) Initialize(ctx context.Context) error {
	var keys bson.D
	for _, attr := range r.primaryKeyAttributes {
		keys = append(keys, primitive.E{Key: "document." + attr, Value: 1})
	}

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    keys,
			Options: options.Index().SetName(fmt.Sprintf("%sDeletion", cases.Title(language.English).String(r.documentType))),
		},
		{
			Keys:    append(bson.D{{Key: "deletedTime", Value: 1}}, keys...),
			Options: options.Index().SetName("DeletedTime"),
		},
	})
	return err
}

func (r *repository[T]) Create(ctx context.Context, deleted T, meta Metadata) error {
	deletion := Deletion[T]{
		DeletedTime: time.Now(),
		DeletedBy:   meta.DeletedBy,
		Reason:      meta.Reason,
		Document:    deleted,
	}
	if _, err := r.collection.InsertOne(ctx, deletion); err != nil {
		return fmt.Errorf("error archiving deleted %s: %w", r.documentType, err)
	}

	r.logger.Debugw("archived deleted document", "type", r.documentType)
	return nil
}

// List returns the archived records matching the selector on the archived document, newest first
func (r *repository[T]) List(ctx context.Context, selector bson.M) ([]Deletion[T], error) {
	filter := bson.M{}
	for attr, value := range selector {
		filter["document."+attr] = value
	}

	opts := options.Find().SetSort(bson.D{{Key: "deletedTime", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing deleted %s: %w", r.documentType, err)
	}

	list := make([]Deletion[T], 0)
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding deleted %s: %w", r.documentType, err)
	}
	return list, nil
}
