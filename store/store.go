package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ContextTimeout = time.Duration(20) * time.Second
)

type Pagination struct {
	Offset int
	Limit  int
}

func DefaultPagination() Pagination {
	return Pagination{
		Offset: 0,
		Limit:  10,
	}
}

// Window is a half-open time range [From, To)
type Window struct {
	From time.Time
	To   time.Time
}

// TrailingWindow returns the window of length d ending at now
func TrailingWindow(now time.Time, d time.Duration) Window {
	return Window{From: now.Add(-d), To: now}
}

func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("window bounds are required")
	}
	if !w.From.Before(w.To) {
		return fmt.Errorf("window start %s is not before end %s", w.From, w.To)
	}
	return nil
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Selector returns a range selector on the given attribute
func (w Window) Selector(attribute string) bson.M {
	return bson.M{
		attribute: bson.M{
			"$gte": w.From,
			"$lt":  w.To,
		},
	}
}

func ObjectIDSFromStringArray(ids []string) []primitive.ObjectID {
	objectIds := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objectId, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIds = append(objectIds, objectId)
		}
	}
	return objectIds
}

func NewDbContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ContextTimeout)
}
