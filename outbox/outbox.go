package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const CollectionName = "outbox"

// EventType identifies the kind of event
type EventType string

const (
	EventTypeAlertCreated  EventType = "alert_created"
	EventTypeAlertResolved EventType = "alert_resolved"
)

// Event is the common envelope for all outbox events
type Event struct {
	Id          *primitive.ObjectID `bson:"_id,omitempty"`
	EventId     string              `bson:"eventId"`
	EventType   EventType           `bson:"eventType"`
	PatientId   string              `bson:"patientId"`
	CreatedTime time.Time           `bson:"createdTime"`
	Payload     bson.Raw            `bson:"payload"`
}

// Decode unmarshals the event payload into v
func (e Event) Decode(v interface{}) error {
	if err := bson.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("error unmarshaling outbox event payload: %w", err)
	}
	return nil
}

// AlertPayload is the payload of alert_created and alert_resolved events
type AlertPayload struct {
	AlertId         string    `bson:"alertId"`
	AlertType       string    `bson:"alertType"`
	Severity        string    `bson:"severity"`
	Title           string    `bson:"title"`
	TriggerValue    float64   `bson:"triggerValue"`
	ResolvedBy      string    `bson:"resolvedBy,omitempty"`
	ResolutionNotes string    `bson:"resolutionNotes,omitempty"`
	OccurredTime    time.Time `bson:"occurredTime"`
}

//go:generate go tool mockgen -source=./outbox.go -destination=./test/mock_outbox.go -package test

type Repository interface {
	Create(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
	Initialize(ctx context.Context) error
}

type Filter struct {
	PatientId *string
	EventType *EventType
	Since     *time.Time
	Limit     int
}

// NewEvent creates an Event from a typed payload
func NewEvent(eventType EventType, patientId string, payload interface{}) (Event, error) {
	raw, err := bson.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("error marshaling outbox event payload: %w", err)
	}

	return Event{
		EventId:     uuid.NewString(),
		EventType:   eventType,
		PatientId:   patientId,
		CreatedTime: time.Now(),
		Payload:     bson.Raw(raw),
	}, nil
}
