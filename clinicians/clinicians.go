package clinicians

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/cardiac/errors"
)

var (
	ErrNotFound = fmt.Errorf("assignment %w", errors.NotFound)
	ErrInvalid  = fmt.Errorf("invalid assignment %w", errors.BadRequest)
)

type Repository interface {
	Assign(ctx context.Context, clinicianId string, patientId string, isPrimary bool) (*Assignment, error)
	Unassign(ctx context.Context, clinicianId string, patientId string) error
	ListPatientIds(ctx context.Context, clinicianId string) ([]string, error)
	ListAssignments(ctx context.Context, patientId string) ([]*Assignment, error)
	GetPrimary(ctx context.Context, patientId string) (*Assignment, error)
	ListRemoved(ctx context.Context, patientId string) ([]*Assignment, error)
}

// Assignment links a clinician to a patient under their care. A patient has at most one primary clinician.
type Assignment struct {
	Id          *primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ClinicianId string              `bson:"clinicianId" json:"clinicianId"`
	PatientId   string              `bson:"patientId" json:"patientId"`
	IsPrimary   bool                `bson:"isPrimary" json:"isPrimary"`
	CreatedTime time.Time           `bson:"createdTime" json:"createdTime"`
	UpdatedTime time.Time           `bson:"updatedTime" json:"updatedTime"`
}
