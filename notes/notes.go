package notes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/cardiac/errors"
)

var (
	ErrInvalid = fmt.Errorf("invalid clinical note %w", errors.BadRequest)
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Type string

const (
	TypeProgress     Type = "progress"
	TypeAssessment   Type = "assessment"
	TypePlan         Type = "plan"
	TypeTelemedicine Type = "telemedicine"
)

func (t Type) Validate() error {
	switch t {
	case TypeProgress, TypeAssessment, TypePlan, TypeTelemedicine:
		return nil
	default:
		return fmt.Errorf("%w: unknown note type %q", ErrInvalid, t)
	}
}

type Repository interface {
	Create(ctx context.Context, note Note) (*Note, error)
	// List returns the most recent notes of the patient, newest first
	List(ctx context.Context, patientId string, limit int) ([]*Note, error)
}

// Note is a clinician's record of a patient encounter
type Note struct {
	Id          *primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PatientId   string              `bson:"patientId" json:"patientId"`
	ClinicianId string              `bson:"clinicianId" json:"clinicianId"`
	NoteType    Type                `bson:"noteType" json:"noteType"`
	Subjective  string              `bson:"subjective,omitempty" json:"subjective,omitempty"`
	Objective   string              `bson:"objective,omitempty" json:"objective,omitempty"`
	Assessment  string              `bson:"assessment,omitempty" json:"assessment,omitempty"`
	Plan        string              `bson:"plan,omitempty" json:"plan,omitempty"`
	VitalSigns  string              `bson:"vitalSigns,omitempty" json:"vitalSigns,omitempty"`
	CreatedTime time.Time           `bson:"createdTime" json:"createdTime"`
}

func (n Note) Validate() error {
	if n.PatientId == "" {
		return fmt.Errorf("%w: patient id is required", ErrInvalid)
	}
	if n.ClinicianId == "" {
		return fmt.Errorf("%w: clinician id is required", ErrInvalid)
	}
	if err := n.NoteType.Validate(); err != nil {
		return err
	}
	if n.IsEmpty() {
		return fmt.Errorf("%w: note has no content", ErrInvalid)
	}
	return nil
}

func (n Note) IsEmpty() bool {
	for _, section := range []string{n.Subjective, n.Objective, n.Assessment, n.Plan, n.VitalSigns} {
		if strings.TrimSpace(section) != "" {
			return false
		}
	}
	return true
}

// Limit clamps the requested number of notes. Non positive values select the default.
func Limit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}
