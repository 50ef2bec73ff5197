package biomarkers

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/cardiac/errors"
	"github.com/tidepool-org/cardiac/store"
)

var ErrInvalid = fmt.Errorf("invalid biomarker %w", errors.BadRequest)

type Type string

const (
	TypeRestingHeartRate Type = "resting_heart_rate"
	TypeHrvRmssd         Type = "hrv_rmssd"
	TypeHrvSdnn          Type = "hrv_sdnn"
	TypeHrRecovery       Type = "hr_recovery"
	TypeActivityLevel    Type = "activity_level"
	TypeSleepDuration    Type = "sleep_duration"
	TypeWeightTrend      Type = "weight_trend"
	TypeSymptomReport    Type = "symptom_report"
)

var Types = []Type{
	TypeRestingHeartRate,
	TypeHrvRmssd,
	TypeHrvSdnn,
	TypeHrRecovery,
	TypeActivityLevel,
	TypeSleepDuration,
	TypeWeightTrend,
	TypeSymptomReport,
}

func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

const (
	UnitBeatsPerMinute = "bpm"
	UnitMilliseconds   = "ms"
	UnitMinutes        = "min"
	UnitKilograms      = "kg"
	UnitScore          = "score"

	MethodProvider = "provider"
)

type Repository interface {
	Upsert(ctx context.Context, biomarker Biomarker) (bool, error)
	List(ctx context.Context, patientId string, biomarkerType *Type, window store.Window) ([]*Biomarker, error)
	Mean(ctx context.Context, patientId string, biomarkerType Type, window store.Window) (*Mean, error)
}

// Biomarker is a derived clinical value. It is identified by patient, type,
// timestamp and calculation method and never changes once written.
type Biomarker struct {
	Id                *primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PatientId         string              `bson:"patientId" json:"patientId"`
	Type              Type                `bson:"type" json:"type"`
	Value             float64             `bson:"value" json:"value"`
	Unit              string              `bson:"unit" json:"unit"`
	Timestamp         time.Time           `bson:"timestamp" json:"timestamp"`
	Confidence        float64             `bson:"confidence" json:"confidence"`
	CalculationMethod string              `bson:"calculationMethod" json:"calculationMethod"`
	CalculatedTime    time.Time           `bson:"calculatedTime" json:"calculatedTime"`
}

func (b Biomarker) Validate() error {
	if b.PatientId == "" {
		return fmt.Errorf("%w: patient id is required", ErrInvalid)
	}
	if !b.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, b.Type)
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalid)
	}
	if b.Confidence < 0 || b.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalid)
	}
	if b.CalculationMethod == "" {
		return fmt.Errorf("%w: calculation method is required", ErrInvalid)
	}
	return nil
}

type Mean struct {
	Count int      `bson:"count" json:"count"`
	Value *float64 `bson:"value" json:"value,omitempty"`
}
