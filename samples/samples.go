package samples

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/cardiac/errors"
	"github.com/tidepool-org/cardiac/store"
)

var (
	ErrInvalid = fmt.Errorf("invalid sample %w", errors.BadRequest)
)

type Kind string

const (
	KindHeartRate Kind = "heart_rate"
	KindActivity  Kind = "activity"
	KindSleep     Kind = "sleep"
	KindSpO2      Kind = "spo2"
	KindManual    Kind = "manual"
)

const SourceManual = "manual"

type Repository interface {
	Upsert(ctx context.Context, sample Sample) (bool, error)
	// UpsertMany returns the samples which were inserted by this call
	UpsertMany(ctx context.Context, samples []Sample) ([]Sample, error)
	// MarkDaySynced records a completed sync of the day. Returns true the first time the day is marked.
	MarkDaySynced(ctx context.Context, patientId string, source string, day time.Time) (bool, error)
	List(ctx context.Context, patientId string, filter *Filter) ([]*Sample, error)
	Count(ctx context.Context, patientIds []string, window store.Window) (int, error)
	HeartRateStats(ctx context.Context, patientId string, window store.Window) (*Stats, error)
}

// SyncedDay marks a past day of a source as synced for a patient
type SyncedDay struct {
	PatientId  string    `bson:"patientId"`
	Source     string    `bson:"source"`
	Day        time.Time `bson:"day"`
	SyncedTime time.Time `bson:"syncedTime"`
}

// Sample is an immutable wearable observation. Samples are identified by
// patient, timestamp, source and kind.
type Sample struct {
	Id           *primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PatientId    string              `bson:"patientId" json:"patientId"`
	Timestamp    time.Time           `bson:"timestamp" json:"timestamp"`
	Source       string              `bson:"source" json:"source"`
	Kind         Kind                `bson:"kind" json:"kind"`
	DeviceType   string              `bson:"deviceType,omitempty" json:"deviceType,omitempty"`
	HeartRate    *float64            `bson:"heartRate,omitempty" json:"heartRate,omitempty"`
	HrvRmssd     *float64            `bson:"hrvRmssd,omitempty" json:"hrvRmssd,omitempty"`
	HrvSdnn      *float64            `bson:"hrvSdnn,omitempty" json:"hrvSdnn,omitempty"`
	Steps        *int                `bson:"steps,omitempty" json:"steps,omitempty"`
	Calories     *float64            `bson:"calories,omitempty" json:"calories,omitempty"`
	SleepMinutes *int                `bson:"sleepMinutes,omitempty" json:"sleepMinutes,omitempty"`
	SpO2         *float64            `bson:"spo2,omitempty" json:"spo2,omitempty"`
	StressLevel  *float64            `bson:"stressLevel,omitempty" json:"stressLevel,omitempty"`
	DataQuality  *float64            `bson:"dataQuality,omitempty" json:"dataQuality,omitempty"`
	CreatedTime  time.Time           `bson:"createdTime" json:"createdTime"`
}

func (s Sample) Validate() error {
	if s.PatientId == "" {
		return fmt.Errorf("%w: patient id is required", ErrInvalid)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalid)
	}
	if s.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalid)
	}
	if s.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalid)
	}
	if !between(s.HeartRate, 0, 300) {
		return fmt.Errorf("%w: heart rate must be between 0 and 300", ErrInvalid)
	}
	if !between(s.SpO2, 0, 100) {
		return fmt.Errorf("%w: spo2 must be between 0 and 100", ErrInvalid)
	}
	if !between(s.StressLevel, 0, 100) {
		return fmt.Errorf("%w: stress level must be between 0 and 100", ErrInvalid)
	}
	if !between(s.DataQuality, 0, 1) {
		return fmt.Errorf("%w: data quality must be between 0 and 1", ErrInvalid)
	}
	if !nonNegative(s.HrvRmssd) || !nonNegative(s.HrvSdnn) || !nonNegative(s.Calories) {
		return fmt.Errorf("%w: hrv and calories must not be negative", ErrInvalid)
	}
	if s.Steps != nil && *s.Steps < 0 || s.SleepMinutes != nil && *s.SleepMinutes < 0 {
		return fmt.Errorf("%w: counts must not be negative", ErrInvalid)
	}
	return nil
}

type Filter struct {
	Window store.Window
	Kind   *Kind
	Limit  int
}

type Stats struct {
	Count int      `bson:"count" json:"count"`
	Mean  *float64 `bson:"mean" json:"mean,omitempty"`
	Min   *float64 `bson:"min" json:"min,omitempty"`
	Max   *float64 `bson:"max" json:"max,omitempty"`
}

func between(v *float64, min, max float64) bool {
	return v == nil || (*v >= min && *v <= max)
}

func nonNegative(v *float64) bool {
	return v == nil || *v >= 0
}
