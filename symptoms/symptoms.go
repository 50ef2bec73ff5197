package symptoms

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/cardiac/errors"
	"github.com/tidepool-org/cardiac/ranges"
	"github.com/tidepool-org/cardiac/store"
)

var (
	ErrNotFound = fmt.Errorf("symptom report %w", errors.NotFound)
	ErrInvalid  = fmt.Errorf("invalid symptom report %w", errors.BadRequest)
)

const (
	MaxScore = 10

	criticalScore = 8
	warningScore  = 5

	// WeightGainThresholdKg is the gain which raises a weight alert when it happens within WeightGainWindow
	WeightGainThresholdKg = 2.0
	WeightGainWindow      = 72 * time.Hour
)

type Repository interface {
	Create(ctx context.Context, report Report) (*Report, error)
	Get(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context, patientId string, window store.Window) ([]*Report, error)
	Count(ctx context.Context, patientIds []string, window store.Window) (int, error)
}

type Report struct {
	Id                 *primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PatientId          string              `bson:"patientId" json:"patientId"`
	ReportDate         time.Time           `bson:"reportDate" json:"reportDate"`
	ShortnessOfBreath  int                 `bson:"shortnessOfBreath" json:"shortnessOfBreath"`
	Fatigue            int                 `bson:"fatigue" json:"fatigue"`
	ChestDiscomfort    bool                `bson:"chestDiscomfort" json:"chestDiscomfort"`
	SwellingFeet       bool                `bson:"swellingFeet" json:"swellingFeet"`
	Dizziness          bool                `bson:"dizziness" json:"dizziness"`
	Palpitations       bool                `bson:"palpitations" json:"palpitations"`
	WeightKg           *float64            `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	SystolicPressure   *int                `bson:"systolicPressure,omitempty" json:"systolicPressure,omitempty"`
	DiastolicPressure  *int                `bson:"diastolicPressure,omitempty" json:"diastolicPressure,omitempty"`
	TemperatureCelsius *float64            `bson:"temperatureCelsius,omitempty" json:"temperatureCelsius,omitempty"`
	MedicationTaken    bool                `bson:"medicationTaken" json:"medicationTaken"`
	Notes              string              `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedTime        time.Time           `bson:"createdTime" json:"createdTime"`
}

func (r Report) Validate() error {
	if r.PatientId == "" {
		return fmt.Errorf("%w: patient id is required", ErrInvalid)
	}
	if r.ReportDate.IsZero() {
		return fmt.Errorf("%w: report date is required", ErrInvalid)
	}
	if r.ShortnessOfBreath < 0 || r.ShortnessOfBreath > MaxScore {
		return fmt.Errorf("%w: shortness of breath must be between 0 and %d", ErrInvalid, MaxScore)
	}
	if r.Fatigue < 0 || r.Fatigue > MaxScore {
		return fmt.Errorf("%w: fatigue must be between 0 and %d", ErrInvalid, MaxScore)
	}
	if r.WeightKg != nil && (*r.WeightKg <= 0 || *r.WeightKg > 500) {
		return fmt.Errorf("%w: weight must be between 0 and 500 kg", ErrInvalid)
	}
	if r.SystolicPressure != nil && (*r.SystolicPressure < 50 || *r.SystolicPressure > 250) {
		return fmt.Errorf("%w: systolic pressure must be between 50 and 250", ErrInvalid)
	}
	if r.DiastolicPressure != nil && (*r.DiastolicPressure < 30 || *r.DiastolicPressure > 150) {
		return fmt.Errorf("%w: diastolic pressure must be between 30 and 150", ErrInvalid)
	}
	if r.SystolicPressure != nil && r.DiastolicPressure != nil && *r.DiastolicPressure >= *r.SystolicPressure {
		return fmt.Errorf("%w: diastolic pressure must be lower than systolic", ErrInvalid)
	}
	if r.TemperatureCelsius != nil && (*r.TemperatureCelsius < 30 || *r.TemperatureCelsius > 45) {
		return fmt.Errorf("%w: temperature must be between 30 and 45", ErrInvalid)
	}
	return nil
}

// HighestScore returns the highest ordinal score of the report
func (r Report) HighestScore() int {
	return max(r.ShortnessOfBreath, r.Fatigue)
}

// Evaluate derives a severity tier for the report along with the value which triggered it
func Evaluate(report Report) (ranges.Tier, float64) {
	score := float64(report.HighestScore())
	switch {
	case report.ChestDiscomfort:
		return ranges.TierCritical, score
	case report.HighestScore() >= criticalScore:
		return ranges.TierCritical, score
	case report.Dizziness || report.Palpitations || report.SwellingFeet:
		return ranges.TierWarning, score
	case report.HighestScore() >= warningScore:
		return ranges.TierWarning, score
	default:
		return ranges.TierNormal, score
	}
}

// WeightGain returns the largest weight gain in kilograms between two reports
// no further apart than WeightGainWindow. Reports without weight are ignored.
func WeightGain(reports []*Report) float64 {
	weighed := make([]*Report, 0, len(reports))
	for _, r := range reports {
		if r != nil && r.WeightKg != nil {
			weighed = append(weighed, r)
		}
	}
	sort.Slice(weighed, func(i, j int) bool {
		return weighed[i].ReportDate.Before(weighed[j].ReportDate)
	})

	gain := 0.0
	for i, earlier := range weighed {
		for _, later := range weighed[i+1:] {
			if later.ReportDate.Sub(earlier.ReportDate) > WeightGainWindow {
				break
			}
			gain = max(gain, *later.WeightKg-*earlier.WeightKg)
		}
	}
	return gain
}
