package alerts

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/errors"
	"github.com/tidepool-org/cardiac/ranges"
	"github.com/tidepool-org/cardiac/store"
)

var (
	ErrNotFound        = fmt.Errorf("alert %w", errors.NotFound)
	ErrAlreadyResolved = fmt.Errorf("alert is already resolved: %w", ErrNotFound)
	ErrInvalid         = fmt.Errorf("invalid alert %w", errors.BadRequest)
	ErrDuplicate       = fmt.Errorf("open alert %w", errors.Duplicate)
)

type Type string

const (
	TypeHighHeartRate        Type = "high_heart_rate"
	TypeLowHrv               Type = "low_hrv"
	TypeSymptomDeterioration Type = "symptom_deterioration"
	TypeMissingData          Type = "missing_data"
	TypeWeightIncrease       Type = "weight_increase"
)

var Types = []Type{
	TypeHighHeartRate,
	TypeLowHrv,
	TypeSymptomDeterioration,
	TypeMissingData,
	TypeWeightIncrease,
}

func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// Title returns the human readable title of the alert type, e.g. "High Heart Rate"
func (t Type) Title() string {
	return titleCaser.String(strings.ReplaceAll(string(t), "_", " "))
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForTier maps a breaching tier to an alert severity. Warning maps to
// high unless the configured mapping is medium. Returns false for tiers which are not breaches.
func SeverityForTier(tier ranges.Tier, warningSeverity string) (Severity, bool) {
	switch tier {
	case ranges.TierCritical:
		return SeverityCritical, true
	case ranges.TierWarning:
		if warningSeverity == config.WarningSeverityMedium {
			return SeverityMedium, true
		}
		return SeverityHigh, true
	default:
		return "", false
	}
}

//go:generate go tool mockgen -source=./alerts.go -destination=./test/mock_repository.go -package test Repository

type Repository interface {
	// CreateIfAbsent inserts the alert unless an open alert of the same patient and type exists.
	// Returns the open alert and whether it was created by this call.
	CreateIfAbsent(ctx context.Context, alert Alert) (*Alert, bool, error)
	Get(ctx context.Context, id string) (*Alert, error)
	GetOpen(ctx context.Context, patientId string, alertType Type) (*Alert, error)
	Resolve(ctx context.Context, id string, resolution Resolution) (*Alert, error)
	List(ctx context.Context, filter Filter) ([]*Alert, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

// Alert is OPEN until resolved by a clinician. Resolution is terminal.
type Alert struct {
	Id              string     `bson:"_id" json:"id"`
	PatientId       string     `bson:"patientId" json:"patientId"`
	AlertType       Type       `bson:"alertType" json:"alertType"`
	Severity        Severity   `bson:"severity" json:"severity"`
	Title           string     `bson:"title" json:"title"`
	Description     string     `bson:"description" json:"description"`
	TriggerValue    float64    `bson:"triggerValue" json:"triggerValue"`
	NormalRange     string     `bson:"normalRange" json:"normalRange"`
	IsResolved      bool       `bson:"isResolved" json:"isResolved"`
	ResolvedTime    *time.Time `bson:"resolvedTime,omitempty" json:"resolvedTime,omitempty"`
	ResolvedBy      string     `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	ResolutionNotes string     `bson:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`
	CreatedTime     time.Time  `bson:"createdTime" json:"createdTime"`
}

type Resolution struct {
	ResolvedBy string
	Notes      string
	Time       time.Time
}

func (r Resolution) Validate() error {
	if strings.TrimSpace(r.ResolvedBy) == "" {
		return fmt.Errorf("%w: resolving clinician is required", ErrInvalid)
	}
	return nil
}

type Filter struct {
	PatientIds []string
	IsResolved *bool
	AlertType  *Type
	Window     *store.Window
}

// Evaluation is a classified value for a patient
type Evaluation struct {
	PatientId    string      `json:"patientId"`
	AlertType    Type        `json:"alertType"`
	Tier         ranges.Tier `json:"tier"`
	TriggerValue float64     `json:"triggerValue"`
	NormalRange  string      `json:"normalRange"`
}

func (e Evaluation) Validate() error {
	if e.PatientId == "" {
		return fmt.Errorf("%w: patient id is required", ErrInvalid)
	}
	if !e.AlertType.Valid() {
		return fmt.Errorf("%w: unknown alert type %q", ErrInvalid, e.AlertType)
	}
	return nil
}

func (e Evaluation) description() string {
	value := strconv.FormatFloat(e.TriggerValue, 'f', -1, 64)
	if e.NormalRange == "" {
		return fmt.Sprintf("%s detected with value %s", e.AlertType.Title(), value)
	}
	return fmt.Sprintf("%s detected with value %s outside of the normal range %s", e.AlertType.Title(), value, e.NormalRange)
}

// Result is the outcome of an evaluation. Alert is nil when the tier did not breach.
type Result struct {
	Alert   *Alert `json:"alert,omitempty"`
	Created bool   `json:"created"`
}
