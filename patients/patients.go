package patients

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/cardiac/errors"
	"github.com/tidepool-org/cardiac/store"
)

var (
	ErrNotFound      = fmt.Errorf("patient %w", errors.NotFound)
	ErrInvalid       = fmt.Errorf("invalid patient %w", errors.BadRequest)
	ErrInvalidStatus = fmt.Errorf("invalid patient status %w", errors.BadRequest)
	ErrInvalidRisk   = fmt.Errorf("invalid patient risk level %w", errors.BadRequest)
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
	StatusHighRisk Status = "high_risk"
)

var Statuses = []Status{StatusActive, StatusInactive, StatusArchived, StatusHighRisk}

func (s Status) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Monitored returns true for patients whose data is still being collected
func (s Status) Monitored() bool {
	return s == StatusActive || s == StatusHighRisk
}

type RiskLevel string

const (
	RiskLevelUnset    RiskLevel = "unset"
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

var RiskLevels = []RiskLevel{RiskLevelUnset, RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical}

func (r RiskLevel) Valid() bool {
	for _, level := range RiskLevels {
		if r == level {
			return true
		}
	}
	return false
}

type Repository interface {
	Get(ctx context.Context, id string) (*Patient, error)
	Create(ctx context.Context, patient Patient) (*Patient, error)
	List(ctx context.Context, filter *Filter, pagination store.Pagination) ([]*Patient, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Patient, error)
	UpdateRiskLevel(ctx context.Context, id string, riskLevel RiskLevel) (*Patient, error)
	CountByStatus(ctx context.Context, ids []string) (map[Status]int, error)
	CountByRiskLevel(ctx context.Context, ids []string) (map[RiskLevel]int, error)
}

type Patient struct {
	Id                *primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	FirstName         string              `bson:"firstName" json:"firstName"`
	LastName          string              `bson:"lastName" json:"lastName"`
	BirthDate         string              `bson:"birthDate,omitempty" json:"birthDate,omitempty"`
	Gender            string              `bson:"gender,omitempty" json:"gender,omitempty"`
	Mrn               *string             `bson:"mrn,omitempty" json:"mrn,omitempty"`
	Email             *string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone             *string             `bson:"phone,omitempty" json:"phone,omitempty"`
	DeviceType        string              `bson:"deviceType,omitempty" json:"deviceType,omitempty"`
	DeviceId          string              `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	BaselineHeartRate *float64            `bson:"baselineHeartRate,omitempty" json:"baselineHeartRate,omitempty"`
	BaselineHrv       *float64            `bson:"baselineHrv,omitempty" json:"baselineHrv,omitempty"`
	Status            Status              `bson:"status" json:"status"`
	RiskLevel         RiskLevel           `bson:"riskLevel" json:"riskLevel"`
	CreatedTime       time.Time           `bson:"createdTime" json:"createdTime"`
	UpdatedTime       time.Time           `bson:"updatedTime" json:"updatedTime"`
}

func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

func (p Patient) Validate() error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("%w: first and last name are required", ErrInvalid)
	}
	if p.BirthDate != "" {
		if _, err := time.Parse(time.DateOnly, p.BirthDate); err != nil {
			return fmt.Errorf("%w: birth date must be formatted as YYYY-MM-DD", ErrInvalid)
		}
	}
	if p.Status != "" && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if p.RiskLevel != "" && !p.RiskLevel.Valid() {
		return ErrInvalidRisk
	}
	if p.BaselineHeartRate != nil && (*p.BaselineHeartRate <= 0 || *p.BaselineHeartRate > 300) {
		return fmt.Errorf("%w: baseline heart rate is out of range", ErrInvalid)
	}
	if p.BaselineHrv != nil && *p.BaselineHrv < 0 {
		return fmt.Errorf("%w: baseline hrv is out of range", ErrInvalid)
	}
	return nil
}

type Filter struct {
	Ids             []string
	Status          *Status
	IncludeInactive bool
	Search          *string
}
