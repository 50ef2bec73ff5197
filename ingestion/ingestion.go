package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/errors"
)

var ErrInvalidDayCount = fmt.Errorf("day count must be positive %w", errors.BadRequest)

//go:generate go tool mockgen -source=./ingestion.go -destination=./test/mock_ingestion.go -package test

// Credentials hands out valid provider bearer tokens for patients
type Credentials interface {
	GetValidToken(ctx context.Context, patientId string) (string, error)
	AuthenticatedPatientIds(ctx context.Context) ([]string, error)
}

// Evaluator receives classified values produced during a sync
type Evaluator interface {
	Evaluate(ctx context.Context, evaluation alerts.Evaluation) (*alerts.Result, error)
	EvaluateMissingData(ctx context.Context, patientId string, day time.Time) (*alerts.Result, error)
}

// DayError is a failure to sync a single day
type DayError struct {
	Day   string `json:"day"`
	Error string `json:"error"`
}

type SyncReport struct {
	PatientId         string     `json:"patientId"`
	SamplesWritten    int        `json:"samplesWritten"`
	BiomarkersWritten int        `json:"biomarkersWritten"`
	AlertsCreated     int        `json:"alertsCreated"`
	Errors            []DayError `json:"errors"`
	DaysSucceeded     []string   `json:"daysSucceeded"`

	// SyncedThrough is the last day of the contiguous run of succeeded days starting with the oldest
	SyncedThrough *string `json:"syncedThrough,omitempty"`

	// Aborted is set when the sync stopped before the last day
	Aborted   bool   `json:"aborted"`
	AuthError string `json:"authError,omitempty"`
	Cancelled bool   `json:"cancelled"`
}

func newSyncReport(patientId string) *SyncReport {
	return &SyncReport{
		PatientId:     patientId,
		Errors:        []DayError{},
		DaysSucceeded: []string{},
	}
}

// RequiresAuthorization returns true if the patient must reconnect the provider account
func (r *SyncReport) RequiresAuthorization() bool {
	return r.AuthError != ""
}

func (r *SyncReport) succeeded(day string) {
	if len(r.Errors) == 0 {
		r.SyncedThrough = &day
	}
	r.DaysSucceeded = append(r.DaysSucceeded, day)
}

func (r *SyncReport) failed(day string, err error) {
	r.Errors = append(r.Errors, DayError{Day: day, Error: err.Error()})
}
