package api

import (
	"fmt"
	"time"

	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/notes"
	"github.com/tidepool-org/cardiac/ranges"
	"github.com/tidepool-org/cardiac/sessions"
	"github.com/tidepool-org/cardiac/symptoms"
)

// EvaluationRequest either carries a metric value which is classified by the service,
// or a tier which was classified by the caller
type EvaluationRequest struct {
	AlertType   alerts.Type        `json:"alertType"`
	Metric      *ranges.MetricType `json:"metric,omitempty"`
	Tier        *ranges.Tier       `json:"tier,omitempty"`
	Value       *float64           `json:"value"`
	NormalRange string             `json:"normalRange,omitempty"`
}

type EvaluationResponse struct {
	Alert   *alerts.Alert `json:"alert,omitempty"`
	Created bool          `json:"created"`
}

type ResolutionRequest struct {
	ResolvedBy string `json:"resolvedBy"`
	Notes      string `json:"notes"`
}

type AuthorizationResponse struct {
	AuthorizationUrl string `json:"authorizationUrl"`
}

type SessionResponse struct {
	PatientId string         `json:"patientId"`
	State     sessions.State `json:"state"`
}

type SymptomReport struct {
	ReportDate         *time.Time `json:"reportDate,omitempty"`
	ShortnessOfBreath  int        `json:"shortnessOfBreath"`
	Fatigue            int        `json:"fatigue"`
	ChestDiscomfort    bool       `json:"chestDiscomfort"`
	SwellingFeet       bool       `json:"swellingFeet"`
	Dizziness          bool       `json:"dizziness"`
	Palpitations       bool       `json:"palpitations"`
	WeightKg           *float64   `json:"weightKg,omitempty"`
	SystolicPressure   *int       `json:"systolicPressure,omitempty"`
	DiastolicPressure  *int       `json:"diastolicPressure,omitempty"`
	TemperatureCelsius *float64   `json:"temperatureCelsius,omitempty"`
	MedicationTaken    bool       `json:"medicationTaken"`
	Notes              string     `json:"notes,omitempty"`
}

type ClinicalNote struct {
	ClinicianId string     `json:"clinicianId"`
	NoteType    notes.Type `json:"noteType,omitempty"`
	Subjective  string     `json:"subjective,omitempty"`
	Objective   string     `json:"objective,omitempty"`
	Assessment  string     `json:"assessment,omitempty"`
	Plan        string     `json:"plan,omitempty"`
	VitalSigns  string     `json:"vitalSigns,omitempty"`
}

type SymptomReportResponse struct {
	Report *symptoms.Report `json:"report"`
	Alerts []*alerts.Alert  `json:"alerts"`
}

func NewEvaluation(patientId string, dto EvaluationRequest) (alerts.Evaluation, error) {
	if dto.Value == nil {
		return alerts.Evaluation{}, fmt.Errorf("%w: value is required", ErrInvalidParameter)
	}
	evaluation := alerts.Evaluation{
		PatientId:    patientId,
		AlertType:    dto.AlertType,
		TriggerValue: *dto.Value,
		NormalRange:  dto.NormalRange,
	}
	if dto.Tier != nil {
		evaluation.Tier = *dto.Tier
	} else if dto.Metric == nil {
		return alerts.Evaluation{}, fmt.Errorf("%w: either metric or tier is required", ErrInvalidParameter)
	}
	return evaluation, nil
}

func NewEvaluationResponse(result *alerts.Result) EvaluationResponse {
	return EvaluationResponse{
		Alert:   result.Alert,
		Created: result.Created,
	}
}

func NewSymptomReport(patientId string, dto SymptomReport, now time.Time) symptoms.Report {
	reportDate := now
	if dto.ReportDate != nil {
		reportDate = *dto.ReportDate
	}
	return symptoms.Report{
		PatientId:          patientId,
		ReportDate:         reportDate.UTC(),
		ShortnessOfBreath:  dto.ShortnessOfBreath,
		Fatigue:            dto.Fatigue,
		ChestDiscomfort:    dto.ChestDiscomfort,
		SwellingFeet:       dto.SwellingFeet,
		Dizziness:          dto.Dizziness,
		Palpitations:       dto.Palpitations,
		WeightKg:           dto.WeightKg,
		SystolicPressure:   dto.SystolicPressure,
		DiastolicPressure:  dto.DiastolicPressure,
		TemperatureCelsius: dto.TemperatureCelsius,
		MedicationTaken:    dto.MedicationTaken,
		Notes:              dto.Notes,
	}
}

// NewSymptomReportResponse lists the alerts raised by the report, skipping evaluations without one
func NewSymptomReportResponse(report *symptoms.Report, results []*alerts.Result) SymptomReportResponse {
	response := SymptomReportResponse{
		Report: report,
		Alerts: []*alerts.Alert{},
	}
	for _, result := range results {
		if result != nil && result.Alert != nil {
			response.Alerts = append(response.Alerts, result.Alert)
		}
	}
	return response
}

func NewClinicalNote(patientId string, dto ClinicalNote) notes.Note {
	return notes.Note{
		PatientId:   patientId,
		ClinicianId: dto.ClinicianId,
		NoteType:    dto.NoteType,
		Subjective:  dto.Subjective,
		Objective:   dto.Objective,
		Assessment:  dto.Assessment,
		Plan:        dto.Plan,
		VitalSigns:  dto.VitalSigns,
	}
}
