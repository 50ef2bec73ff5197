package aggregation

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/biomarkers"
	"github.com/tidepool-org/cardiac/clinicians"
	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/errors"
	"github.com/tidepool-org/cardiac/notes"
	"github.com/tidepool-org/cardiac/patients"
	"github.com/tidepool-org/cardiac/samples"
	"github.com/tidepool-org/cardiac/store"
	"github.com/tidepool-org/cardiac/symptoms"
)

var ErrInvalidWindow = fmt.Errorf("invalid window %w", errors.BadRequest)

// RecentNotesLimit is the number of clinical notes included in a patient report
const RecentNotesLimit = 10

type DashboardStats struct {
	ClinicianId             string                     `json:"clinicianId"`
	From                    time.Time                  `json:"from"`
	To                      time.Time                  `json:"to"`
	Patients                int                        `json:"patients"`
	PatientsByStatus        map[patients.Status]int    `json:"patientsByStatus"`
	PatientsByRiskLevel     map[patients.RiskLevel]int `json:"patientsByRiskLevel"`
	OpenAlerts              int                        `json:"openAlerts"`
	OpenAlertsBySeverity    map[alerts.Severity]int    `json:"openAlertsBySeverity"`
	PatientsWithOpenAlerts  int                        `json:"patientsWithOpenAlerts"`
	SamplesIngested         int                        `json:"samplesIngested"`
	SymptomReportsSubmitted int                        `json:"symptomReportsSubmitted"`
	NoData                  bool                       `json:"noData"`
}

type PatientReport struct {
	PatientId        string        `json:"patientId"`
	From             time.Time     `json:"from"`
	To               time.Time     `json:"to"`
	MeanHeartRate    *float64      `json:"meanHeartRate,omitempty"`
	MinHeartRate     *float64      `json:"minHeartRate,omitempty"`
	MaxHeartRate     *float64      `json:"maxHeartRate,omitempty"`
	HeartRateSamples int           `json:"heartRateSamples"`
	MeanHrv          *float64      `json:"meanHrv,omitempty"`
	MeanRestingHR    *float64      `json:"meanRestingHeartRate,omitempty"`
	SymptomReports   int           `json:"symptomReports"`
	Alerts           int           `json:"alerts"`
	OpenAlerts       int           `json:"openAlerts"`
	ClinicalNotes    int           `json:"clinicalNotes"`
	RecentNotes      []*notes.Note `json:"recentNotes"`
	NoData           bool          `json:"noData"`
}

// Service computes read only rollups. Results are snapshots without isolation from concurrent writes.
type Service struct {
	alerts          alerts.Repository
	assignments     clinicians.Repository
	biomarkers      biomarkers.Repository
	cache           Cache
	logger          *zap.SugaredLogger
	notes           notes.Repository
	patients        patients.Repository
	reports         symptoms.Repository
	samples         samples.Repository
	dashboardWindow time.Duration
	reportWindow    time.Duration

	now func() time.Time
}

type Params struct {
	fx.In

	Alerts      alerts.Repository
	Assignments clinicians.Repository
	Biomarkers  biomarkers.Repository
	Cache       Cache
	Config      *config.Config
	Logger      *zap.SugaredLogger
	Notes       notes.Repository
	Patients    patients.Repository
	Reports     symptoms.Repository
	Samples     samples.Repository
}

func NewService(p Params) (*Service, error) {
	return &Service{
		alerts:          p.Alerts,
		assignments:     p.Assignments,
		biomarkers:      p.Biomarkers,
		cache:           p.Cache,
		logger:          p.Logger,
		notes:           p.Notes,
		patients:        p.Patients,
		reports:         p.Reports,
		samples:         p.Samples,
		dashboardWindow: p.Config.DashboardWindow,
		reportWindow:    p.Config.ReportWindow,
		now:             time.Now,
	}, nil
}

// WithClock returns a copy of the service which uses the provided clock
func (s *Service) WithClock(now func() time.Time) *Service {
	clone := *s
	clone.now = now
	return &clone
}

// DashboardWindow returns the trailing window ending now, of the given length or the configured default
func (s *Service) DashboardWindow(length time.Duration) store.Window {
	if length <= 0 {
		length = s.dashboardWindow
	}
	return store.TrailingWindow(s.now(), length)
}

// ReportWindow returns the trailing window ending now, of the given length or the configured default
func (s *Service) ReportWindow(length time.Duration) store.Window {
	if length <= 0 {
		length = s.reportWindow
	}
	return store.TrailingWindow(s.now(), length)
}

// Dashboard returns the rollup of the patients assigned to the clinician
func (s *Service) Dashboard(ctx context.Context, clinicianId string, window store.Window) (*DashboardStats, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWindow, err)
	}

	key := dashboardKey(clinicianId, window, s.cache.TTL())
	stats := &DashboardStats{}
	if ok, err := s.cache.Get(ctx, key, stats); err != nil {
		s.logger.Warnw("unable to read cached dashboard", "clinicianId", clinicianId, "error", err)
	} else if ok {
		return stats, nil
	}

	stats, err := s.dashboard(ctx, clinicianId, window)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, stats); err != nil {
		s.logger.Warnw("unable to cache dashboard", "clinicianId", clinicianId, "error", err)
	}
	return stats, nil
}

// dashboardKey is shared by windows of the same length which end in the same ttl period
func dashboardKey(clinicianId string, window store.Window, ttl time.Duration) string {
	length := int64(window.To.Sub(window.From) / time.Second)
	return fmt.Sprintf("dashboard:%s:%d:%d", clinicianId, length, window.To.Truncate(ttl).Unix())
}

func (s *Service) dashboard(ctx context.Context, clinicianId string, window store.Window) (*DashboardStats, error) {
	stats := &DashboardStats{
		ClinicianId:          clinicianId,
		From:                 window.From,
		To:                   window.To,
		PatientsByStatus:     map[patients.Status]int{},
		PatientsByRiskLevel:  map[patients.RiskLevel]int{},
		OpenAlertsBySeverity: map[alerts.Severity]int{},
	}

	assigned, err := s.assignments.ListPatientIds(ctx, clinicianId)
	if err != nil {
		return nil, err
	}
	patientIds := mapset.NewSet(assigned...)
	if patientIds.Cardinality() == 0 {
		stats.NoData = true
		return stats, nil
	}
	ids := patientIds.ToSlice()
	stats.Patients = len(ids)

	if stats.PatientsByStatus, err = s.patients.CountByStatus(ctx, ids); err != nil {
		return nil, err
	}
	if stats.PatientsByRiskLevel, err = s.patients.CountByRiskLevel(ctx, ids); err != nil {
		return nil, err
	}

	isResolved := false
	open, err := s.alerts.List(ctx, alerts.Filter{PatientIds: ids, IsResolved: &isResolved})
	if err != nil {
		return nil, err
	}
	alerted := mapset.NewSet[string]()
	for _, alert := range open {
		stats.OpenAlertsBySeverity[alert.Severity]++
		alerted.Add(alert.PatientId)
	}
	stats.OpenAlerts = len(open)
	stats.PatientsWithOpenAlerts = alerted.Intersect(patientIds).Cardinality()

	if stats.SamplesIngested, err = s.samples.Count(ctx, ids, window); err != nil {
		return nil, err
	}
	if stats.SymptomReportsSubmitted, err = s.reports.Count(ctx, ids, window); err != nil {
		return nil, err
	}

	stats.NoData = stats.SamplesIngested == 0 && stats.SymptomReportsSubmitted == 0 && stats.OpenAlerts == 0
	return stats, nil
}

// PatientReport summarizes the data of the patient in the window. Means are absent when there is no data.
func (s *Service) PatientReport(ctx context.Context, patientId string, window store.Window) (*PatientReport, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWindow, err)
	}
	if _, err := s.patients.Get(ctx, patientId); err != nil {
		return nil, err
	}

	report := &PatientReport{
		PatientId: patientId,
		From:      window.From,
		To:        window.To,
	}

	heartRate, err := s.samples.HeartRateStats(ctx, patientId, window)
	if err != nil {
		return nil, err
	}
	report.HeartRateSamples = heartRate.Count
	if heartRate.Count > 0 {
		report.MeanHeartRate = heartRate.Mean
		report.MinHeartRate = heartRate.Min
		report.MaxHeartRate = heartRate.Max
	}

	hrv, err := s.biomarkers.Mean(ctx, patientId, biomarkers.TypeHrvRmssd, window)
	if err != nil {
		return nil, err
	}
	if hrv.Count > 0 {
		report.MeanHrv = hrv.Value
	}

	resting, err := s.biomarkers.Mean(ctx, patientId, biomarkers.TypeRestingHeartRate, window)
	if err != nil {
		return nil, err
	}
	if resting.Count > 0 {
		report.MeanRestingHR = resting.Value
	}

	ids := []string{patientId}
	if report.SymptomReports, err = s.reports.Count(ctx, ids, window); err != nil {
		return nil, err
	}

	alertsInWindow, err := s.alerts.List(ctx, alerts.Filter{PatientIds: ids, Window: &window})
	if err != nil {
		return nil, err
	}
	report.Alerts = len(alertsInWindow)
	for _, alert := range alertsInWindow {
		if !alert.IsResolved {
			report.OpenAlerts++
		}
	}

	// Notes aren't bound to the window
	if report.RecentNotes, err = s.notes.List(ctx, patientId, RecentNotesLimit); err != nil {
		return nil, err
	}
	report.ClinicalNotes = len(report.RecentNotes)

	report.NoData = report.HeartRateSamples == 0 && hrv.Count == 0 && resting.Count == 0 && report.SymptomReports == 0 && report.Alerts == 0
	return report, nil
}
