package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/clinicians"
	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/outbox"
	"github.com/tidepool-org/cardiac/ranges"
	"github.com/tidepool-org/cardiac/store"
	"github.com/tidepool-org/cardiac/symptoms"
)

const (
	weightNormalRange  = "0-2"
	missingDataRange   = "at least one heart rate sample per day"
	symptomNormalRange = "0-4"
)

// Engine turns classified values into the alert lifecycle
type Engine struct {
	alerts          Repository
	assignments     clinicians.Repository
	classifier      *ranges.Classifier
	dbClient        *mongo.Client
	events          outbox.Repository
	logger          *zap.SugaredLogger
	reports         symptoms.Repository
	warningSeverity string

	now func() time.Time
}

type Params struct {
	fx.In

	Alerts      Repository
	Assignments clinicians.Repository
	Classifier  *ranges.Classifier
	Config      *config.Config
	DbClient    *mongo.Client
	Events      outbox.Repository
	Logger      *zap.SugaredLogger
	Reports     symptoms.Repository
}

func NewEngine(p Params) (*Engine, error) {
	return &Engine{
		alerts:          p.Alerts,
		assignments:     p.Assignments,
		classifier:      p.Classifier,
		dbClient:        p.DbClient,
		events:          p.Events,
		logger:          p.Logger,
		reports:         p.Reports,
		warningSeverity: p.Config.WarningSeverity,
		now:             time.Now,
	}, nil
}

// WithClock returns a copy of the engine which uses the provided clock
func (e *Engine) WithClock(now func() time.Time) *Engine {
	clone := *e
	clone.now = now
	return &clone
}

// Evaluate creates an open alert for breaching tiers unless one already exists for the
// patient and alert type. Non-breaching tiers never resolve alerts.
func (e *Engine) Evaluate(ctx context.Context, evaluation Evaluation) (*Result, error) {
	if err := evaluation.Validate(); err != nil {
		return nil, err
	}

	severity, breach := SeverityForTier(evaluation.Tier, e.warningSeverity)
	if !breach {
		if evaluation.Tier == ranges.TierUnclassified {
			e.logger.Warnw("skipping unclassified value", "patientId", evaluation.PatientId, "alertType", evaluation.AlertType, "value", evaluation.TriggerValue)
		}
		return &Result{}, nil
	}

	now := e.now()
	alert := Alert{
		Id:           uuid.NewString(),
		PatientId:    evaluation.PatientId,
		AlertType:    evaluation.AlertType,
		Severity:     severity,
		Title:        evaluation.AlertType.Title(),
		Description:  evaluation.description(),
		TriggerValue: evaluation.TriggerValue,
		NormalRange:  evaluation.NormalRange,
		CreatedTime:  now,
	}

	trx := func(sessCtx mongo.SessionContext) (interface{}, error) {
		open, created, err := e.alerts.CreateIfAbsent(sessCtx, alert)
		if err != nil {
			return nil, err
		}
		if created {
			if err := e.publish(sessCtx, outbox.EventTypeAlertCreated, open, now); err != nil {
				return nil, err
			}
		}
		return &Result{Alert: open, Created: created}, nil
	}

	res, err := store.WithTransaction(ctx, e.dbClient, trx)
	if errors.Is(err, ErrDuplicate) {
		// A concurrent evaluation created the open alert first
		open, err := e.alerts.GetOpen(ctx, evaluation.PatientId, evaluation.AlertType)
		if err != nil {
			return nil, err
		}
		return &Result{Alert: open}, nil
	} else if err != nil {
		return nil, err
	}

	result := res.(*Result)
	if result.Created {
		e.logger.Infow("created alert", "alertId", result.Alert.Id, "patientId", result.Alert.PatientId, "alertType", result.Alert.AlertType, "severity", result.Alert.Severity)
	} else {
		e.logger.Debugw("open alert already exists", "alertId", result.Alert.Id, "patientId", result.Alert.PatientId, "alertType", result.Alert.AlertType)
	}
	return result, nil
}

// EvaluateValue classifies the value of the metric and evaluates the resulting tier
func (e *Engine) EvaluateValue(ctx context.Context, patientId string, alertType Type, metric ranges.MetricType, value float64) (*Result, error) {
	return e.Evaluate(ctx, Evaluation{
		PatientId:    patientId,
		AlertType:    alertType,
		Tier:         e.classifier.Classify(metric, value),
		TriggerValue: value,
		NormalRange:  e.classifier.NormalRange(metric),
	})
}

// EvaluateSymptoms evaluates the symptom scores and flags of the report and any weight gain
// across the reports of the preceding days
func (e *Engine) EvaluateSymptoms(ctx context.Context, report symptoms.Report) ([]*Result, error) {
	tier, value := symptoms.Evaluate(report)
	symptomResult, err := e.Evaluate(ctx, Evaluation{
		PatientId:    report.PatientId,
		AlertType:    TypeSymptomDeterioration,
		Tier:         tier,
		TriggerValue: value,
		NormalRange:  symptomNormalRange,
	})
	if err != nil {
		return nil, err
	}
	results := []*Result{symptomResult}

	if report.WeightKg == nil {
		return results, nil
	}

	window := store.Window{
		From: report.ReportDate.Add(-symptoms.WeightGainWindow),
		To:   report.ReportDate.Add(time.Second),
	}
	recent, err := e.reports.List(ctx, report.PatientId, window)
	if err != nil {
		return nil, err
	}

	gain := symptoms.WeightGain(append(recent, &report))
	if gain <= symptoms.WeightGainThresholdKg {
		return results, nil
	}

	weightResult, err := e.Evaluate(ctx, Evaluation{
		PatientId:    report.PatientId,
		AlertType:    TypeWeightIncrease,
		Tier:         ranges.TierWarning,
		TriggerValue: gain,
		NormalRange:  weightNormalRange,
	})
	if err != nil {
		return nil, err
	}
	return append(results, weightResult), nil
}

// EvaluateMissingData raises a missing data alert for a patient without heart rate samples on the day
func (e *Engine) EvaluateMissingData(ctx context.Context, patientId string, day time.Time) (*Result, error) {
	e.logger.Infow("no heart rate data", "patientId", patientId, "day", day.Format(time.DateOnly))
	return e.Evaluate(ctx, Evaluation{
		PatientId:    patientId,
		AlertType:    TypeMissingData,
		Tier:         ranges.TierWarning,
		TriggerValue: 0,
		NormalRange:  missingDataRange,
	})
}

// Resolve resolves an open alert on behalf of a clinician. Resolving an alert twice is an error.
func (e *Engine) Resolve(ctx context.Context, alertId string, resolvedBy string, notes string) (*Alert, error) {
	resolution := Resolution{
		ResolvedBy: resolvedBy,
		Notes:      notes,
		Time:       e.now(),
	}
	if err := resolution.Validate(); err != nil {
		return nil, err
	}

	trx := func(sessCtx mongo.SessionContext) (interface{}, error) {
		alert, err := e.alerts.Resolve(sessCtx, alertId, resolution)
		if err != nil {
			return nil, err
		}
		if err := e.publish(sessCtx, outbox.EventTypeAlertResolved, alert, resolution.Time); err != nil {
			return nil, err
		}
		return alert, nil
	}

	res, err := store.WithTransaction(ctx, e.dbClient, trx)
	if err != nil {
		return nil, err
	}

	alert := res.(*Alert)
	e.logger.Infow("resolved alert", "alertId", alert.Id, "patientId", alert.PatientId, "resolvedBy", alert.ResolvedBy)
	return alert, nil
}

func (e *Engine) Get(ctx context.Context, alertId string) (*Alert, error) {
	return e.alerts.Get(ctx, alertId)
}

// ListActive returns the open alerts of all patients assigned to the clinician
func (e *Engine) ListActive(ctx context.Context, clinicianId string) ([]*Alert, error) {
	patientIds, err := e.assignments.ListPatientIds(ctx, clinicianId)
	if err != nil {
		return nil, err
	}
	if len(patientIds) == 0 {
		return []*Alert{}, nil
	}

	ids := mapset.NewSet(patientIds...).ToSlice()
	sort.Strings(ids)

	isResolved := false
	return e.alerts.List(ctx, Filter{
		PatientIds: ids,
		IsResolved: &isResolved,
	})
}

// ListByPatient returns all alerts of the patient created in the window
func (e *Engine) ListByPatient(ctx context.Context, patientId string, window store.Window) ([]*Alert, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return e.alerts.List(ctx, Filter{
		PatientIds: []string{patientId},
		Window:     &window,
	})
}

func (e *Engine) publish(ctx context.Context, eventType outbox.EventType, alert *Alert, occurred time.Time) error {
	event, err := outbox.NewEvent(eventType, alert.PatientId, outbox.AlertPayload{
		AlertId:         alert.Id,
		AlertType:       string(alert.AlertType),
		Severity:        string(alert.Severity),
		Title:           alert.Title,
		TriggerValue:    alert.TriggerValue,
		ResolvedBy:      alert.ResolvedBy,
		ResolutionNotes: alert.ResolutionNotes,
		OccurredTime:    occurred,
	})
	if err != nil {
		return err
	}
	return e.events.Create(ctx, event)
}
