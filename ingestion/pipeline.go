package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/biomarkers"
	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/pointer"
	"github.com/tidepool-org/cardiac/provider"
	"github.com/tidepool-org/cardiac/ranges"
	"github.com/tidepool-org/cardiac/samples"
	"github.com/tidepool-org/cardiac/sessions"
)

// Pipeline syncs provider data of patients day by day
type Pipeline struct {
	biomarkers   biomarkers.Repository
	classifier   *ranges.Classifier
	client       provider.Client
	credentials  Credentials
	estimator    HRVEstimator
	evaluator    Evaluator
	logger       *zap.SugaredLogger
	samples      samples.Repository
	retry        RetryPolicy
	detail       string
	backfillDays int
	workers      int

	now func() time.Time
}

type Params struct {
	fx.In

	Biomarkers     biomarkers.Repository
	Classifier     *ranges.Classifier
	Client         provider.Client
	Config         *config.Config
	Credentials    Credentials
	Evaluator      Evaluator
	Logger         *zap.SugaredLogger
	ProviderConfig *provider.Config
	Samples        samples.Repository
}

func NewPipeline(p Params) (*Pipeline, error) {
	detail := p.ProviderConfig.IntradayDetail
	if detail == "" {
		detail = provider.DetailOneMinute
	}
	workers := p.Config.SyncWorkers
	if workers < 1 {
		workers = 1
	}

	return &Pipeline{
		biomarkers:   p.Biomarkers,
		classifier:   p.Classifier,
		client:       p.Client,
		credentials:  p.Credentials,
		estimator:    RmssdEstimator{},
		evaluator:    p.Evaluator,
		logger:       p.Logger,
		samples:      p.Samples,
		retry:        NewRetryPolicy(p.ProviderConfig),
		detail:       detail,
		backfillDays: p.Config.BackfillDays,
		workers:      workers,
		now:          time.Now,
	}, nil
}

// WithClock returns a copy of the pipeline which uses the provided clock
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	clone := *p
	clone.now = now
	return &clone
}

// WithEstimator returns a copy of the pipeline which derives HRV with the provided estimator
func (p *Pipeline) WithEstimator(estimator HRVEstimator) *Pipeline {
	clone := *p
	clone.estimator = estimator
	return &clone
}

// BackfillDays is the default number of days of a sync
func (p *Pipeline) BackfillDays() int {
	return p.backfillDays
}

// Sync fetches the last dayCount days of provider data of the patient, oldest first. Day failures
// are recorded in the report and don't stop the sync. Credential failures abort the sync.
// Cancellation of ctx is honored between days.
func (p *Pipeline) Sync(ctx context.Context, patientId string, dayCount int) (*SyncReport, error) {
	if dayCount <= 0 {
		return nil, ErrInvalidDayCount
	}

	report := newSyncReport(patientId)
	logger := p.logger.With("patientId", patientId)

	// In-flight requests and writes of a day complete even if the sync is cancelled
	requestCtx := context.WithoutCancel(ctx)

	token, err := p.credentials.GetValidToken(requestCtx, patientId)
	if err != nil {
		return p.abort(report, err)
	}

	loc := time.UTC
	var profile *provider.ProfileResponse
	err = p.retry.Do(requestCtx, logger, func() (err error) {
		profile, err = p.client.Profile(requestCtx, token)
		return err
	})
	if isAuthError(err) {
		return p.abort(report, err)
	} else if err != nil {
		logger.Warnw("unable to fetch provider profile, using UTC", "error", err)
	} else {
		loc = profile.User.Location()
	}

	today := startOfDay(p.now().In(loc))
	for i := dayCount - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			logger.Infow("sync cancelled", "syncedThrough", report.SyncedThrough)
			report.Cancelled = true
			report.Aborted = true
			return report, nil
		}

		day := today.AddDate(0, 0, -i)
		date := day.Format(provider.DateLayout)

		token, err = p.credentials.GetValidToken(requestCtx, patientId)
		if err != nil {
			return p.abort(report, err)
		}

		fetched, err := p.fetchDay(requestCtx, logger, token, day)
		if isAuthError(err) {
			return p.abort(report, err)
		} else if err != nil {
			logger.Warnw("unable to sync day", "day", date, "error", err)
			report.failed(date, err)
			continue
		}

		if err := p.storeDay(requestCtx, logger, patientId, day, day.Equal(today), fetched, report); err != nil {
			logger.Errorw("unable to store day", "day", date, "error", err)
			report.failed(date, err)
			continue
		}
		report.succeeded(date)
	}

	logger.Infow("sync completed",
		"samplesWritten", report.SamplesWritten,
		"biomarkersWritten", report.BiomarkersWritten,
		"alertsCreated", report.AlertsCreated,
		"errors", len(report.Errors),
	)
	return report, nil
}

// SyncAll syncs the patients in parallel, bounded by the configured number of workers
func (p *Pipeline) SyncAll(ctx context.Context, patientIds []string, dayCount int) (map[string]*SyncReport, error) {
	var mu sync.Mutex
	reports := make(map[string]*SyncReport, len(patientIds))

	g := errgroup.Group{}
	g.SetLimit(p.workers)
	for _, patientId := range patientIds {
		g.Go(func() error {
			report, err := p.Sync(ctx, patientId, dayCount)
			if err != nil {
				return fmt.Errorf("unable to sync patient %s: %w", patientId, err)
			}
			mu.Lock()
			reports[patientId] = report
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return reports, err
}

// SyncAuthenticated syncs every patient with a connected provider account
func (p *Pipeline) SyncAuthenticated(ctx context.Context, dayCount int) (map[string]*SyncReport, error) {
	patientIds, err := p.credentials.AuthenticatedPatientIds(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Infow("syncing authenticated patients", "count", len(patientIds), "days", dayCount)
	return p.SyncAll(ctx, patientIds, dayCount)
}

func (p *Pipeline) abort(report *SyncReport, err error) (*SyncReport, error) {
	if !isAuthError(err) {
		return nil, err
	}

	p.logger.Warnw("sync aborted, provider account must be reconnected", "patientId", report.PatientId, "error", err)
	report.Aborted = true
	report.AuthError = err.Error()
	return report, nil
}

type dayData struct {
	intraday *provider.HeartRateResponse
	resting  *provider.HeartRateResponse
	activity *provider.ActivityResponse
}

// fetchDay fetches all data of the day before anything is written so a failed day leaves no partial writes
func (p *Pipeline) fetchDay(ctx context.Context, logger *zap.SugaredLogger, token string, day time.Time) (*dayData, error) {
	data := &dayData{}

	err := p.retry.Do(ctx, logger, func() (err error) {
		data.intraday, err = p.client.IntradayHeartRate(ctx, token, day, p.detail)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("intraday heart rate: %w", err)
	}

	err = p.retry.Do(ctx, logger, func() (err error) {
		data.resting, err = p.client.RestingHeartRate(ctx, token, day)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resting heart rate: %w", err)
	}

	err = p.retry.Do(ctx, logger, func() (err error) {
		data.activity, err = p.client.ActivitySummary(ctx, token, day)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("activity summary: %w", err)
	}

	return data, nil
}

// storeDay writes the data of the day. Only newly written data is evaluated, so re-syncing a day
// doesn't reopen alerts which were already resolved.
func (p *Pipeline) storeDay(ctx context.Context, logger *zap.SugaredLogger, patientId string, day time.Time, isToday bool, data *dayData, report *SyncReport) error {
	fetchedTime := p.now()

	heartRates := p.heartRateSamples(logger, patientId, day, data.intraday)
	inserted, err := p.samples.UpsertMany(ctx, heartRates)
	if err != nil {
		return err
	}
	report.SamplesWritten += len(inserted)

	if worst, tier := p.mostSevere(ranges.MetricHeartRate, heartRateValues(inserted)); tier.IsBreach() {
		p.evaluateMetric(ctx, logger, report, patientId, alerts.TypeHighHeartRate, ranges.MetricHeartRate, worst, tier)
	}

	if resting := data.resting.RestingHeartRate(); resting != nil {
		biomarker := biomarkers.Biomarker{
			PatientId:         patientId,
			Type:              biomarkers.TypeRestingHeartRate,
			Value:             *resting,
			Unit:              biomarkers.UnitBeatsPerMinute,
			Timestamp:         day,
			Confidence:        1,
			CalculationMethod: biomarkers.MethodProvider,
			CalculatedTime:    fetchedTime,
		}
		written, err := p.writeBiomarker(ctx, report, biomarker)
		if err != nil {
			return err
		}
		if written {
			tier := p.classifier.Classify(ranges.MetricRestingHeartRate, *resting)
			p.evaluateMetric(ctx, logger, report, patientId, alerts.TypeHighHeartRate, ranges.MetricRestingHeartRate, *resting, tier)
		}
	}

	if value, confidence, ok := p.estimator.Estimate(heartRateValues(heartRates)); ok {
		biomarker := biomarkers.Biomarker{
			PatientId:         patientId,
			Type:              biomarkers.TypeHrvRmssd,
			Value:             value,
			Unit:              biomarkers.UnitMilliseconds,
			Timestamp:         day,
			Confidence:        confidence,
			CalculationMethod: p.estimator.Method(),
			CalculatedTime:    fetchedTime,
		}
		written, err := p.writeBiomarker(ctx, report, biomarker)
		if err != nil {
			return err
		}
		if written {
			tier := p.classifier.Classify(ranges.MetricHRVRMSSD, value)
			p.evaluateMetric(ctx, logger, report, patientId, alerts.TypeLowHrv, ranges.MetricHRVRMSSD, value, tier)
		}
	}

	if summary := data.activity.Summary; summary.Steps > 0 {
		sample := samples.Sample{
			PatientId: patientId,
			Timestamp: day,
			Source:    provider.Name,
			Kind:      samples.KindActivity,
			Steps:     pointer.FromAny(summary.Steps),
			Calories:  pointer.FromAny(summary.CaloriesOut),
		}
		inserted, err := p.samples.Upsert(ctx, sample)
		if err != nil {
			return err
		}
		if inserted {
			report.SamplesWritten++
		}

		biomarker := biomarkers.Biomarker{
			PatientId:         patientId,
			Type:              biomarkers.TypeActivityLevel,
			Value:             float64(summary.ActiveMinutes()),
			Unit:              biomarkers.UnitMinutes,
			Timestamp:         day,
			Confidence:        1,
			CalculationMethod: biomarkers.MethodProvider,
			CalculatedTime:    fetchedTime,
		}
		if _, err := p.writeBiomarker(ctx, report, biomarker); err != nil {
			return err
		}
	}

	// Today is still in progress and is synced again later
	if isToday {
		return nil
	}

	first, err := p.samples.MarkDaySynced(ctx, patientId, provider.Name, day)
	if err != nil {
		return err
	}
	if first && len(heartRates) == 0 {
		p.evaluate(logger, report, func() (*alerts.Result, error) {
			return p.evaluator.EvaluateMissingData(ctx, patientId, day)
		})
	}

	return nil
}

func heartRateValues(heartRates []samples.Sample) []float64 {
	values := make([]float64, 0, len(heartRates))
	for _, sample := range heartRates {
		if sample.HeartRate != nil {
			values = append(values, *sample.HeartRate)
		}
	}
	return values
}

// heartRateSamples converts the intraday series into samples. Invalid observations are skipped.
func (p *Pipeline) heartRateSamples(logger *zap.SugaredLogger, patientId string, day time.Time, response *provider.HeartRateResponse) []samples.Sample {
	if response == nil || response.Intraday == nil {
		return nil
	}

	result := make([]samples.Sample, 0, len(response.Intraday.Dataset))
	for _, point := range response.Intraday.Dataset {
		timestamp, err := point.Timestamp(day, day.Location())
		if err != nil {
			logger.Warnw("skipping intraday observation", "error", err)
			continue
		}
		sample := samples.Sample{
			PatientId:   patientId,
			Timestamp:   timestamp,
			Source:      provider.Name,
			Kind:        samples.KindHeartRate,
			DeviceType:  provider.Name,
			HeartRate:   pointer.FromAny(point.Value),
			DataQuality: pointer.FromAny(1.0),
		}
		if err := sample.Validate(); err != nil {
			logger.Warnw("skipping invalid heart rate observation", "time", point.Time, "value", point.Value, "error", err)
			continue
		}
		result = append(result, sample)
	}
	return result
}

// mostSevere returns the first value of the most severe tier
func (p *Pipeline) mostSevere(metric ranges.MetricType, values []float64) (float64, ranges.Tier) {
	var worst float64
	worstTier := ranges.TierNormal
	for _, value := range values {
		tier := p.classifier.Classify(metric, value)
		if tier == ranges.TierCritical {
			return value, tier
		}
		if tier == ranges.TierWarning && worstTier != ranges.TierWarning {
			worst, worstTier = value, tier
		}
	}
	return worst, worstTier
}

func (p *Pipeline) writeBiomarker(ctx context.Context, report *SyncReport, biomarker biomarkers.Biomarker) (bool, error) {
	inserted, err := p.biomarkers.Upsert(ctx, biomarker)
	if err != nil {
		return false, err
	}
	if inserted {
		report.BiomarkersWritten++
	}
	return inserted, nil
}

func (p *Pipeline) evaluateMetric(ctx context.Context, logger *zap.SugaredLogger, report *SyncReport, patientId string, alertType alerts.Type, metric ranges.MetricType, value float64, tier ranges.Tier) {
	p.evaluate(logger, report, func() (*alerts.Result, error) {
		return p.evaluator.Evaluate(ctx, alerts.Evaluation{
			PatientId:    patientId,
			AlertType:    alertType,
			Tier:         tier,
			TriggerValue: value,
			NormalRange:  p.classifier.NormalRange(metric),
		})
	})
}

// evaluate logs evaluation failures without failing the day
func (p *Pipeline) evaluate(logger *zap.SugaredLogger, report *SyncReport, fn func() (*alerts.Result, error)) {
	result, err := fn()
	if err != nil {
		logger.Errorw("unable to evaluate alert", "error", err)
		return
	}
	if result != nil && result.Created {
		report.AlertsCreated++
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, sessions.ErrCredentialExpired) || errors.Is(err, provider.ErrCredentialInvalid)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
