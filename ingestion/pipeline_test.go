package ingestion_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/biomarkers"
	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/ingestion"
	ingestionTest "github.com/tidepool-org/cardiac/ingestion/test"
	"github.com/tidepool-org/cardiac/provider"
	providerTest "github.com/tidepool-org/cardiac/provider/test"
	"github.com/tidepool-org/cardiac/ranges"
	"github.com/tidepool-org/cardiac/samples"
	"github.com/tidepool-org/cardiac/sessions"
	"github.com/tidepool-org/cardiac/store"
	dbTest "github.com/tidepool-org/cardiac/store/test"
	"github.com/tidepool-org/cardiac/test"
)

var _ = Describe("Pipeline", func() {
	var server *providerTest.FitbitServer
	var credentials *ingestionTest.MockCredentials
	var evaluator *ingestionTest.MockEvaluator
	var samplesRepo samples.Repository
	var biomarkersRepo biomarkers.Repository
	var pipeline *ingestion.Pipeline
	var patientId string
	var token string

	const retryDelay = 50 * time.Millisecond
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	days := []string{"2024-06-01", "2024-06-02", "2024-06-03"}

	normalSeries := map[string]float64{"08:00:00": 70, "08:01:00": 72, "08:02:00": 71}

	allowEvaluations := func() {
		evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(&alerts.Result{}, nil).AnyTimes()
		evaluator.EXPECT().EvaluateMissingData(gomock.Any(), gomock.Any(), gomock.Any()).Return(&alerts.Result{}, nil).AnyTimes()
	}

	countSamples := func(kind samples.Kind) int {
		result, err := samplesRepo.List(context.Background(), patientId, &samples.Filter{Kind: &kind})
		Expect(err).ToNot(HaveOccurred())
		return len(result)
	}

	BeforeEach(func() {
		server = providerTest.ServerStub()
		token = server.IssueToken()
		patientId = primitive.NewObjectID().Hex()

		ctrl := gomock.NewController(GinkgoT())
		credentials = ingestionTest.NewMockCredentials(ctrl)
		evaluator = ingestionTest.NewMockEvaluator(ctrl)

		logger := zap.NewNop().Sugar()
		lifecycle := fxtest.NewLifecycle(GinkgoT())
		var err error
		samplesRepo, err = samples.NewRepository(dbTest.GetTestDatabase(), logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		biomarkersRepo, err = biomarkers.NewRepository(dbTest.GetTestDatabase(), logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		lifecycle.RequireStart()

		table, err := ranges.DefaultTable()
		Expect(err).ToNot(HaveOccurred())
		classifier, err := ranges.NewClassifier(table, logger)
		Expect(err).ToNot(HaveOccurred())

		providerConfig := &provider.Config{
			BaseURL:           server.BaseURL(),
			RequestTimeout:    time.Second,
			IntradayDetail:    provider.DetailOneMinute,
			RequestsPerSecond: 100,
			Burst:             10,
			RetryAttempts:     3,
			RetryDelay:        retryDelay,
			RetryMaxDelay:     time.Second,
			RetryMaxJitter:    time.Millisecond,
		}
		pipeline, err = ingestion.NewPipeline(ingestion.Params{
			Biomarkers:     biomarkersRepo,
			Classifier:     classifier,
			Client:         provider.NewClient(providerConfig, provider.NewLimiter(providerConfig), logger),
			Config:         &config.Config{SyncWorkers: 2, BackfillDays: 7},
			Credentials:    credentials,
			Evaluator:      evaluator,
			Logger:         logger,
			ProviderConfig: providerConfig,
			Samples:        samplesRepo,
		})
		Expect(err).ToNot(HaveOccurred())
		pipeline = pipeline.WithClock(func() time.Time { return now })
	})

	AfterEach(func() {
		server.Close()
	})

	Context("with valid credentials", func() {
		BeforeEach(func() {
			credentials.EXPECT().GetValidToken(gomock.Any(), gomock.Any()).Return(token, nil).AnyTimes()
		})

		It("syncs every day of the window oldest first", func() {
			allowEvaluations()
			for _, day := range days {
				server.AddIntraday(day, normalSeries)
				server.SetRestingHeartRate(day, 62)
			}
			server.SetActivity(days[0], 5400, 2100)

			report, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Errors).To(BeEmpty())
			Expect(report.DaysSucceeded).To(Equal(days))
			Expect(*report.SyncedThrough).To(Equal(days[2]))
			Expect(report.Aborted).To(BeFalse())
			Expect(report.SamplesWritten).To(Equal(10))
			Expect(report.BiomarkersWritten).To(Equal(7))

			Expect(countSamples(samples.KindHeartRate)).To(Equal(9))
			Expect(countSamples(samples.KindActivity)).To(Equal(1))

			restingType := biomarkers.TypeRestingHeartRate
			resting, err := biomarkersRepo.List(context.Background(), patientId, &restingType, store.Window{From: now.AddDate(0, 0, -3), To: now})
			Expect(err).ToNot(HaveOccurred())
			Expect(resting).To(HaveLen(3))
			Expect(resting[0].Timestamp).To(BeTemporally("==", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))
			Expect(resting[0].CalculatedTime).To(BeTemporally("==", now))
		})

		It("does not duplicate data when syncing overlapping windows", func() {
			allowEvaluations()
			for _, day := range days {
				server.AddIntraday(day, normalSeries)
				server.SetRestingHeartRate(day, 62)
			}

			_, err := pipeline.Sync(context.Background(), patientId, 2)
			Expect(err).ToNot(HaveOccurred())

			report, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.SamplesWritten).To(Equal(3))
			Expect(report.BiomarkersWritten).To(Equal(2))
			Expect(countSamples(samples.KindHeartRate)).To(Equal(9))
		})

		It("retries rate limited requests with backoff", func() {
			allowEvaluations()
			for _, day := range days {
				server.AddIntraday(day, normalSeries)
			}
			server.FailNext("/date/2024-06-02/1d/1min", http.StatusTooManyRequests, 1)

			start := time.Now()
			report, err := pipeline.Sync(context.Background(), patientId, 3)
			elapsed := time.Since(start)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Errors).To(BeEmpty())
			Expect(report.DaysSucceeded).To(HaveLen(3))
			Expect(countSamples(samples.KindHeartRate)).To(Equal(9))
			Expect(server.Requests("/date/2024-06-02/1d/1min")).To(Equal(2))
			Expect(elapsed).To(BeNumerically(">=", retryDelay))
		})

		It("honors the retry after hint of the provider", func() {
			allowEvaluations()
			server.AddIntraday(days[2], normalSeries)
			server.FailNextWithRetryAfter("/date/2024-06-03/1d/1min", http.StatusTooManyRequests, 1, "1")

			start := time.Now()
			report, err := pipeline.Sync(context.Background(), patientId, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Errors).To(BeEmpty())
			Expect(time.Since(start)).To(BeNumerically(">=", time.Second))
		})

		It("records days which fail after all attempts and continues", func() {
			allowEvaluations()
			for _, day := range days {
				server.AddIntraday(day, normalSeries)
			}
			server.FailNext("/date/2024-06-02/1d/1min", http.StatusInternalServerError, 3)

			report, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Errors).To(HaveLen(1))
			Expect(report.Errors[0].Day).To(Equal(days[1]))
			Expect(report.DaysSucceeded).To(Equal([]string{days[0], days[2]}))
			Expect(*report.SyncedThrough).To(Equal(days[0]))
			Expect(report.Aborted).To(BeFalse())
			Expect(countSamples(samples.KindHeartRate)).To(Equal(6))
			Expect(server.Requests("/date/2024-06-02/1d/1min")).To(Equal(3))
		})

		It("does not write a partial day when a later request of the day fails", func() {
			allowEvaluations()
			server.AddIntraday(days[2], normalSeries)
			server.FailNext("/activities/date/2024-06-03", http.StatusBadGateway, 3)

			report, err := pipeline.Sync(context.Background(), patientId, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Errors).To(HaveLen(1))
			Expect(report.SyncedThrough).To(BeNil())
			Expect(countSamples(samples.KindHeartRate)).To(BeZero())
		})

		It("skips invalid observations", func() {
			allowEvaluations()
			server.AddIntraday(days[2], map[string]float64{"08:00:00": 70, "08:01:00": 350})

			report, err := pipeline.Sync(context.Background(), patientId, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Errors).To(BeEmpty())
			Expect(report.SamplesWritten).To(Equal(1))
		})

		It("evaluates the most severe heart rate of the day", func() {
			server.AddIntraday(days[2], map[string]float64{"08:00:00": 70, "08:01:00": 190, "08:02:00": 160})

			evaluator.EXPECT().Evaluate(gomock.Any(), test.Match(func(e alerts.Evaluation) bool {
				return e.AlertType == alerts.TypeHighHeartRate && e.Tier == ranges.TierCritical && e.TriggerValue == 190
			})).Return(&alerts.Result{Created: true}, nil).Times(1)
			allowEvaluations()

			report, err := pipeline.Sync(context.Background(), patientId, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.AlertsCreated).To(BeNumerically(">=", 1))
		})

		It("evaluates resting heart rate and derived hrv", func() {
			server.AddIntraday(days[2], normalSeries)
			server.SetRestingHeartRate(days[2], 45)

			evaluator.EXPECT().Evaluate(gomock.Any(), test.Match(func(e alerts.Evaluation) bool {
				return e.AlertType == alerts.TypeHighHeartRate && e.Tier == ranges.TierCritical && e.TriggerValue == 45 && e.NormalRange == "60-100"
			})).Return(&alerts.Result{Created: true}, nil).Times(1)
			evaluator.EXPECT().Evaluate(gomock.Any(), test.Match(func(e alerts.Evaluation) bool {
				return e.AlertType == alerts.TypeLowHrv
			})).Return(&alerts.Result{}, nil).Times(1)
			allowEvaluations()

			report, err := pipeline.Sync(context.Background(), patientId, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.BiomarkersWritten).To(Equal(2))
			Expect(report.AlertsCreated).To(Equal(1))
		})

		It("keeps syncing when an evaluation fails", func() {
			server.AddIntraday(days[2], map[string]float64{"08:00:00": 190})
			evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(nil, alerts.ErrInvalid).AnyTimes()

			report, err := pipeline.Sync(context.Background(), patientId, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Errors).To(BeEmpty())
			Expect(report.SamplesWritten).To(Equal(1))
		})

		It("raises missing data alerts for past days without heart rate data", func() {
			evaluator.EXPECT().EvaluateMissingData(gomock.Any(), patientId, gomock.Any()).Return(&alerts.Result{Created: true}, nil).Times(2)

			report, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.DaysSucceeded).To(HaveLen(3))
			Expect(report.AlertsCreated).To(Equal(2))
		})

		It("raises missing data alerts once per day", func() {
			evaluator.EXPECT().EvaluateMissingData(gomock.Any(), patientId, gomock.Any()).Return(&alerts.Result{Created: true}, nil).Times(2)

			_, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())

			report, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.DaysSucceeded).To(HaveLen(3))
			Expect(report.AlertsCreated).To(BeZero())
		})

		It("evaluates only the data written by the sync", func() {
			server.AddIntraday(days[1], map[string]float64{"08:00:00": 70, "08:01:00": 190})
			server.SetRestingHeartRate(days[1], 45)

			evaluator.EXPECT().Evaluate(gomock.Any(), test.Match(func(e alerts.Evaluation) bool {
				return e.TriggerValue == 190
			})).Return(&alerts.Result{Created: true}, nil).Times(1)
			evaluator.EXPECT().Evaluate(gomock.Any(), test.Match(func(e alerts.Evaluation) bool {
				return e.TriggerValue == 45
			})).Return(&alerts.Result{}, nil).Times(1)
			evaluator.EXPECT().Evaluate(gomock.Any(), test.Match(func(e alerts.Evaluation) bool {
				return e.TriggerValue == 160
			})).Return(&alerts.Result{Created: true}, nil).Times(1)
			evaluator.EXPECT().Evaluate(gomock.Any(), test.Match(func(e alerts.Evaluation) bool {
				return e.AlertType == alerts.TypeLowHrv
			})).Return(&alerts.Result{}, nil).AnyTimes()
			evaluator.EXPECT().EvaluateMissingData(gomock.Any(), patientId, gomock.Any()).Return(&alerts.Result{}, nil).Times(1)

			_, err := pipeline.Sync(context.Background(), patientId, 2)
			Expect(err).ToNot(HaveOccurred())

			report, err := pipeline.Sync(context.Background(), patientId, 2)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.SamplesWritten).To(BeZero())
			Expect(report.AlertsCreated).To(BeZero())

			server.AddIntraday(days[1], map[string]float64{"09:00:00": 160})
			report, err = pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.SamplesWritten).To(Equal(1))
			Expect(report.AlertsCreated).To(Equal(1))
		})

		It("stops between days when cancelled", func() {
			allowEvaluations()
			for _, day := range days {
				server.AddIntraday(day, normalSeries)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			reads := 0
			pipeline = pipeline.WithClock(func() time.Time {
				// the second read happens while the first day is stored
				reads++
				if reads == 2 {
					cancel()
				}
				return now
			})

			report, err := pipeline.Sync(ctx, patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Cancelled).To(BeTrue())
			Expect(report.Aborted).To(BeTrue())
			Expect(report.DaysSucceeded).To(Equal([]string{days[0]}))
			Expect(*report.SyncedThrough).To(Equal(days[0]))
			Expect(countSamples(samples.KindHeartRate)).To(Equal(3))
		})

		It("rejects non positive day counts", func() {
			_, err := pipeline.Sync(context.Background(), patientId, 0)
			Expect(err).To(MatchError(ingestion.ErrInvalidDayCount))
		})

		It("syncs several patients in parallel", func() {
			allowEvaluations()
			server.AddIntraday(days[2], normalSeries)
			other := primitive.NewObjectID().Hex()

			reports, err := pipeline.SyncAll(context.Background(), []string{patientId, other}, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(reports).To(HaveLen(2))
			Expect(reports[patientId].SamplesWritten).To(Equal(3))
			Expect(reports[other].SamplesWritten).To(Equal(3))
		})

		It("syncs the authenticated patients", func() {
			allowEvaluations()
			credentials.EXPECT().AuthenticatedPatientIds(gomock.Any()).Return([]string{patientId}, nil)

			reports, err := pipeline.SyncAuthenticated(context.Background(), 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(reports).To(HaveKey(patientId))
		})
	})

	Context("with failing credentials", func() {
		It("aborts when the credential expires during the sync", func() {
			allowEvaluations()
			for _, day := range days {
				server.AddIntraday(day, normalSeries)
			}
			gomock.InOrder(
				credentials.EXPECT().GetValidToken(gomock.Any(), patientId).Return(token, nil).Times(2),
				credentials.EXPECT().GetValidToken(gomock.Any(), patientId).Return("", sessions.ErrCredentialExpired),
			)

			report, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Aborted).To(BeTrue())
			Expect(report.RequiresAuthorization()).To(BeTrue())
			Expect(report.DaysSucceeded).To(Equal([]string{days[0]}))
			Expect(report.Errors).To(BeEmpty())
		})

		It("aborts when the patient never connected an account", func() {
			credentials.EXPECT().GetValidToken(gomock.Any(), patientId).Return("", sessions.ErrNotAuthenticated)

			report, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Aborted).To(BeTrue())
			Expect(report.AuthError).ToNot(BeEmpty())
			Expect(server.Requests("/")).To(BeZero())
		})

		It("aborts when the provider rejects the token", func() {
			credentials.EXPECT().GetValidToken(gomock.Any(), patientId).Return(token, nil).AnyTimes()
			server.RevokeAccessTokens()

			report, err := pipeline.Sync(context.Background(), patientId, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Aborted).To(BeTrue())
			Expect(report.RequiresAuthorization()).To(BeTrue())
			Expect(report.DaysSucceeded).To(BeEmpty())
			Expect(server.Requests("/profile.json")).To(Equal(1))
		})
	})
})
