package alerts_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/alerts"
	alertsTest "github.com/tidepool-org/cardiac/alerts/test"
	"github.com/tidepool-org/cardiac/config"
	outboxTest "github.com/tidepool-org/cardiac/outbox/test"
	"github.com/tidepool-org/cardiac/ranges"
	dbTest "github.com/tidepool-org/cardiac/store/test"
)

var _ = Describe("Engine with mocked repositories", func() {
	var ctrl *gomock.Controller
	var repo *alertsTest.MockRepository
	var events *outboxTest.MockRepository
	var engine *alerts.Engine
	var evaluation alerts.Evaluation

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		repo = alertsTest.NewMockRepository(ctrl)
		events = outboxTest.NewMockRepository(ctrl)

		table, err := ranges.DefaultTable()
		Expect(err).ToNot(HaveOccurred())
		logger := zap.NewNop().Sugar()
		classifier, err := ranges.NewClassifier(table, logger)
		Expect(err).ToNot(HaveOccurred())

		engine, err = alerts.NewEngine(alerts.Params{
			Alerts:     repo,
			Classifier: classifier,
			Config:     &config.Config{WarningSeverity: config.WarningSeverityHigh},
			DbClient:   dbTest.GetTestDatabase().Client(),
			Events:     events,
			Logger:     logger,
		})
		Expect(err).ToNot(HaveOccurred())

		evaluation = alerts.Evaluation{
			PatientId:    primitive.NewObjectID().Hex(),
			AlertType:    alerts.TypeLowHrv,
			Tier:         ranges.TierCritical,
			TriggerValue: 12,
			NormalRange:  "20-100",
		}
	})

	It("returns the open alert created by a concurrent evaluation", func() {
		open := &alerts.Alert{
			Id:          "existing",
			PatientId:   evaluation.PatientId,
			AlertType:   evaluation.AlertType,
			Severity:    alerts.SeverityCritical,
			CreatedTime: time.Now(),
		}
		repo.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(nil, false, alerts.ErrDuplicate)
		repo.EXPECT().GetOpen(gomock.Any(), evaluation.PatientId, evaluation.AlertType).Return(open, nil)

		result, err := engine.Evaluate(context.Background(), evaluation)
		Expect(err).ToNot(HaveOccurred())
		Expect(result.Created).To(BeFalse())
		Expect(result.Alert).To(Equal(open))
	})

	It("fails the evaluation when the event can't be published", func() {
		repo.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, alert alerts.Alert) (*alerts.Alert, bool, error) {
				return &alert, true, nil
			},
		)
		events.EXPECT().Create(gomock.Any(), gomock.Any()).Return(fmt.Errorf("outbox unavailable"))

		_, err := engine.Evaluate(context.Background(), evaluation)
		Expect(err).To(MatchError(ContainSubstring("outbox unavailable")))
	})

	It("does not touch the repository for invalid evaluations", func() {
		evaluation.AlertType = "unknown"
		_, err := engine.Evaluate(context.Background(), evaluation)
		Expect(err).To(MatchError(alerts.ErrInvalid))
	})
})
