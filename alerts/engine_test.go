package alerts_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/clinicians"
	cliniciansTest "github.com/tidepool-org/cardiac/clinicians/test"
	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/outbox"
	"github.com/tidepool-org/cardiac/ranges"
	"github.com/tidepool-org/cardiac/store"
	dbTest "github.com/tidepool-org/cardiac/store/test"
	"github.com/tidepool-org/cardiac/symptoms"
	symptomsTest "github.com/tidepool-org/cardiac/symptoms/test"
)

var _ = Describe("Engine", func() {
	var engine *alerts.Engine
	var assignments clinicians.Repository
	var events outbox.Repository
	var reports symptoms.Repository
	var patientId string
	var now time.Time

	critical := func(patientId string, value float64) alerts.Evaluation {
		return alerts.Evaluation{
			PatientId:    patientId,
			AlertType:    alerts.TypeHighHeartRate,
			Tier:         ranges.TierCritical,
			TriggerValue: value,
			NormalRange:  "60-100",
		}
	}

	eventsOfType := func(eventType outbox.EventType) []outbox.Event {
		result, err := events.List(context.Background(), outbox.Filter{PatientId: &patientId, EventType: &eventType})
		Expect(err).ToNot(HaveOccurred())
		return result
	}

	BeforeEach(func() {
		database := dbTest.GetTestDatabase()
		logger := zap.NewNop().Sugar()
		lifecycle := fxtest.NewLifecycle(GinkgoT())

		alertsRepo, err := alerts.NewRepository(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		assignments, err = clinicians.NewRepository(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		events, err = outbox.NewRepository(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		reports, err = symptoms.NewRepository(database, logger, lifecycle)
		Expect(err).ToNot(HaveOccurred())
		lifecycle.RequireStart()

		table, err := ranges.DefaultTable()
		Expect(err).ToNot(HaveOccurred())
		classifier, err := ranges.NewClassifier(table, logger)
		Expect(err).ToNot(HaveOccurred())

		now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		engine, err = alerts.NewEngine(alerts.Params{
			Alerts:      alertsRepo,
			Assignments: assignments,
			Classifier:  classifier,
			Config:      &config.Config{WarningSeverity: config.WarningSeverityHigh},
			DbClient:    database.Client(),
			Events:      events,
			Logger:      logger,
			Reports:     reports,
		})
		Expect(err).ToNot(HaveOccurred())
		engine = engine.WithClock(func() time.Time { return now })

		patientId = primitive.NewObjectID().Hex()
	})

	Describe("Evaluate", func() {
		It("creates an open alert for a critical tier", func() {
			result, err := engine.Evaluate(context.Background(), critical(patientId, 130))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Created).To(BeTrue())
			Expect(result.Alert.Severity).To(Equal(alerts.SeverityCritical))
			Expect(result.Alert.Title).To(Equal("High Heart Rate"))
			Expect(result.Alert.TriggerValue).To(Equal(130.0))
			Expect(result.Alert.NormalRange).To(Equal("60-100"))
			Expect(result.Alert.Description).To(ContainSubstring("130"))
			Expect(result.Alert.IsResolved).To(BeFalse())
			Expect(eventsOfType(outbox.EventTypeAlertCreated)).To(HaveLen(1))
		})

		It("maps warning to the configured severity", func() {
			evaluation := critical(patientId, 110)
			evaluation.Tier = ranges.TierWarning
			result, err := engine.Evaluate(context.Background(), evaluation)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Alert.Severity).To(Equal(alerts.SeverityHigh))
		})

		It("does not create alerts for normal or unclassified tiers", func() {
			for _, tier := range []ranges.Tier{ranges.TierNormal, ranges.TierUnclassified} {
				evaluation := critical(patientId, 80)
				evaluation.Tier = tier
				result, err := engine.Evaluate(context.Background(), evaluation)
				Expect(err).ToNot(HaveOccurred())
				Expect(result.Alert).To(BeNil())
				Expect(result.Created).To(BeFalse())
			}
		})

		It("does not resolve open alerts when the tier returns to normal", func() {
			created, err := engine.Evaluate(context.Background(), critical(patientId, 130))
			Expect(err).ToNot(HaveOccurred())

			evaluation := critical(patientId, 80)
			evaluation.Tier = ranges.TierNormal
			_, err = engine.Evaluate(context.Background(), evaluation)
			Expect(err).ToNot(HaveOccurred())

			alert, err := engine.Get(context.Background(), created.Alert.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(alert.IsResolved).To(BeFalse())
		})

		It("never creates a second open alert of the same type", func() {
			first, err := engine.Evaluate(context.Background(), critical(patientId, 130))
			Expect(err).ToNot(HaveOccurred())

			evaluation := critical(patientId, 115)
			evaluation.Tier = ranges.TierWarning
			second, err := engine.Evaluate(context.Background(), evaluation)
			Expect(err).ToNot(HaveOccurred())
			Expect(second.Created).To(BeFalse())
			Expect(second.Alert.Id).To(Equal(first.Alert.Id))
			Expect(second.Alert.TriggerValue).To(Equal(130.0))

			active, err := engine.ListByPatient(context.Background(), patientId, store.TrailingWindow(now.Add(time.Minute), time.Hour))
			Expect(err).ToNot(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(eventsOfType(outbox.EventTypeAlertCreated)).To(HaveLen(1))
		})

		It("keeps alerts of different types independent", func() {
			_, err := engine.Evaluate(context.Background(), critical(patientId, 130))
			Expect(err).ToNot(HaveOccurred())

			evaluation := critical(patientId, 8)
			evaluation.AlertType = alerts.TypeLowHrv
			result, err := engine.Evaluate(context.Background(), evaluation)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Created).To(BeTrue())
		})

		It("creates exactly one alert under concurrent evaluation", func() {
			const workers = 8
			var wg sync.WaitGroup
			results := make(chan *alerts.Result, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					result, err := engine.Evaluate(context.Background(), critical(patientId, 130))
					Expect(err).ToNot(HaveOccurred())
					results <- result
				}()
			}
			wg.Wait()
			close(results)

			created := 0
			ids := map[string]struct{}{}
			for result := range results {
				if result.Created {
					created++
				}
				ids[result.Alert.Id] = struct{}{}
			}
			Expect(created).To(Equal(1))
			Expect(ids).To(HaveLen(1))

			all, err := engine.ListByPatient(context.Background(), patientId, store.TrailingWindow(now.Add(time.Minute), time.Hour))
			Expect(err).ToNot(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Severity).To(Equal(alerts.SeverityCritical))
		})

		It("rejects unknown alert types", func() {
			evaluation := critical(patientId, 130)
			evaluation.AlertType = "cholesterol"
			_, err := engine.Evaluate(context.Background(), evaluation)
			Expect(err).To(MatchError(alerts.ErrInvalid))
		})
	})

	Describe("EvaluateValue", func() {
		It("classifies the value with the configured ranges", func() {
			result, err := engine.EvaluateValue(context.Background(), patientId, alerts.TypeHighHeartRate, ranges.MetricRestingHeartRate, 45)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Created).To(BeTrue())
			Expect(result.Alert.Severity).To(Equal(alerts.SeverityCritical))
			Expect(result.Alert.NormalRange).To(Equal("60-100"))
		})
	})

	Describe("Resolve", func() {
		var alert *alerts.Alert

		BeforeEach(func() {
			result, err := engine.Evaluate(context.Background(), critical(patientId, 130))
			Expect(err).ToNot(HaveOccurred())
			alert = result.Alert
		})

		It("resolves the alert", func() {
			resolved, err := engine.Resolve(context.Background(), alert.Id, "clinician-1", "called the patient")
			Expect(err).ToNot(HaveOccurred())
			Expect(resolved.IsResolved).To(BeTrue())
			Expect(resolved.ResolvedBy).To(Equal("clinician-1"))
			Expect(resolved.ResolutionNotes).To(Equal("called the patient"))
			Expect(*resolved.ResolvedTime).To(BeTemporally("==", now))
			Expect(eventsOfType(outbox.EventTypeAlertResolved)).To(HaveLen(1))
		})

		It("fails when the alert is already resolved without overwriting it", func() {
			_, err := engine.Resolve(context.Background(), alert.Id, "clinician-1", "first")
			Expect(err).ToNot(HaveOccurred())

			_, err = engine.Resolve(context.Background(), alert.Id, "clinician-2", "second")
			Expect(err).To(MatchError(alerts.ErrAlreadyResolved))
			Expect(err).To(MatchError(alerts.ErrNotFound))

			fetched, err := engine.Get(context.Background(), alert.Id)
			Expect(err).ToNot(HaveOccurred())
			Expect(fetched.ResolvedBy).To(Equal("clinician-1"))
			Expect(fetched.ResolutionNotes).To(Equal("first"))
			Expect(eventsOfType(outbox.EventTypeAlertResolved)).To(HaveLen(1))
		})

		It("fails for unknown alerts", func() {
			_, err := engine.Resolve(context.Background(), "unknown", "clinician-1", "")
			Expect(err).To(MatchError(alerts.ErrNotFound))
			Expect(err).ToNot(MatchError(alerts.ErrAlreadyResolved))
		})

		It("requires an actor", func() {
			_, err := engine.Resolve(context.Background(), alert.Id, "", "")
			Expect(err).To(MatchError(alerts.ErrInvalid))
		})

		It("creates a new alert when the condition recurs after resolution", func() {
			_, err := engine.Resolve(context.Background(), alert.Id, "clinician-1", "")
			Expect(err).ToNot(HaveOccurred())

			result, err := engine.Evaluate(context.Background(), critical(patientId, 140))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Created).To(BeTrue())
			Expect(result.Alert.Id).ToNot(Equal(alert.Id))
		})
	})

	Describe("ListActive", func() {
		var clinicianId string

		BeforeEach(func() {
			clinicianId = cliniciansTest.RandomClinicianId()
			_, err := assignments.Assign(context.Background(), clinicianId, patientId, true)
			Expect(err).ToNot(HaveOccurred())
		})

		It("returns open alerts of assigned patients", func() {
			result, err := engine.Evaluate(context.Background(), critical(patientId, 130))
			Expect(err).ToNot(HaveOccurred())

			unassigned := primitive.NewObjectID().Hex()
			_, err = engine.Evaluate(context.Background(), critical(unassigned, 130))
			Expect(err).ToNot(HaveOccurred())

			active, err := engine.ListActive(context.Background(), clinicianId)
			Expect(err).ToNot(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].Id).To(Equal(result.Alert.Id))
		})

		It("never returns resolved alerts", func() {
			result, err := engine.Evaluate(context.Background(), critical(patientId, 130))
			Expect(err).ToNot(HaveOccurred())
			_, err = engine.Resolve(context.Background(), result.Alert.Id, clinicianId, "")
			Expect(err).ToNot(HaveOccurred())

			active, err := engine.ListActive(context.Background(), clinicianId)
			Expect(err).ToNot(HaveOccurred())
			Expect(active).To(BeEmpty())
		})

		It("returns an empty list for clinicians without patients", func() {
			active, err := engine.ListActive(context.Background(), cliniciansTest.RandomClinicianId())
			Expect(err).ToNot(HaveOccurred())
			Expect(active).To(BeEmpty())
		})
	})

	Describe("EvaluateSymptoms", func() {
		It("raises a symptom alert for chest discomfort", func() {
			report := symptomsTest.RandomReport(patientId, now)
			report.ChestDiscomfort = true

			results, err := engine.EvaluateSymptoms(context.Background(), report)
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Alert.AlertType).To(Equal(alerts.TypeSymptomDeterioration))
			Expect(results[0].Alert.Severity).To(Equal(alerts.SeverityCritical))
		})

		It("raises a weight alert for rapid weight gain", func() {
			earlier := symptomsTest.RandomReport(patientId, now.AddDate(0, 0, -2))
			weight := 80.0
			earlier.WeightKg = &weight
			_, err := reports.Create(context.Background(), earlier)
			Expect(err).ToNot(HaveOccurred())

			report := symptomsTest.RandomReport(patientId, now)
			gained := 82.5
			report.WeightKg = &gained
			report.ShortnessOfBreath, report.Fatigue = 0, 0

			results, err := engine.EvaluateSymptoms(context.Background(), report)
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Alert).To(BeNil())
			Expect(results[1].Alert.AlertType).To(Equal(alerts.TypeWeightIncrease))
			Expect(results[1].Alert.TriggerValue).To(BeNumerically("~", 2.5, 0.001))
		})
	})

	Describe("EvaluateMissingData", func() {
		It("raises a missing data alert once", func() {
			first, err := engine.EvaluateMissingData(context.Background(), patientId, now)
			Expect(err).ToNot(HaveOccurred())
			Expect(first.Created).To(BeTrue())
			Expect(first.Alert.AlertType).To(Equal(alerts.TypeMissingData))

			second, err := engine.EvaluateMissingData(context.Background(), patientId, now.AddDate(0, 0, 1))
			Expect(err).ToNot(HaveOccurred())
			Expect(second.Created).To(BeFalse())
		})
	})
})
