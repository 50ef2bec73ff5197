package integration_test

import (
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/api"
	integrationTest "github.com/tidepool-org/cardiac/integration/test"
)

var _ = Describe("Alert Lifecycle", Ordered, func() {
	var patientId string
	var alert *alerts.Alert

	BeforeAll(func() {
		patientId = createPatient()
	})

	Describe("Readiness", func() {
		It("Reports ready once started", func() {
			rec := serve(prepareRequest(http.MethodGet, "/ready", ""))
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("Evaluate a breaching value", func() {
		It("Creates an alert", func() {
			rec := serve(prepareRequest(http.MethodPost, fmt.Sprintf("/v1/patients/%s/evaluations", patientId), "./test/fixtures/01_evaluate_low_resting_heart_rate.json"))
			Expect(rec.Code).To(Equal(http.StatusCreated))

			response := api.EvaluationResponse{}
			decode(rec, &response)
			Expect(response.Created).To(BeTrue())
			Expect(response.Alert).ToNot(BeNil())
			Expect(response.Alert.PatientId).To(Equal(patientId))
			Expect(response.Alert.Severity).To(Equal(alerts.SeverityCritical))
			Expect(response.Alert.TriggerValue).To(Equal(45.0))
			Expect(response.Alert.NormalRange).To(Equal("60-100"))
			Expect(response.Alert.IsResolved).To(BeFalse())
			alert = response.Alert
		})

		It("Returns the open alert when evaluated again", func() {
			rec := serve(prepareRequest(http.MethodPost, fmt.Sprintf("/v1/patients/%s/evaluations", patientId), "./test/fixtures/01_evaluate_low_resting_heart_rate.json"))
			Expect(rec.Code).To(Equal(http.StatusOK))

			response := api.EvaluationResponse{}
			decode(rec, &response)
			Expect(response.Created).To(BeFalse())
			Expect(response.Alert.Id).To(Equal(alert.Id))
		})
	})

	Describe("Evaluate a normal value", func() {
		It("Doesn't create or resolve alerts", func() {
			rec := serve(prepareRequest(http.MethodPost, fmt.Sprintf("/v1/patients/%s/evaluations", patientId), "./test/fixtures/02_evaluate_normal_resting_heart_rate.json"))
			Expect(rec.Code).To(Equal(http.StatusOK))

			response := api.EvaluationResponse{}
			decode(rec, &response)
			Expect(response.Created).To(BeFalse())
			Expect(response.Alert).To(BeNil())
		})
	})

	Describe("Evaluate an unknown alert type", func() {
		It("Fails with bad request", func() {
			rec := serve(prepareRequest(http.MethodPost, fmt.Sprintf("/v1/patients/%s/evaluations", patientId), "./test/fixtures/03_evaluate_unknown_alert_type.json"))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("List active alerts of the clinician", func() {
		It("Returns the open alert", func() {
			rec := serve(prepareRequest(http.MethodGet, fmt.Sprintf("/v1/clinicians/%s/alerts", integrationTest.TestClinicianId), ""))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var list []alerts.Alert
			decode(rec, &list)
			Expect(list).To(ContainElement(HaveField("Id", alert.Id)))
		})
	})

	Describe("Resolve the alert", func() {
		It("Requires the resolving clinician", func() {
			rec := serve(prepareRequest(http.MethodPost, fmt.Sprintf("/v1/alerts/%s/resolve", alert.Id), "./test/fixtures/05_resolve_alert_without_actor.json"))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("Succeeds", func() {
			rec := serve(prepareRequest(http.MethodPost, fmt.Sprintf("/v1/alerts/%s/resolve", alert.Id), "./test/fixtures/04_resolve_alert.json"))
			Expect(rec.Code).To(Equal(http.StatusOK))

			resolved := alerts.Alert{}
			decode(rec, &resolved)
			Expect(resolved.IsResolved).To(BeTrue())
			Expect(resolved.ResolvedBy).To(Equal(integrationTest.TestResolver))
			Expect(resolved.ResolvedTime).ToNot(BeNil())
		})

		It("Fails when resolved twice", func() {
			rec := serve(prepareRequest(http.MethodPost, fmt.Sprintf("/v1/alerts/%s/resolve", alert.Id), "./test/fixtures/04_resolve_alert.json"))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("Fails for unknown alerts", func() {
			rec := serve(prepareRequest(http.MethodPost, "/v1/alerts/unknown/resolve", "./test/fixtures/04_resolve_alert.json"))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("Keeps the original resolution", func() {
			rec := serve(prepareRequest(http.MethodGet, fmt.Sprintf("/v1/alerts/%s", alert.Id), ""))
			Expect(rec.Code).To(Equal(http.StatusOK))

			fetched := alerts.Alert{}
			decode(rec, &fetched)
			Expect(fetched.ResolvedBy).To(Equal(integrationTest.TestResolver))
		})

		It("Is no longer listed as active", func() {
			rec := serve(prepareRequest(http.MethodGet, fmt.Sprintf("/v1/clinicians/%s/alerts", integrationTest.TestClinicianId), ""))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var list []alerts.Alert
			decode(rec, &list)
			Expect(list).ToNot(ContainElement(HaveField("Id", alert.Id)))
		})
	})

	Describe("List the alerts of the patient", func() {
		It("Includes resolved alerts", func() {
			rec := serve(prepareRequest(http.MethodGet, fmt.Sprintf("/v1/patients/%s/alerts?days=1", patientId), ""))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var list []alerts.Alert
			decode(rec, &list)
			Expect(list).To(ConsistOf(HaveField("Id", alert.Id)))
		})

		It("Rejects malformed windows", func() {
			rec := serve(prepareRequest(http.MethodGet, fmt.Sprintf("/v1/patients/%s/alerts?from=yesterday", patientId), ""))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Submit a symptom report", func() {
		It("Stores the report and raises a symptom alert", func() {
			rec := serve(prepareRequest(http.MethodPost, fmt.Sprintf("/v1/patients/%s/symptoms", patientId), "./test/fixtures/06_symptom_report_chest_discomfort.json"))
			Expect(rec.Code).To(Equal(http.StatusCreated))

			response := api.SymptomReportResponse{}
			decode(rec, &response)
			Expect(response.Report).ToNot(BeNil())
			Expect(response.Report.Id).ToNot(BeNil())
			Expect(response.Report.ChestDiscomfort).To(BeTrue())
			Expect(response.Alerts).To(ConsistOf(HaveField("AlertType", alerts.TypeSymptomDeterioration)))
			Expect(response.Alerts[0].Severity).To(Equal(alerts.SeverityCritical))
		})

		It("Lists the report", func() {
			rec := serve(prepareRequest(http.MethodGet, fmt.Sprintf("/v1/patients/%s/symptoms", patientId), ""))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var list []map[string]interface{}
			decode(rec, &list)
			Expect(list).To(HaveLen(1))
		})
	})
})
