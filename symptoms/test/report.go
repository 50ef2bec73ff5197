package test

import (
	"time"

	"github.com/tidepool-org/cardiac/symptoms"
	"github.com/tidepool-org/cardiac/test"
)

// RandomReport returns a report with low scores and no flags set
func RandomReport(patientId string, reportDate time.Time) symptoms.Report {
	weight := test.RandomFloat(60, 90)
	systolic := test.Faker.IntBetween(110, 130)
	diastolic := test.Faker.IntBetween(70, 85)
	temperature := test.RandomFloat(36, 37.2)
	return symptoms.Report{
		PatientId:          patientId,
		ReportDate:         reportDate,
		ShortnessOfBreath:  test.Faker.IntBetween(0, 3),
		Fatigue:            test.Faker.IntBetween(0, 3),
		WeightKg:           &weight,
		SystolicPressure:   &systolic,
		DiastolicPressure:  &diastolic,
		TemperatureCelsius: &temperature,
		MedicationTaken:    true,
		Notes:              test.Faker.Lorem().Sentence(6),
	}
}
