package test

import (
	"time"

	"github.com/tidepool-org/cardiac/patients"
	"github.com/tidepool-org/cardiac/pointer"
	"github.com/tidepool-org/cardiac/test"
)

func RandomPatient() patients.Patient {
	birthDate := test.Faker.Time().TimeBetween(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-30, 0, 0))
	return patients.Patient{
		FirstName:         test.Faker.Person().FirstName(),
		LastName:          test.Faker.Person().LastName(),
		BirthDate:         birthDate.Format(time.DateOnly),
		Gender:            test.Faker.RandomStringElement([]string{"female", "male", "other"}),
		Mrn:               pointer.FromAny(test.Faker.UUID().V4()),
		Email:             pointer.FromAny(test.Faker.Internet().Email()),
		DeviceType:        "fitbit",
		BaselineHeartRate: pointer.FromAny(float64(test.Faker.IntBetween(55, 85))),
		BaselineHrv:       pointer.FromAny(float64(test.Faker.IntBetween(20, 80))),
		Status:            patients.StatusActive,
		RiskLevel:         patients.RiskLevelLow,
	}
}
