package test

import (
	"github.com/tidepool-org/cardiac/test"
)

func RandomClinicianId() string {
	return test.Faker.UUID().V4()
}
